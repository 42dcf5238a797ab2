package main

import (
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/mapswipe-utils/mapswipe2hdx/internal/config"
	"github.com/mapswipe-utils/mapswipe2hdx/internal/hdx"
	"github.com/mapswipe-utils/mapswipe2hdx/internal/logger"
	"github.com/mapswipe-utils/mapswipe2hdx/internal/mapswipe"
	"github.com/mapswipe-utils/mapswipe2hdx/internal/pipeline"
)

type Options struct {
	Logger logger.Logger `group:"Logger options"`

	ConfigFile string `short:"c" long:"config"      env:"CONFIG_FILE"  description:"Path to settings file" default:"config.yaml"`
	ConfigYAML string `short:"y" long:"config-yaml" env:"CONFIG_YAML"  description:"Inline YAML settings (takes precedence over --config)"`
	WorkDir    string `short:"w" long:"work-dir"    env:"WORK_DIR"     description:"Directory for export artifacts and archives" default:"."`
	APIBase    string `long:"api-base"              env:"API_BASE"     description:"MapSwipe API base URL override"`
	Timeout    int    `long:"timeout"               env:"HTTP_TIMEOUT" description:"HTTP request timeout in seconds" default:"60"`
}

func main() {
	// Optional .env next to the binary, environment wins
	_ = godotenv.Load()

	var opts Options
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	opts.Logger.Setup()

	cfg, err := loadSettings(&opts)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load settings")
	}

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("HDX credentials (API key, owner org, maintainer) are required")
	}

	if opts.Timeout <= 0 {
		opts.Timeout = 60
	}

	client := &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 100,
		},
		Timeout: time.Duration(opts.Timeout) * time.Second,
	}

	log.Info().
		Str("site", cfg.HDXSite).
		Int("projects", len(cfg.Projects)).
		Strs("formats", cfg.FileFormats).
		Msg("Starting publish run")

	p := pipeline.New(
		cfg,
		mapswipe.NewClient(client, opts.APIBase),
		hdx.NewClient(client, cfg.HDXSite, cfg.HDXAPIKey),
		opts.WorkDir,
	)

	url, err := p.Run()
	if errors.Is(err, pipeline.ErrNoData) {
		// Nothing fetched: no export or publish happened, not a crash
		return
	}
	if err != nil {
		log.Fatal().Err(err).Msg("Publish run failed")
	}

	log.Info().Str("url", url).Msg("Publish run finished successfully")
}

func loadSettings(opts *Options) (*config.Settings, error) {
	if opts.ConfigYAML != "" {
		return config.Parse([]byte(opts.ConfigYAML))
	}
	return config.Load(opts.ConfigFile)
}
