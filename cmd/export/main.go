package main

import (
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/rs/zerolog/log"

	"github.com/mapswipe-utils/mapswipe2hdx/internal/config"
	"github.com/mapswipe-utils/mapswipe2hdx/internal/logger"
	"github.com/mapswipe-utils/mapswipe2hdx/internal/mapswipe"
	"github.com/mapswipe-utils/mapswipe2hdx/internal/pipeline"
)

// Local snapshot tool: runs fetch, aggregation, export and packaging but
// skips the registry, so no HDX credentials are needed.

type Options struct {
	Logger logger.Logger `group:"Logger options"`

	ConfigFile string `short:"c" long:"config"      env:"CONFIG_FILE"  description:"Path to settings file" default:"config.yaml"`
	ConfigYAML string `short:"y" long:"config-yaml" env:"CONFIG_YAML"  description:"Inline YAML settings (takes precedence over --config)"`
	WorkDir    string `short:"w" long:"work-dir"    env:"WORK_DIR"     description:"Directory for export artifacts and archives" default:"."`
	APIBase    string `long:"api-base"              env:"API_BASE"     description:"MapSwipe API base URL override"`
	Timeout    int    `long:"timeout"               env:"HTTP_TIMEOUT" description:"HTTP request timeout in seconds" default:"60"`
}

func main() {
	var opts Options
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	opts.Logger.Setup()

	var (
		cfg *config.Settings
		err error
	)
	if opts.ConfigYAML != "" {
		cfg, err = config.Parse([]byte(opts.ConfigYAML))
	} else {
		cfg, err = config.Load(opts.ConfigFile)
	}
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load settings")
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

	p := pipeline.New(cfg, mapswipe.NewClient(client, opts.APIBase), nil, opts.WorkDir)

	resources, err := p.Export()
	if errors.Is(err, pipeline.ErrNoData) {
		return
	}
	if err != nil {
		log.Fatal().Err(err).Msg("Export run failed")
	}

	for _, r := range resources {
		log.Info().Str("archive", r.FilePath).Str("format", r.Format).Msg("Archive ready")
	}

	log.Info().Int("archives", len(resources)).Msg("Export run finished successfully")
}
