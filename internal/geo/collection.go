// Package geo handles geographic feature collections and the attribute
// schema reconciliation used when combining data from multiple projects.
package geo

import (
	"sort"

	"github.com/paulmach/orb/geojson"
)

// Collection accumulates features from several source collections while
// keeping an explicit attribute schema. The schema is the union of all
// contributing collections' attribute names; rows missing an attribute
// carry an explicit null so no value is silently dropped.
type Collection struct {
	Schema   []string
	Features []*geojson.Feature

	seen map[string]bool
}

// Empty reports whether the collection holds no features.
func (c *Collection) Empty() bool {
	return len(c.Features) == 0
}

// Append merges a source feature collection into c, widening the schema.
// New attribute names are null-filled on previously accumulated rows and
// attributes already known but absent from fc are null-filled on its rows.
// Feature order is preserved: existing rows first, then fc's rows in order.
func (c *Collection) Append(fc *geojson.FeatureCollection) {
	if fc == nil || len(fc.Features) == 0 {
		return
	}

	if c.seen == nil {
		c.seen = make(map[string]bool)
	}

	// Union of attribute names across the incoming rows. Sorted so the
	// widened schema is deterministic regardless of map iteration order.
	incoming := make(map[string]bool)
	for _, f := range fc.Features {
		for name := range f.Properties {
			incoming[name] = true
		}
	}

	var added []string
	for name := range incoming {
		if !c.seen[name] {
			added = append(added, name)
		}
	}
	sort.Strings(added)

	for _, name := range added {
		c.seen[name] = true
		c.Schema = append(c.Schema, name)
		for _, f := range c.Features {
			if _, ok := f.Properties[name]; !ok {
				f.Properties[name] = nil
			}
		}
	}

	for _, f := range fc.Features {
		if f.Properties == nil {
			f.Properties = make(geojson.Properties)
		}
		for _, name := range c.Schema {
			if _, ok := f.Properties[name]; !ok {
				f.Properties[name] = nil
			}
		}
		c.Features = append(c.Features, f)
	}
}

// FeatureCollection returns the accumulated features as a GeoJSON
// feature collection sharing the underlying features.
func (c *Collection) FeatureCollection() *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	fc.Features = c.Features
	return fc
}

// Partition groups features sharing one geometry type.
type Partition struct {
	GeometryType string
	Features     []*geojson.Feature
}

// PartitionByGeometryType splits the collection by geometry type, in order
// of first appearance. Used for formats that cannot mix geometry types in
// a single file.
func (c *Collection) PartitionByGeometryType() []Partition {
	var parts []Partition
	index := make(map[string]int)

	for _, f := range c.Features {
		if f.Geometry == nil {
			continue
		}
		t := f.Geometry.GeoJSONType()
		i, ok := index[t]
		if !ok {
			i = len(parts)
			index[t] = i
			parts = append(parts, Partition{GeometryType: t})
		}
		parts[i].Features = append(parts[i].Features, f)
	}

	return parts
}

// SetMissingProperty sets name to value on every feature of fc that lacks
// it, but only when no feature in fc carries the attribute at all. A
// collection that already has the attribute is left untouched.
func SetMissingProperty(fc *geojson.FeatureCollection, name string, value interface{}) {
	if fc == nil {
		return
	}

	for _, f := range fc.Features {
		if _, ok := f.Properties[name]; ok {
			return
		}
	}

	for _, f := range fc.Features {
		if f.Properties == nil {
			f.Properties = make(geojson.Properties)
		}
		f.Properties[name] = value
	}
}
