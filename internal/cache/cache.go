// Package cache is the on-disk GeoJSON layer cache. Planning layers change
// rarely and are expensive to page through; the cache makes reruns cheap.
package cache

import (
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/upzone-cli/internal/config"
	"github.com/sells-group/upzone-cli/internal/layer"
)

// Cache stores one GeoJSON file per layer name under a directory.
type Cache struct {
	dir     string
	enabled bool
}

// New creates a cache. A disabled cache misses on every Get and drops Puts.
func New(cfg config.CacheConfig) *Cache {
	return &Cache{dir: cfg.Dir, enabled: cfg.Enabled}
}

func (c *Cache) path(name string) string {
	return filepath.Join(c.dir, name+".geojson")
}

// Get loads a cached layer, reporting whether it was present.
func (c *Cache) Get(name string) (*layer.Layer, bool) {
	if !c.enabled {
		return nil, false
	}
	data, err := os.ReadFile(c.path(name))
	if err != nil {
		return nil, false
	}
	l, err := layer.DecodeGeoJSON(name, data)
	if err != nil {
		zap.L().Warn("cache: discarding unreadable cache entry",
			zap.String("layer", name),
			zap.Error(err),
		)
		return nil, false
	}
	zap.L().Info("cache: loaded layer from cache",
		zap.String("layer", name),
		zap.Int("features", len(l.Features)),
	)
	return l, true
}

// Put writes a layer to the cache.
func (c *Cache) Put(l *layer.Layer) error {
	if !c.enabled || l == nil {
		return nil
	}
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return eris.Wrap(err, "cache: create dir")
	}
	data, err := layer.EncodeGeoJSON(l)
	if err != nil {
		return err
	}
	if err := os.WriteFile(c.path(l.Name), data, 0o644); err != nil {
		return eris.Wrapf(err, "cache: write layer %s", l.Name)
	}
	zap.L().Info("cache: cached layer",
		zap.String("layer", l.Name),
		zap.Int("features", len(l.Features)),
	)
	return nil
}

// Entries lists cached layer names and sizes for status reporting.
func (c *Cache) Entries() (map[string]int64, error) {
	out := map[string]int64{}
	items, err := os.ReadDir(c.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return out, nil
		}
		return nil, eris.Wrap(err, "cache: read dir")
	}
	for _, item := range items {
		if item.IsDir() || filepath.Ext(item.Name()) != ".geojson" {
			continue
		}
		info, err := item.Info()
		if err != nil {
			continue
		}
		out[item.Name()[:len(item.Name())-len(".geojson")]] = info.Size()
	}
	return out, nil
}
