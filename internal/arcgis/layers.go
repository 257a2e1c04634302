package arcgis

import (
	"context"
	"fmt"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/upzone-cli/internal/cache"
	"github.com/sells-group/upzone-cli/internal/config"
	"github.com/sells-group/upzone-cli/internal/layer"
	"github.com/sells-group/upzone-cli/internal/pipeline"
)

// Layer names used for cache keys and logging.
const (
	LayerParcels   = "parcels"
	LayerZoning    = "zoning"
	LayerHeight    = "height_districts"
	LayerOpenSpace = "open_space"
	LayerSlopeMod  = "slope_20_25"
	LayerSlopeStp  = "slope_25_plus"
	LayerTiers     = "transit_tiers"
	LayerBuildings = "building_footprints"
)

// Fetcher materializes the full layer set for a run, consulting the cache
// before the network.
type Fetcher struct {
	client *Client
	cache  *cache.Cache
	layers config.Layers
	conc   int
}

// NewFetcher creates a Fetcher.
func NewFetcher(client *Client, c *cache.Cache, layers config.Layers, concurrency int) *Fetcher {
	if concurrency <= 0 {
		concurrency = 4
	}
	return &Fetcher{client: client, cache: c, layers: layers, conc: concurrency}
}

func (f *Fetcher) planningURL(layerID int) string {
	return fmt.Sprintf("%s/%d", f.layers.PlanningBaseURL, layerID)
}

// FetchAll retrieves every input layer. Required layers (parcels, zoning,
// tiers) propagate their errors; optional layers degrade to nil with a
// warning so their contribution is empty rather than fatal. The tier layer is
// never cached, it changes as the overlay is amended. Building footprints
// come from a local file.
func (f *Fetcher) FetchAll(ctx context.Context) (pipeline.Layers, error) {
	var out pipeline.Layers
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(f.conc)

	// Required layers.
	g.Go(func() error {
		l, err := f.cached(ctx, LayerParcels, f.planningURL(f.layers.Parcels))
		if err != nil {
			return err
		}
		mu.Lock()
		out.Parcels = l
		mu.Unlock()
		return nil
	})
	g.Go(func() error {
		l, err := f.cached(ctx, LayerZoning, f.planningURL(f.layers.Zoning))
		if err != nil {
			return err
		}
		mu.Lock()
		out.Zoning = l
		mu.Unlock()
		return nil
	})
	g.Go(func() error {
		l, err := f.client.FetchLayer(ctx, LayerTiers, f.layers.TierURL)
		if err != nil {
			return eris.Wrap(err, "arcgis: fetch transit-tier layer")
		}
		mu.Lock()
		out.Tiers = l
		mu.Unlock()
		return nil
	})

	// Optional layers.
	g.Go(func() error {
		l := f.optional(ctx, LayerHeight, f.planningURL(f.layers.Height))
		mu.Lock()
		out.Height = l
		mu.Unlock()
		return nil
	})
	g.Go(func() error {
		l := f.optional(ctx, LayerOpenSpace, f.planningURL(f.layers.OpenSpace))
		mu.Lock()
		out.OpenSpace = l
		mu.Unlock()
		return nil
	})
	g.Go(func() error {
		l := f.optional(ctx, LayerSlopeMod, f.planningURL(f.layers.SlopeModerate))
		mu.Lock()
		out.SlopeMod = l
		mu.Unlock()
		return nil
	})
	g.Go(func() error {
		l := f.optional(ctx, LayerSlopeStp, f.planningURL(f.layers.SlopeSteep))
		mu.Lock()
		out.SlopeSteep = l
		mu.Unlock()
		return nil
	})
	g.Go(func() error {
		historic := f.fetchHistoric(ctx)
		mu.Lock()
		out.Historic = historic
		mu.Unlock()
		return nil
	})
	g.Go(func() error {
		if f.layers.BuildingsPath == "" {
			return nil
		}
		l, err := layer.ReadFile(f.layers.BuildingsPath, LayerBuildings)
		if err != nil {
			zap.L().Warn("arcgis: building footprints unavailable",
				zap.String("path", f.layers.BuildingsPath),
				zap.Error(err),
			)
			return nil
		}
		mu.Lock()
		out.Buildings = l
		mu.Unlock()
		return nil
	})

	if err := g.Wait(); err != nil {
		return pipeline.Layers{}, err
	}
	return out, nil
}

// fetchHistoric retrieves each named historic layer, applying the known
// pre-filters and tagging features with the source-layer name. A layer that
// fails entirely is skipped with a warning.
func (f *Fetcher) fetchHistoric(ctx context.Context) []*layer.Layer {
	var out []*layer.Layer
	for name, id := range f.layers.Historic {
		l := f.optional(ctx, name, f.planningURL(id))
		if l == nil {
			continue
		}
		l = layer.PrefilterHistoric(l)
		if len(l.Features) == 0 {
			continue
		}
		l.Tag("historic_layer", name)
		out = append(out, l)
	}
	return out
}

// cached fetches a required layer through the cache.
func (f *Fetcher) cached(ctx context.Context, name, url string) (*layer.Layer, error) {
	if l, ok := f.cache.Get(name); ok {
		return l, nil
	}
	l, err := f.client.FetchLayer(ctx, name, url)
	if err != nil {
		return nil, err
	}
	if err := f.cache.Put(l); err != nil {
		zap.L().Warn("arcgis: failed to cache layer", zap.String("layer", name), zap.Error(err))
	}
	return l, nil
}

// optional fetches an optional layer through the cache, degrading to nil.
func (f *Fetcher) optional(ctx context.Context, name, url string) *layer.Layer {
	l, err := f.cached(ctx, name, url)
	if err != nil {
		zap.L().Warn("arcgis: optional layer unavailable, proceeding without it",
			zap.String("layer", name),
			zap.Error(err),
		)
		return nil
	}
	return l
}
