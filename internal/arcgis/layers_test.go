package arcgis

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/upzone-cli/internal/cache"
	"github.com/sells-group/upzone-cli/internal/config"
)

// layerServer serves every planning layer and the tier layer from one handler,
// counting query requests per path.
type layerServer struct {
	*httptest.Server
	mu    sync.Mutex
	calls map[string]int
}

func newLayerServer() *layerServer {
	ls := &layerServer{calls: map[string]int{}}
	ls.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ls.mu.Lock()
		ls.calls[r.URL.Path]++
		ls.mu.Unlock()

		if r.URL.Query().Get("returnCountOnly") == "true" {
			fmt.Fprint(w, `{"count":1}`)
			return
		}
		fmt.Fprint(w, featurePage(0))
	}))
	return ls
}

func (ls *layerServer) queries(pathSuffix string) int {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	var n int
	for path, count := range ls.calls {
		if strings.HasSuffix(path, pathSuffix) {
			n += count
		}
	}
	return n
}

func testLayersConfig(baseURL string) config.Layers {
	return config.Layers{
		PlanningBaseURL: baseURL,
		Parcels:         23,
		Zoning:          3,
		Height:          5,
		OpenSpace:       20,
		SlopeModerate:   18,
		SlopeSteep:      19,
		Historic:        map[string]int{"landmarks": 11},
		TierURL:         baseURL + "/tiers",
	}
}

func TestFetchAll(t *testing.T) {
	srv := newLayerServer()
	defer srv.Close()

	f := NewFetcher(
		testClient(10),
		cache.New(config.CacheConfig{Dir: t.TempDir(), Enabled: false}),
		testLayersConfig(srv.URL),
		2,
	)

	layers, err := f.FetchAll(context.Background())
	require.NoError(t, err)

	require.NotNil(t, layers.Parcels)
	assert.Len(t, layers.Parcels.Features, 1)
	require.NotNil(t, layers.Zoning)
	require.NotNil(t, layers.Tiers)
	require.NotNil(t, layers.Height)
	require.NotNil(t, layers.OpenSpace)
	require.NotNil(t, layers.SlopeMod)
	require.NotNil(t, layers.SlopeSteep)

	// No buildings path configured.
	assert.Nil(t, layers.Buildings)

	// Landmarks is pass-through filtered and tagged with its source name.
	require.Len(t, layers.Historic, 1)
	assert.Equal(t, "landmarks", layers.Historic[0].Name)
	name, ok := layers.Historic[0].Features[0].String("historic_layer")
	require.True(t, ok)
	assert.Equal(t, "landmarks", name)
}

func TestFetchAll_CacheSkipsRefetchExceptTiers(t *testing.T) {
	srv := newLayerServer()
	defer srv.Close()

	c := cache.New(config.CacheConfig{Dir: t.TempDir(), Enabled: true})
	f := NewFetcher(testClient(10), c, testLayersConfig(srv.URL), 2)

	_, err := f.FetchAll(context.Background())
	require.NoError(t, err)
	_, err = f.FetchAll(context.Background())
	require.NoError(t, err)

	// Count plus one page on the first run only for cacheable layers.
	assert.Equal(t, 2, srv.queries("/23/query"))
	// The tier overlay is fetched fresh on every run.
	assert.Equal(t, 4, srv.queries("/tiers/query"))
}

func TestFetchAll_RequiredLayerFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/23/") {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		if r.URL.Query().Get("returnCountOnly") == "true" {
			fmt.Fprint(w, `{"count":1}`)
			return
		}
		fmt.Fprint(w, featurePage(0))
	}))
	defer srv.Close()

	f := NewFetcher(
		testClient(10),
		cache.New(config.CacheConfig{Dir: t.TempDir(), Enabled: false}),
		testLayersConfig(srv.URL),
		2,
	)

	_, err := f.FetchAll(context.Background())
	require.Error(t, err)
}
