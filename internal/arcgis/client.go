// Package arcgis retrieves feature layers from ArcGIS REST services, with
// pagination, retries, and rate limiting. It owns every remote failure mode;
// the pipeline core only ever sees materialized layers.
package arcgis

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/upzone-cli/internal/config"
	"github.com/sells-group/upzone-cli/internal/layer"
)

// Client is a rate-limited ArcGIS REST client.
type Client struct {
	http       *http.Client
	limiter    *rate.Limiter
	pageSize   int
	maxRetries int
	userAgent  string
}

// NewClient creates a client from fetch configuration.
func NewClient(cfg config.FetchConfig) *Client {
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = 2000
	}
	retries := cfg.MaxRetries
	if retries <= 0 {
		retries = 3
	}
	rps := cfg.RequestsPerSec
	if rps <= 0 {
		rps = 5
	}
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	ua := cfg.UserAgent
	if ua == "" {
		ua = "upzone-cli/1.0"
	}
	return &Client{
		http:       &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Limit(rps), int(rps)+1),
		pageSize:   pageSize,
		maxRetries: retries,
		userAgent:  ua,
	}
}

// Count returns the total record count of a layer.
func (c *Client) Count(ctx context.Context, layerURL string) (int, error) {
	params := baseParams()
	params.Set("returnCountOnly", "true")
	params.Set("f", "json")

	body, err := c.get(ctx, layerURL+"/query", params)
	if err != nil {
		return 0, err
	}
	var resp struct {
		Count int `json:"count"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, eris.Wrap(err, "arcgis: decode count response")
	}
	return resp.Count, nil
}

// FetchLayer downloads a full layer as GeoJSON, paginating through the
// service's record limit.
func (c *Client) FetchLayer(ctx context.Context, name, layerURL string) (*layer.Layer, error) {
	total, err := c.Count(ctx, layerURL)
	if err != nil {
		return nil, eris.Wrapf(err, "arcgis: count layer %s", name)
	}
	zap.L().Info("arcgis: fetching layer",
		zap.String("layer", name),
		zap.Int("total", total),
	)

	result := &layer.Layer{Name: name, SRID: layer.SRIDGeographic}
	offset := 0
	for offset < total {
		params := baseParams()
		params.Set("f", "geojson")
		params.Set("resultOffset", strconv.Itoa(offset))
		params.Set("resultRecordCount", strconv.Itoa(c.pageSize))

		body, err := c.get(ctx, layerURL+"/query", params)
		if err != nil {
			return nil, eris.Wrapf(err, "arcgis: fetch layer %s at offset %d", name, offset)
		}
		page, err := layer.DecodeGeoJSON(name, body)
		if err != nil {
			return nil, err
		}
		if len(page.Features) == 0 {
			break
		}
		if err := result.Merge(page); err != nil {
			return nil, err
		}
		offset += len(page.Features)
		zap.L().Debug("arcgis: fetched page",
			zap.String("layer", name),
			zap.Int("fetched", offset),
			zap.Int("total", total),
		)
	}

	return result, nil
}

func baseParams() url.Values {
	return url.Values{
		"where":          []string{"1=1"},
		"outFields":      []string{"*"},
		"returnGeometry": []string{"true"},
	}
}

// get issues one rate-limited request with retries and backoff.
func (c *Client) get(ctx context.Context, rawURL string, params url.Values) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(attempt) * time.Second
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		body, err := c.getOnce(ctx, rawURL, params)
		if err == nil {
			return body, nil
		}
		lastErr = err
		zap.L().Warn("arcgis: request failed",
			zap.String("url", rawURL),
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)
	}
	return nil, eris.Wrapf(lastErr, "arcgis: request failed after %d attempts", c.maxRetries+1)
}

func (c *Client) getOnce(ctx context.Context, rawURL string, params url.Values) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "arcgis: build request")
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "arcgis: do request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, eris.New(fmt.Sprintf("arcgis: unexpected status %d", resp.StatusCode))
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "arcgis: read body")
	}
	return body, nil
}
