// Package loader fetches the three startup resources (filter configuration,
// marker metadata, building records) and decodes them into the structures the
// rest of the engine consumes. Resources may come from HTTP(S) URLs or local
// files; a preprocessed CBOR bundle holding all three is also accepted.
package loader

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/Bubblbu/sica-mapping/internal/filter"
	"github.com/Bubblbu/sica-mapping/internal/registry"
	"github.com/Bubblbu/sica-mapping/internal/summary"
	"github.com/Bubblbu/sica-mapping/internal/tracing"
)

// Resource names used in failure reporting.
const (
	ResourceFilterConfig   = "filter_config"
	ResourceMarkerMetadata = "marker_metadata"
	ResourceRecords        = "building_records"
	ResourceBundle         = "bundle"
	ResourceBlocks         = "blocks_geojson"
)

var ErrEmptyResource = errors.New("empty resource body")

// LoadFailure reports which startup resource failed and why. Any load
// failure is fatal to initialization.
type LoadFailure struct {
	Resource string
	Err      error
}

func (e *LoadFailure) Error() string {
	return fmt.Sprintf("load %s: %v", e.Resource, e.Err)
}

func (e *LoadFailure) Unwrap() error { return e.Err }

// FilterConfig is the filter configuration resource.
type FilterConfig struct {
	UpdatedYearMin *int                            `json:"updated_year_min,omitempty" cbor:"updated_year_min,omitempty"`
	UpdatedYearMax *int                            `json:"updated_year_max,omitempty" cbor:"updated_year_max,omitempty"`
	DatasetTotals  *summary.DatasetTotals          `json:"dataset_totals,omitempty" cbor:"dataset_totals,omitempty"`
	Metrics        map[string]filter.MetricConfig `json:"building_metrics" cbor:"building_metrics"`
	MetricOrder    []string                        `json:"building_metric_order,omitempty" cbor:"building_metric_order,omitempty"`
	Neighbourhoods []string                        `json:"neighbourhoods,omitempty" cbor:"neighbourhoods,omitempty"`
}

// BuildingRecords carries the tabular building data. The engine consumes
// only the column ordering; record payloads are passed through to table
// rendering untouched.
type BuildingRecords struct {
	Columns []string                   `json:"columns" cbor:"columns"`
	Records map[string]json.RawMessage `json:"records" cbor:"records"`
}

// Bundle is the preprocessed single-artifact form of all three resources.
type Bundle struct {
	FilterConfig   *FilterConfig           `cbor:"filter_config"`
	MarkerMetadata []registry.BuildingMeta `cbor:"marker_metadata"`
	Records        *BuildingRecords        `cbor:"building_records"`
}

// Sources names where each resource lives. A source is an http(s) URL or a
// filesystem path. Bundle, when set, replaces the three individual sources.
type Sources struct {
	FilterConfig   string
	MarkerMetadata string
	Records        string
	Bundle         string
}

// Result holds the decoded startup resources.
type Result struct {
	FilterConfig   *FilterConfig
	MarkerMetadata []registry.BuildingMeta
	Records        *BuildingRecords
}

// Loader fetches startup resources.
type Loader struct {
	client *http.Client
}

func New() *Loader {
	return &Loader{
		client: &http.Client{
			Timeout: 15 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        16,
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     30 * time.Second,
			},
		},
	}
}

// Load fetches and decodes all startup resources. With a bundle source the
// single CBOR artifact is fetched; otherwise the three JSON resources are
// fetched concurrently and joined before returning. The first failure is
// returned as a *LoadFailure.
func (l *Loader) Load(ctx context.Context, src Sources) (*Result, error) {
	if src.Bundle != "" {
		return l.loadBundle(ctx, src.Bundle)
	}

	var (
		cfg   FilterConfig
		metas []registry.BuildingMeta
		recs  BuildingRecords
	)

	errs := make(chan error, 3)
	go func() { errs <- l.fetchJSON(ctx, ResourceFilterConfig, src.FilterConfig, &cfg) }()
	go func() { errs <- l.fetchJSON(ctx, ResourceMarkerMetadata, src.MarkerMetadata, &metas) }()
	go func() { errs <- l.fetchJSON(ctx, ResourceRecords, src.Records, &recs) }()

	for i := 0; i < 3; i++ {
		if err := <-errs; err != nil {
			return nil, err
		}
	}

	return &Result{FilterConfig: &cfg, MarkerMetadata: metas, Records: &recs}, nil
}

func (l *Loader) loadBundle(ctx context.Context, source string) (res *Result, err error) {
	ctx, endSpan := tracing.StartLoadSpan(ctx, ResourceBundle)
	defer func() { endSpan(err) }()

	body, err := l.fetch(ctx, source)
	if err != nil {
		return nil, &LoadFailure{Resource: ResourceBundle, Err: err}
	}

	var b Bundle
	if err := cbor.Unmarshal(body, &b); err != nil {
		return nil, &LoadFailure{Resource: ResourceBundle, Err: err}
	}
	if b.FilterConfig == nil || b.Records == nil {
		return nil, &LoadFailure{Resource: ResourceBundle, Err: ErrEmptyResource}
	}

	return &Result{
		FilterConfig:   b.FilterConfig,
		MarkerMetadata: b.MarkerMetadata,
		Records:        b.Records,
	}, nil
}

func (l *Loader) fetchJSON(ctx context.Context, resource, source string, dst any) (err error) {
	ctx, endSpan := tracing.StartLoadSpan(ctx, resource)
	defer func() { endSpan(err) }()

	body, err := l.fetch(ctx, source)
	if err != nil {
		return &LoadFailure{Resource: resource, Err: err}
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return &LoadFailure{Resource: resource, Err: err}
	}
	return nil
}

func (l *Loader) fetch(ctx context.Context, source string) ([]byte, error) {
	if source == "" {
		return nil, ErrEmptyResource
	}
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		return l.fetchHTTP(ctx, source)
	}
	return os.ReadFile(source)
}

func (l *Loader) fetchHTTP(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("unexpected status code %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if len(body) == 0 {
		return nil, ErrEmptyResource
	}
	return body, nil
}
