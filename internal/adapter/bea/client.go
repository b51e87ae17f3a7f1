// Package bea fetches Regional Price Parity series from the BEA data API.
package bea

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/couchcryptid/rpp-data-etl-service/internal/domain"
	"github.com/couchcryptid/rpp-data-etl-service/internal/observability"
)

// ErrUpstream is returned when the API responds with a non-success status or
// a body that cannot be decoded.
var ErrUpstream = errors.New("bea upstream failure")

// Result is the decoded payload of one GetData call.
type Result struct {
	Records []domain.RawRecord
	// UpstreamError holds the error object BEA reported in place of data, if any.
	UpstreamError json.RawMessage
}

// Client calls the BEA GetData method for the Regional dataset.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a BEA API client.
func NewClient(apiKey, baseURL string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		apiKey:  apiKey,
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		metrics: metrics,
		logger:  logger,
	}
}

// GetData fetches every year and geography of one category for one class.
func (c *Client) GetData(ctx context.Context, class domain.Class, category domain.Category) (Result, error) {
	params := url.Values{
		"UserID":       {c.apiKey},
		"method":       {"GetData"},
		"DataSetName":  {"Regional"},
		"ResultFormat": {"JSON"},
		"TableName":    {class.Table()},
		"LineCode":     {strconv.Itoa(category.LineCode())},
		"GeoFips":      {class.GeoFips()},
		"Year":         {"ALL"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return Result{}, fmt.Errorf("create request: %w", err)
	}

	c.logger.Debug("bea request",
		"table", class.Table(),
		"line_code", category.LineCode(),
		"geo_fips", class.GeoFips(),
	)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.metrics.FetchDuration.WithLabelValues(string(class)).Observe(time.Since(start).Seconds())
	if err != nil {
		return Result{}, fmt.Errorf("%s %s request: %w", class.Table(), category, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Result{}, fmt.Errorf("%w: status %d: %s", ErrUpstream, resp.StatusCode, body)
	}

	var payload response
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Result{}, fmt.Errorf("%w: decode response: %w", ErrUpstream, err)
	}

	if e := payload.upstreamError(); e != nil {
		return Result{UpstreamError: e}, nil
	}
	return Result{Records: payload.BEAAPI.Results.Data}, nil
}

// BEA API response types.

type response struct {
	BEAAPI struct {
		Error   json.RawMessage `json:"Error"`
		Results struct {
			Data  []domain.RawRecord `json:"Data"`
			Error json.RawMessage    `json:"Error"`
		} `json:"Results"`
	} `json:"BEAAPI"`
}

func (r response) upstreamError() json.RawMessage {
	for _, e := range []json.RawMessage{r.BEAAPI.Results.Error, r.BEAAPI.Error} {
		if len(e) > 0 && string(e) != "null" {
			return e
		}
	}
	return nil
}
