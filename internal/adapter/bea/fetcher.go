package bea

import (
	"context"
	"log/slog"
	"slices"
	"time"

	"github.com/couchcryptid/rpp-data-etl-service/internal/domain"
	"github.com/couchcryptid/rpp-data-etl-service/internal/observability"
	"github.com/dustin/go-humanize"
	"github.com/jonboulle/clockwork"
)

// DataSource fetches one category of one class.
type DataSource interface {
	GetData(ctx context.Context, class domain.Class, category domain.Category) (Result, error)
}

// ArtifactWriter persists the fetch result of one class.
type ArtifactWriter interface {
	Write(class domain.Class, a domain.Artifact) error
}

// ClassSummary describes what a fetch collected for one class.
type ClassSummary struct {
	Class          domain.Class
	Geographies    int
	Years          []string
	Records        map[domain.Category]int
	UpstreamErrors []domain.Category
}

// Fetcher issues sequential, throttled requests and writes one artifact per class.
type Fetcher struct {
	source  DataSource
	writer  ArtifactWriter
	clock   clockwork.Clock
	delay   time.Duration
	metrics *observability.Metrics
	logger  *slog.Logger

	requests int
}

// NewFetcher creates a Fetcher. delay is the minimum gap between successive requests.
func NewFetcher(source DataSource, writer ArtifactWriter, clock clockwork.Clock, delay time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Fetcher {
	return &Fetcher{
		source:  source,
		writer:  writer,
		clock:   clock,
		delay:   delay,
		metrics: metrics,
		logger:  logger,
	}
}

// FetchAll fetches every class in order. A failure leaves artifacts of
// already completed classes in place.
func (f *Fetcher) FetchAll(ctx context.Context) ([]ClassSummary, error) {
	summaries := make([]ClassSummary, 0, len(domain.Classes))
	for _, class := range domain.Classes {
		s, err := f.FetchClass(ctx, class)
		if err != nil {
			return summaries, err
		}
		summaries = append(summaries, s)
	}
	return summaries, nil
}

// FetchClass fetches all categories of one class and writes its artifact
// only once every category has been retrieved.
func (f *Fetcher) FetchClass(ctx context.Context, class domain.Class) (ClassSummary, error) {
	artifact := make(domain.Artifact, len(domain.Categories))
	summary := ClassSummary{Class: class, Records: make(map[domain.Category]int, len(domain.Categories))}

	for _, category := range domain.Categories {
		if err := f.throttle(ctx); err != nil {
			return ClassSummary{}, err
		}

		res, err := f.source.GetData(ctx, class, category)
		f.requests++
		if err != nil {
			return ClassSummary{}, err
		}

		if res.UpstreamError != nil {
			f.metrics.FetchRequests.WithLabelValues(string(class), "upstream_error").Inc()
			f.logger.Warn("bea reported an error, category left empty",
				"class", class,
				"category", category,
				"error", string(res.UpstreamError),
			)
			summary.UpstreamErrors = append(summary.UpstreamErrors, category)
		} else {
			f.metrics.FetchRequests.WithLabelValues(string(class), "success").Inc()
		}

		records := res.Records
		if records == nil {
			records = []domain.RawRecord{}
		}
		artifact[string(category)] = records
		summary.Records[category] = len(records)
		f.logger.Info("fetched category",
			"class", class,
			"category", category,
			"records", humanize.Comma(int64(len(records))),
		)
	}

	if err := f.writer.Write(class, artifact); err != nil {
		return ClassSummary{}, err
	}

	summarize(&summary, artifact)
	f.logger.Info("saved artifact",
		"class", class,
		"geographies", summary.Geographies,
		"years", summary.Years,
	)
	return summary, nil
}

// throttle waits out the configured delay before every request but the first.
func (f *Fetcher) throttle(ctx context.Context) error {
	if f.requests == 0 || f.delay <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-f.clock.After(f.delay):
		return nil
	}
}

func summarize(s *ClassSummary, a domain.Artifact) {
	geos := make(map[string]struct{})
	years := make(map[string]struct{})
	for _, records := range a {
		for _, r := range records {
			geos[r.GeoFips] = struct{}{}
			years[r.TimePeriod] = struct{}{}
		}
	}
	s.Geographies = len(geos)
	s.Years = make([]string, 0, len(years))
	for y := range years {
		s.Years = append(s.Years, y)
	}
	slices.Sort(s.Years)
}
