package reporting

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/farmlink-lab/farm-insights/internal/core/aggregation"
	"github.com/farmlink-lab/farm-insights/internal/core/storage"
	"github.com/farmlink-lab/farm-insights/internal/report"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

var (
	// ErrInvalidRequest marks request validation errors that should return HTTP 400.
	ErrInvalidRequest = errors.New("invalid report request")
	// ErrUnknownReport marks a report id with no definition (HTTP 404).
	ErrUnknownReport = errors.New("unknown report")
	// ErrFarmNotFound marks a farmer report for a farm that does not exist (HTTP 404).
	ErrFarmNotFound = errors.New("farm not found")
)

// Options tunes report generation.
type Options struct {
	TopN         int
	FetchTimeout time.Duration

	// MaxWindowMonths caps the requested window; zero means no cap.
	MaxWindowMonths int
}

// Service validates report requests, fetches the row sets a report needs and
// runs the aggregation pass. Reports are recomputed on every request.
type Service struct {
	catalog  *report.Catalog
	source   storage.RowSource
	opts     Options
	runGroup singleflight.Group // Dedupe concurrent identical requests
	nowFn    func() time.Time
	newRunID func() string
}

// NewService creates a new reporting service.
func NewService(catalog *report.Catalog, source storage.RowSource, opts Options) *Service {
	return &Service{
		catalog: catalog,
		source:  source,
		opts:    opts,
		nowFn: func() time.Time {
			return time.Now().UTC()
		},
		newRunID: func() string {
			return uuid.New().String()
		},
	}
}

// Definitions returns every report the service can generate, sorted by id.
func (s *Service) Definitions() []report.Definition {
	return s.catalog.List()
}

// Generate builds one report. Identical requests in flight at the same time
// share a single run and therefore a single run id.
func (s *Service) Generate(ctx context.Context, req ReportRequest) (*ReportResponse, error) {
	def, window, err := s.normalizeAndValidate(req)
	if err != nil {
		return nil, err
	}

	key := fmt.Sprintf("%s|%s|%s|%d|%d", def.ID, req.From, req.To, req.FarmID, req.ProductID)
	// The shared run must outlive any single caller; FetchTimeout still bounds it.
	runCtx := context.WithoutCancel(ctx)
	ch := s.runGroup.DoChan(key, func() (interface{}, error) {
		return s.run(runCtx, def, window, req)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			slog.Debug("[Reports] Shared in-flight run", "report", def.ID)
		}
		return res.Val.(*ReportResponse), nil
	}
}

func (s *Service) run(ctx context.Context, def report.Definition, window aggregation.Window, req ReportRequest) (*ReportResponse, error) {
	if s.opts.FetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.FetchTimeout)
		defer cancel()
	}

	runID := s.newRunID()
	params := storage.Params{From: window.From, To: window.To, FarmID: req.FarmID, ProductID: req.ProductID}
	builder := def.Builder()

	in := report.Input{Window: window, ProductID: req.ProductID}
	if builder.FarmScoped {
		farm, err := s.loadFarm(ctx, params)
		if err != nil {
			return nil, err
		}
		in.Farm = farm
	}

	rows, err := s.fetchRowSets(ctx, builder.RowSets, params)
	if err != nil {
		return nil, err
	}
	in.Rows = rows

	started := s.nowFn()
	ds := builder.Build(in, report.Options{TopN: s.opts.TopN})

	if ds.Diagnostics.Discarded > 0 {
		slog.Warn("[Reports] Rows discarded during aggregation",
			"report", def.ID,
			"run_id", runID,
			"discarded", ds.Diagnostics.Discarded,
		)
	}
	if len(ds.Diagnostics.Uncatalogued) > 0 {
		slog.Debug("[Reports] Uncatalogued keys seeded from activity rows",
			"report", def.ID,
			"run_id", runID,
			"keys", ds.Diagnostics.Uncatalogued,
		)
	}
	slog.Info("[Reports] Report generated",
		"report", def.ID,
		"run_id", runID,
		"groups", len(ds.Groups),
		"months", len(ds.Months),
		"duration", s.nowFn().Sub(started),
	)

	return &ReportResponse{
		RunID:       runID,
		GeneratedAt: s.nowFn(),
		Definition:  def,
		Dataset:     ds,
	}, nil
}

func (s *Service) normalizeAndValidate(req ReportRequest) (report.Definition, aggregation.Window, error) {
	if req.ReportID == "" {
		return report.Definition{}, aggregation.Window{}, invalidRequestf("report id is required")
	}
	def, ok := s.catalog.Get(req.ReportID)
	if !ok {
		return report.Definition{}, aggregation.Window{}, fmt.Errorf("%w: %s", ErrUnknownReport, req.ReportID)
	}

	window, err := aggregation.ParseWindow(req.From, req.To)
	if err != nil {
		return def, aggregation.Window{}, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	if limit := s.opts.MaxWindowMonths; limit > 0 && window.MonthSpan() > limit {
		return def, window, invalidRequestf("window spans %d months, at most %d allowed", window.MonthSpan(), limit)
	}
	if req.FarmID < 0 {
		return def, window, invalidRequestf("farm_id must be positive")
	}
	if req.ProductID < 0 {
		return def, window, invalidRequestf("product_id must be positive")
	}
	if def.Builder().FarmScoped && req.FarmID == 0 {
		return def, window, invalidRequestf("farm_id is required for report %s", def.ID)
	}
	if req.FarmID != 0 && !def.Accepts(report.FilterFarmID) {
		return def, window, invalidRequestf("report %s does not accept farm_id", def.ID)
	}
	if req.ProductID != 0 && !def.Accepts(report.FilterProductID) {
		return def, window, invalidRequestf("report %s does not accept product_id", def.ID)
	}

	return def, window, nil
}

func (s *Service) loadFarm(ctx context.Context, params storage.Params) (*report.FarmRow, error) {
	rows, err := s.source.FetchRows(ctx, storage.Farm, params)
	if err != nil {
		return nil, fmt.Errorf("load farm: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: %d", ErrFarmNotFound, params.FarmID)
	}
	farm := report.NormalizeFarm(rows[0])
	return &farm, nil
}

// fetchRowSets runs one query per row set concurrently. The first failure
// cancels the others.
func (s *Service) fetchRowSets(ctx context.Context, sets []storage.RowSet, params storage.Params) (map[storage.RowSet][]aggregation.RawRow, error) {
	results := make([][]aggregation.RawRow, len(sets))
	g, gctx := errgroup.WithContext(ctx)
	for i, set := range sets {
		g.Go(func() error {
			rows, err := s.source.FetchRows(gctx, set, params)
			if err != nil {
				return fmt.Errorf("fetch %s: %w", set, err)
			}
			results[i] = rows
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make(map[storage.RowSet][]aggregation.RawRow, len(sets))
	for i, set := range sets {
		out[set] = results[i]
	}
	return out, nil
}

func invalidRequestf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidRequest, fmt.Sprintf(format, args...))
}
