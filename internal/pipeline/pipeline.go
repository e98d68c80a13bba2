// Package pipeline wires loading, reconciliation, sponsor resolution,
// revenue enrichment and filtering into one run and hands the resulting
// row-sets to the configured sinks.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"trialjoin/internal/cache"
	"trialjoin/internal/config"
	"trialjoin/internal/filter"
	"trialjoin/internal/reconcile"
	"trialjoin/internal/registry"
	"trialjoin/internal/revenue"
	"trialjoin/internal/rowset"
	"trialjoin/internal/sponsor"
	"trialjoin/internal/tabular"
)

// Output names, in write order.
const (
	OutTrialTroveClean = "trialtrove_clean"
	OutCTGovClean      = "ctgov_clean"
	OutLeft            = "left"
	OutJoin            = "join"
	OutUnion           = "union"
	OutLeadSponsor     = "lead_sponsor"
	OutRevenue         = "revenue"
	OutFiltered        = "filtered"
)

// TableSink receives every output row-set of a run.
type TableSink interface {
	WriteTable(ctx context.Context, table string, t *rowset.Table, runID uuid.UUID) (int64, error)
}

// Recorder keeps a ledger of runs.
type Recorder interface {
	Begin(ctx context.Context, id uuid.UUID, inputKey string) error
	RecordOutput(ctx context.Context, id uuid.UUID, name, path string, rows int) error
	Finish(ctx context.Context, id uuid.UUID, runErr error) error
}

// Named is one output row-set.
type Named struct {
	Name  string
	Table *rowset.Table
}

// Result is the product of Process.
type Result struct {
	RunID    uuid.UUID
	InputKey string
	CacheHit bool
	Outputs  []Named
	// Written maps output names to the files actually written.
	Written map[string]string
}

// Output returns the named row-set or nil.
func (r *Result) Output(name string) *rowset.Table {
	for _, o := range r.Outputs {
		if o.Name == name {
			return o.Table
		}
	}
	return nil
}

// Pipeline runs the whole reconciliation and enrichment flow. Cache, Sink
// and Ledger are optional.
type Pipeline struct {
	Config *config.Config
	Cache  *cache.Inputs
	Sink   TableSink
	Ledger Recorder
	Log    *zap.Logger

	now func() time.Time
}

// New returns a pipeline over cfg with a fresh input cache.
func New(cfg *config.Config, log *zap.Logger) *Pipeline {
	if log == nil {
		log = zap.NewNop()
	}
	p := &Pipeline{Config: cfg, Log: log, now: time.Now}
	p.Cache = cache.New(p.loadSources, log.Named("cache"))
	return p
}

// Run processes the inputs, writes every output and records the run.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	runID := uuid.New()
	log := p.Log.With(zap.String("run_id", runID.String()))
	start := p.clock()

	if err := p.Config.RequireInputs(); err != nil {
		return nil, err
	}
	inputKey, err := cache.Key(p.Config.Inputs.TrialTrove, p.Config.Inputs.ClinicalTrials)
	if err != nil {
		return nil, err
	}
	if p.Ledger != nil {
		if err := p.Ledger.Begin(ctx, runID, inputKey); err != nil {
			log.Warn("ledger unavailable", zap.Error(err))
		}
	}

	res, err := p.Process(ctx)
	if err == nil {
		res.RunID = runID
		if res.InputKey == "" {
			res.InputKey = inputKey
		}
		p.Write(ctx, res, log)
	}

	if p.Ledger != nil {
		if ferr := p.Ledger.Finish(ctx, runID, err); ferr != nil {
			log.Warn("ledger finish failed", zap.Error(ferr))
		}
	}
	if err != nil {
		log.Error("run failed", zap.Error(err))
		return nil, err
	}
	log.Info("run complete",
		zap.Bool("cache_hit", res.CacheHit),
		zap.Int("outputs", len(res.Written)),
		zap.Duration("elapsed", p.clock().Sub(start).Round(time.Millisecond)))
	return res, nil
}

// Process loads the inputs and computes every output row-set without
// writing anything.
func (p *Pipeline) Process(ctx context.Context) (*Result, error) {
	cfg := p.Config
	if err := cfg.RequireInputs(); err != nil {
		return nil, err
	}

	var (
		src     cache.Sources
		hit     bool
		lookups revenue.Lookups
	)
	in := cfg.Inputs
	g, gctx := errgroup.WithContext(ctx)
	lookupAt := func(dst **rowset.Table, path, sheet string) {
		if path == "" {
			return
		}
		g.Go(func() error {
			t, err := revenue.LoadLookup(gctx, path, sheet)
			if err != nil {
				return err
			}
			*dst = t
			return nil
		})
	}

	g.Go(func() error {
		var err error
		if p.Cache != nil {
			src, hit, err = p.Cache.Get(gctx, in.TrialTrove, in.ClinicalTrials)
			return err
		}
		src, err = p.loadSources(gctx, in.TrialTrove, in.ClinicalTrials)
		return err
	})
	lookupAt(&lookups.Sponsor, in.SponsorLookup, in.SponsorSheet)
	lookupAt(&lookups.US, in.USLookup, in.USSheet)
	lookupAt(&lookups.WW, in.WWLookup, in.WWSheet)
	if err := g.Wait(); err != nil {
		return nil, err
	}

	outs, err := Stages(src.TrialTrove, src.ClinicalTrials, lookups, cfg, p.Log)
	if err != nil {
		return nil, err
	}
	return &Result{
		InputKey: src.Key,
		CacheHit: hit,
		Outputs:  outs,
		Written:  make(map[string]string),
	}, nil
}

// Stages runs the core transformations over cleaned registries.
func Stages(tt, ct *rowset.Table, lookups revenue.Lookups, cfg *config.Config, log *zap.Logger) ([]Named, error) {
	if log == nil {
		log = zap.NewNop()
	}
	rec := reconcile.Run(tt, ct, cfg.ReconcileOptions())
	log.Info("reconciled",
		zap.Int("left", rec.Left.Len()),
		zap.Int("join", rec.Join.Len()),
		zap.Int("right_only", rec.RightOnly.Len()),
		zap.Int("union", rec.Union.Len()))

	lead := sponsor.AddLeadSponsor(rec.Union)
	enriched := revenue.Enrich(lead, lookups, cfg.RevenueOptions(), log.Named("revenue"))

	outs := []Named{
		{OutTrialTroveClean, tt},
		{OutCTGovClean, ct},
		{OutLeft, rec.Left},
		{OutJoin, rec.Join},
		{OutUnion, rec.Union},
		{OutLeadSponsor, lead},
		{OutRevenue, enriched},
	}
	if cfg.Filter.Enabled {
		filtered, err := filter.Apply(enriched, cfg.Criteria(), log.Named("filter"))
		if err != nil {
			return nil, fmt.Errorf("filter: %w", err)
		}
		outs = append(outs, Named{OutFiltered, filtered})
	}
	return outs, nil
}

// Write saves every output that is not skipped, pushes it to the sink and
// records it in the ledger. Persistence failures are logged, never returned.
func (p *Pipeline) Write(ctx context.Context, res *Result, log *zap.Logger) {
	if log == nil {
		log = p.Log
	}
	for _, o := range res.Outputs {
		if p.Config.Skipped(o.Name) {
			continue
		}
		path, err := tabular.SaveWithFallback(p.Config.OutputPath(o.Name), o.Table, log)
		if err != nil {
			continue
		}
		res.Written[o.Name] = path
		log.Info("output written", zap.String("output", o.Name), zap.String("path", path), zap.Int("rows", o.Table.Len()))

		if p.Sink != nil {
			if _, err := p.Sink.WriteTable(ctx, o.Name, tabular.Sanitize(o.Table), res.RunID); err != nil {
				log.Warn("sink write failed", zap.String("output", o.Name), zap.Error(err))
			}
		}
		if p.Ledger != nil {
			if err := p.Ledger.RecordOutput(ctx, res.RunID, o.Name, path, o.Table.Len()); err != nil {
				log.Warn("ledger record failed", zap.String("output", o.Name), zap.Error(err))
			}
		}
	}
}

// loadSources reads and cleans both registry files concurrently.
func (p *Pipeline) loadSources(ctx context.Context, trialTrovePath, clinicalTrialsPath string) (cache.Sources, error) {
	var tt, ct *rowset.Table
	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		raw, err := tabular.Read(trialTrovePath, p.Config.Inputs.TrialTroveSheet)
		if err != nil {
			return fmt.Errorf("read trialtrove: %w", err)
		}
		tt = registry.LoadTrialTrove(raw)
		return nil
	})
	g.Go(func() error {
		raw, err := tabular.Read(clinicalTrialsPath, "")
		if err != nil {
			return fmt.Errorf("read clinicaltrials: %w", err)
		}
		ct = registry.LoadClinicalTrials(raw, registry.DefaultClinicalTrialsOptions())
		return nil
	})
	if err := g.Wait(); err != nil {
		return cache.Sources{}, err
	}
	p.Log.Info("sources loaded",
		zap.Int("trialtrove", tt.Len()),
		zap.Int("clinicaltrials", ct.Len()))
	return cache.Sources{TrialTrove: tt, ClinicalTrials: ct}, nil
}

func (p *Pipeline) clock() time.Time {
	if p.now == nil {
		return time.Now()
	}
	return p.now()
}
