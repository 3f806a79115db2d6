package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/Thox33/sync-tool/internal/config"
	"github.com/Thox33/sync-tool/internal/mapping"
	"github.com/Thox33/sync-tool/internal/provider"
	"github.com/Thox33/sync-tool/internal/schema"
)

// Controller drives the records of one rule through their lifecycle.
//
// A run has three phases: Init resolves the rule and initializes both
// providers, Sync loads the source records and steps every item until it
// is terminal, and teardown releases the providers. Sync always tears the
// providers down before it returns.
//
// Items are processed from a FIFO work queue. Each dequeue executes exactly
// one step for the item's status; the item is re-enqueued until it reaches
// SYNCED or FAILED. A failing step fails only its item. The run is bounded
// to len(items) * step factor steps; exceeding the bound aborts the run.
type Controller struct {
	cfg        *config.Configuration
	rule       *config.Rule
	registry   *provider.Registry
	logger     *slog.Logger
	metrics    *Metrics
	runIDs     RunIDGenerator
	workers    int
	stepFactor int

	typ         *schema.Type
	markerField string
	source      endpoint
	destination endpoint
	ready       bool
}

// endpoint is one initialized side of the rule.
type endpoint struct {
	side     string
	name     string
	provider provider.Provider
	spec     mapping.Spec
	query    provider.Query
}

// Option configures a Controller.
type Option func(*Controller)

// WithRegistry sets the registry providers are built from. Required.
func WithRegistry(r *provider.Registry) Option {
	return func(c *Controller) { c.registry = r }
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// WithMetrics records run metrics into m.
func WithMetrics(m *Metrics) Option {
	return func(c *Controller) { c.metrics = m }
}

// WithRunIDGenerator sets the run id source. Default: UUIDv7Generator.
func WithRunIDGenerator(g RunIDGenerator) Option {
	return func(c *Controller) { c.runIDs = g }
}

// WithWorkers sets how many steps may run concurrently. Steps are taken
// from the front of the queue in batches of at most n and the survivors
// re-enqueued in batch order, so n = 1 is strict FIFO processing.
func WithWorkers(n int) Option {
	return func(c *Controller) {
		if n > 0 {
			c.workers = n
		}
	}
}

// WithStepFactor sets the per-item step budget of a run.
// Default: DefaultStepFactor.
func WithStepFactor(n int) Option {
	return func(c *Controller) {
		if n > 0 {
			c.stepFactor = n
		}
	}
}

// NewController creates a controller for rule.
func NewController(cfg *config.Configuration, rule *config.Rule, opts ...Option) *Controller {
	c := &Controller{
		cfg:        cfg,
		rule:       rule,
		logger:     slog.Default(),
		runIDs:     UUIDv7Generator{},
		workers:    1,
		stepFactor: DefaultStepFactor,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("rule", rule.ID())
	return c
}

// Init resolves the rule's type and mappings and initializes both
// providers. Any failure is fatal; providers initialized before the
// failure are torn down again.
func (c *Controller) Init(ctx context.Context) error {
	if c.registry == nil {
		return newRuntimeError(ErrCodeConfig, c.rule.ID(), "no provider registry configured", nil)
	}
	typ, err := c.cfg.Type(c.rule)
	if err != nil {
		return newRuntimeError(ErrCodeConfig, c.rule.ID(), "resolving internal type", err)
	}
	marker, ok := typ.SyncStatusField()
	if !ok {
		return newRuntimeError(ErrCodeConfig, c.rule.ID(),
			fmt.Sprintf("internal type %s has no syncStatus field", typ.Name()), nil)
	}
	c.typ = typ
	c.markerField = marker

	c.source, err = c.openEndpoint(ctx, "source", c.rule.Source)
	if err != nil {
		return err
	}
	c.destination, err = c.openEndpoint(ctx, "destination", c.rule.Destination)
	if err != nil {
		c.teardownEndpoint(context.WithoutCancel(ctx), c.logger, c.source)
		c.source = endpoint{}
		return err
	}
	c.ready = true
	c.logger.Debug("controller initialized",
		"type", typ.Name(),
		"source", c.source.name,
		"destination", c.destination.name)
	return nil
}

func (c *Controller) openEndpoint(ctx context.Context, side string, ep config.Endpoint) (endpoint, error) {
	spec, err := c.cfg.Mapping(ep)
	if err != nil {
		return endpoint{}, newRuntimeError(ErrCodeConfig, c.rule.ID(), "resolving "+side+" mapping", err)
	}
	pc, err := c.cfg.Provider(ep)
	if err != nil {
		return endpoint{}, newRuntimeError(ErrCodeConfig, c.rule.ID(), "resolving "+side+" provider", err)
	}
	p, err := c.registry.New(pc.Kind, pc.Name, pc.Options)
	if err != nil {
		return endpoint{}, newRuntimeError(ErrCodeProviderInit, c.rule.ID(), "creating "+side+" provider", err)
	}
	if err := p.Init(ctx); err != nil {
		return endpoint{}, newRuntimeError(ErrCodeProviderInit, c.rule.ID(), "initializing "+side+" provider", err)
	}
	return endpoint{side: side, name: pc.Name, provider: p, spec: spec, query: ep.Query}, nil
}

// Teardown releases both providers. Failures are logged and combined; a
// failing source never prevents the destination teardown.
func (c *Controller) Teardown(ctx context.Context) error {
	if !c.ready {
		return nil
	}
	c.ready = false
	return multierr.Combine(
		c.teardownEndpoint(ctx, c.logger, c.source),
		c.teardownEndpoint(ctx, c.logger, c.destination),
	)
}

func (c *Controller) teardownEndpoint(ctx context.Context, log *slog.Logger, ep endpoint) error {
	if ep.provider == nil {
		return nil
	}
	if err := ep.provider.Teardown(ctx); err != nil {
		log.Error("provider teardown failed", "side", ep.side, "provider", ep.name, "error", err)
		return fmt.Errorf("%s teardown: %w", ep.side, err)
	}
	return nil
}

// SourceData returns the rule's source records in the provider's layout.
func (c *Controller) SourceData(ctx context.Context) ([]provider.Record, error) {
	if !c.ready {
		return nil, errors.New("controller is not initialized")
	}
	raws, err := c.source.provider.GetData(ctx, c.source.spec.Type, c.source.query)
	if err != nil {
		return nil, newRuntimeError(ErrCodeSourceData, c.rule.ID(), "reading source records", err)
	}
	return raws, nil
}

// SourceRecords reads, maps, transforms and validates the rule's source
// records. A record that fails mapping or validation fails the whole call;
// every failure is reported in the returned error.
func (c *Controller) SourceRecords(ctx context.Context) ([]schema.Record, error) {
	raws, err := c.SourceData(ctx)
	if err != nil {
		return nil, err
	}

	records := make([]schema.Record, 0, len(raws))
	var errs error
	failed := 0
	for i, raw := range raws {
		rec, err := c.toCanonical(c.source.spec, raw, c.rule.Transformers)
		if err != nil {
			failed++
			c.logger.Error("source record failed validation", "index", i, "error", err)
			errs = multierr.Append(errs, fmt.Errorf("source record %d: %w", i, err))
			continue
		}
		records = append(records, rec)
	}
	if errs != nil {
		return nil, newRuntimeError(ErrCodeValidation, c.rule.ID(),
			fmt.Sprintf("%d of %d source records failed mapping or validation", failed, len(raws)), errs)
	}
	return records, nil
}

func (c *Controller) toCanonical(spec mapping.Spec, raw provider.Record, transformers []mapping.Transformer) (schema.Record, error) {
	data, err := mapping.Apply(spec.ToCanonical(raw), transformers)
	if err != nil {
		return nil, err
	}
	return c.typ.Validate(data)
}

// Sync runs the rule once and tears the providers down. The report is
// returned even when the run is aborted.
func (c *Controller) Sync(ctx context.Context, dryRun bool) (*Report, error) {
	if !c.ready {
		return nil, errors.New("controller is not initialized")
	}
	runID := c.runIDs.Generate()
	log := c.logger.With("run_id", runID)
	report := &Report{RunID: runID, Rule: c.rule.ID(), DryRun: dryRun}
	defer func() {
		if err := c.Teardown(context.WithoutCancel(ctx)); err != nil {
			log.Warn("teardown finished with errors", "error", err)
		}
	}()

	log.Info("sync starting", "dry_run", dryRun, "workers", c.workers)

	records, err := c.SourceRecords(ctx)
	if err != nil {
		return report, withRunID(err, runID)
	}

	idField := c.typ.Options().IDField
	items := make([]*Item, 0, len(records))
	queue := newWorkQueue(len(records))
	for i, rec := range records {
		key := fmt.Sprint(rec[idField])
		if rec[idField] == nil {
			key = fmt.Sprintf("#%d", i)
		}
		it := NewItem(key, rec, c.markerField)
		it.Advance()
		items = append(items, it)
		queue.Enqueue(it)
	}

	quota := NewQuotaEnforcer(len(items) * c.stepFactor)
	report.MaxSteps = quota.MaxSteps()
	runErr := c.dispatch(ctx, log, runID, queue, quota, report, dryRun)

	for _, it := range items {
		report.Items = append(report.Items, newItemResult(it))
		c.metrics.observeItem(c.rule.ID(), it.Status)
	}
	c.metrics.setQueueDepth(c.rule.ID(), 0)

	counts := report.Counts()
	attrs := []any{"items", len(items), "steps", report.Steps}
	for _, s := range Statuses {
		if counts[s] > 0 {
			attrs = append(attrs, s.String(), counts[s])
		}
	}
	log.Info("sync finished", attrs...)
	return report, runErr
}

// dispatch is the work loop. It is the only goroutine that touches the
// queue, the quota and the report.
func (c *Controller) dispatch(ctx context.Context, log *slog.Logger, runID string, queue *workQueue, quota *QuotaEnforcer, report *Report, dryRun bool) error {
	for {
		if err := ctx.Err(); err != nil {
			rest := queue.Close()
			log.Warn("sync cancelled", "pending", len(rest))
			e := newRuntimeError(ErrCodeCanceled, c.rule.ID(), "run cancelled", err)
			e.RunID = runID
			return e
		}

		var quotaErr error
		batch := make([]*Item, 0, c.workers)
		for len(batch) < c.workers {
			if queue.Len() == 0 {
				break
			}
			if err := quota.Check(runID); err != nil {
				quotaErr = err
				break
			}
			it, _ := queue.TryDequeue()
			batch = append(batch, it)
		}

		if len(batch) > 0 {
			outcomes := c.runBatch(ctx, batch, dryRun)
			for i, it := range batch {
				c.record(log, report, it, outcomes[i])
				it.Advance()
				if !it.Terminal() {
					queue.Enqueue(it)
				}
			}
			c.metrics.setQueueDepth(c.rule.ID(), queue.Len())
		}

		if quotaErr != nil {
			rest := queue.Close()
			log.Error("step limit exceeded", "limit", quota.MaxSteps(), "pending", len(rest))
			e := newRuntimeError(ErrCodeQuotaExceeded, c.rule.ID(), "run aborted", quotaErr)
			e.RunID = runID
			return e
		}
		if len(batch) == 0 {
			return nil
		}
	}
}

// runBatch executes one step per item. Steps run on a context that is not
// cancelled with ctx so a started step always completes.
func (c *Controller) runBatch(ctx context.Context, batch []*Item, dryRun bool) []stepOutcome {
	stepCtx := context.WithoutCancel(ctx)
	outcomes := make([]stepOutcome, len(batch))
	if len(batch) == 1 {
		outcomes[0] = c.step(stepCtx, batch[0], dryRun)
		return outcomes
	}
	var g errgroup.Group
	g.SetLimit(c.workers)
	for i, it := range batch {
		g.Go(func() error {
			outcomes[i] = c.step(stepCtx, it, dryRun)
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

func (c *Controller) record(log *slog.Logger, report *Report, it *Item, out stepOutcome) {
	report.Steps++
	switch {
	case out.created:
		report.Created++
	case out.planned:
		report.Planned++
	case out.fetched:
		report.Fetched++
	case out.updated:
		report.Updated++
	}
	c.metrics.observeStep(c.rule.ID(), out.name, out.elapsed.Seconds(), out.err)

	if out.err != nil {
		log.Error("step failed", "item", it.Key, "step", out.name, "error", out.err)
		return
	}
	attrs := []any{"item", it.Key, "step", out.name, "status", it.Status.String()}
	if len(out.diff) > 0 {
		attrs = append(attrs, "fields", out.diff)
	}
	if out.direction != "" {
		attrs = append(attrs, "direction", out.direction)
	}
	log.Debug("step done", attrs...)
}
