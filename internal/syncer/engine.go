// Package syncer mirrors entity collections of a remote indexing service into
// local tables, one resumable pagination loop per (chain, entity type).
package syncer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"dexIngest/internal/config"
	"dexIngest/internal/metrics"
	"dexIngest/internal/model"
	"dexIngest/internal/storage"
	"dexIngest/internal/subgraph"
)

// ErrSyncInProgress is returned when a pass is requested while one is running.
var ErrSyncInProgress = errors.New("sync already in progress")

// Mode selects where each entity loop starts.
type Mode string

const (
	// ModeIncremental resumes from the stored cursor.
	ModeIncremental Mode = "incremental"
	// ModeFull starts from the zero marker, or the chain start block.
	ModeFull Mode = "full"
)

// Querier executes one GraphQL request against an endpoint.
type Querier interface {
	Query(ctx context.Context, endpoint, query string, variables map[string]any) (subgraph.Data, error)
}

// ChainSource yields the chains a pass covers.
type ChainSource interface {
	Enabled() []config.ChainConfig
}

type Options struct {
	BatchSize      int
	RetryCount     int
	RetryDelay     time.Duration
	MaxConcurrency int
	// MaxPages bounds pages per entity loop in one pass; 0 means unbounded.
	MaxPages int
	// Entities limits the pass to the named entity types; empty means all.
	Entities []string
}

// EntityResult is the outcome of one (chain, entity type) loop.
type EntityResult struct {
	ChainID  string        `json:"chain_id"`
	Entity   string        `json:"entity"`
	Status   string        `json:"status"`
	Rows     int           `json:"rows"`
	Pages    int           `json:"pages"`
	Dropped  int           `json:"dropped"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Summary is the outcome of one sync pass.
type Summary struct {
	RunID     string         `json:"run_id"`
	Mode      Mode           `json:"mode"`
	StartedAt time.Time      `json:"started_at"`
	Duration  time.Duration  `json:"duration"`
	Results   []EntityResult `json:"results"`
}

// Failed returns the number of loops that ended in failure.
func (s Summary) Failed() int {
	n := 0
	for _, r := range s.Results {
		if r.Status == model.SyncFailed {
			n++
		}
	}
	return n
}

// Rows returns the number of rows upserted across every loop.
func (s Summary) Rows() int {
	n := 0
	for _, r := range s.Results {
		n += r.Rows
	}
	return n
}

// Engine runs sync passes over every enabled chain and entity type.
type Engine struct {
	client      Querier
	store       storage.SyncStore
	chains      ChainSource
	descriptors []Descriptor
	opts        Options
	metrics     *metrics.Metrics
	logger      *zap.Logger

	running atomic.Bool

	mu   sync.Mutex
	last *Summary
}

func NewEngine(client Querier, store storage.SyncStore, chains ChainSource, opts Options, m *metrics.Metrics, logger *zap.Logger) (*Engine, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if m == nil {
		m = metrics.Nop()
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 500
	}
	if opts.RetryCount <= 0 {
		opts.RetryCount = 1
	}
	if opts.MaxConcurrency <= 0 {
		opts.MaxConcurrency = 1
	}

	descriptors, err := selectEntities(opts.Entities)
	if err != nil {
		return nil, err
	}
	return &Engine{
		client:      client,
		store:       store,
		chains:      chains,
		descriptors: descriptors,
		opts:        opts,
		metrics:     m,
		logger:      logger,
	}, nil
}

func selectEntities(names []string) ([]Descriptor, error) {
	if len(names) == 0 {
		return Entities, nil
	}
	out := make([]Descriptor, 0, len(names))
	for _, name := range names {
		d, ok := Lookup(name)
		if !ok {
			return nil, fmt.Errorf("unknown entity type: %s", name)
		}
		out = append(out, d)
	}
	return out, nil
}

// Running reports whether a pass is in progress.
func (e *Engine) Running() bool {
	return e.running.Load()
}

// LastSummary returns the summary of the most recent finished pass.
func (e *Engine) LastSummary() (Summary, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.last == nil {
		return Summary{}, false
	}
	return *e.last, true
}

// Run executes one pass and blocks until it finishes.
func (e *Engine) Run(ctx context.Context, mode Mode) (Summary, error) {
	if !e.running.CompareAndSwap(false, true) {
		return Summary{}, ErrSyncInProgress
	}
	defer e.running.Store(false)
	return e.run(ctx, mode, uuid.NewString())
}

// Start launches one pass in the background and returns its run id.
func (e *Engine) Start(ctx context.Context, mode Mode) (string, error) {
	if !e.running.CompareAndSwap(false, true) {
		return "", ErrSyncInProgress
	}
	runID := uuid.NewString()
	go func() {
		defer e.running.Store(false)
		if _, err := e.run(ctx, mode, runID); err != nil {
			e.logger.Warn("sync pass aborted", zap.String("run_id", runID), zap.Error(err))
		}
	}()
	return runID, nil
}

func (e *Engine) run(ctx context.Context, mode Mode, runID string) (Summary, error) {
	started := time.Now()
	summary := Summary{RunID: runID, Mode: mode, StartedAt: started.UTC()}
	e.metrics.SyncRuns.WithLabelValues(string(mode)).Inc()

	var chains []config.ChainConfig
	for _, chain := range e.chains.Enabled() {
		if chain.QueryEndpoint() == "" {
			e.logger.Warn("chain has no query endpoint, skipping", zap.String("chain", chain.ID))
			continue
		}
		chains = append(chains, chain)
	}

	results := make([]EntityResult, len(chains)*len(e.descriptors))
	var g errgroup.Group
	g.SetLimit(e.opts.MaxConcurrency)
	for ci, chain := range chains {
		for di, d := range e.descriptors {
			i := ci*len(e.descriptors) + di
			chain, d := chain, d
			g.Go(func() error {
				results[i] = e.syncEntity(ctx, runID, chain, d, mode)
				return nil
			})
		}
	}
	_ = g.Wait()

	summary.Results = results
	summary.Duration = time.Since(started)
	e.metrics.SyncRunSeconds.Observe(summary.Duration.Seconds())

	e.mu.Lock()
	e.last = &summary
	e.mu.Unlock()

	e.logger.Info("sync pass complete",
		zap.String("run_id", runID),
		zap.String("mode", string(mode)),
		zap.Int("chains", len(chains)),
		zap.Int("rows", summary.Rows()),
		zap.Int("failed", summary.Failed()),
		zap.Duration("duration", summary.Duration),
	)
	return summary, ctx.Err()
}

func (e *Engine) syncEntity(ctx context.Context, runID string, chain config.ChainConfig, d Descriptor, mode Mode) EntityResult {
	res := EntityResult{ChainID: chain.ID, Entity: d.Name, Status: model.SyncRunning}
	logger := e.logger.With(zap.String("chain", chain.ID), zap.String("entity", d.Name), zap.String("run_id", runID))

	status := model.SyncStatus{
		ChainID:    chain.ID,
		EntityType: d.Name,
		RunID:      runID,
		Status:     model.SyncRunning,
		StartTime:  time.Now().UTC(),
	}
	if err := e.store.SaveSyncStatus(ctx, status); err != nil {
		logger.Warn("save sync status failed", zap.Error(err))
	}

	err := e.paginate(ctx, chain, d, mode, &res, logger)

	end := time.Now().UTC()
	status.EndTime = &end
	res.Duration = end.Sub(status.StartTime)
	if err != nil {
		res.Status = model.SyncFailed
		res.Error = err.Error()
		status.Status = model.SyncFailed
		status.ErrorMessage = err.Error()
		e.metrics.SyncFailures.WithLabelValues(chain.ID, d.Name).Inc()
		logger.Warn("entity sync failed", zap.Int("pages", res.Pages), zap.Error(err))
		if rerr := e.store.RecordCursorError(context.WithoutCancel(ctx), chain.ID, d.Name, err.Error()); rerr != nil {
			logger.Warn("record cursor error failed", zap.Error(rerr))
		}
	} else {
		res.Status = model.SyncCompleted
		status.Status = model.SyncCompleted
		logger.Debug("entity sync complete", zap.Int("pages", res.Pages), zap.Int("rows", res.Rows))
	}
	if err := e.store.SaveSyncStatus(context.WithoutCancel(ctx), status); err != nil {
		logger.Warn("save sync status failed", zap.Error(err))
	}
	return res
}

func (e *Engine) paginate(ctx context.Context, chain config.ChainConfig, d Descriptor, mode Mode, res *EntityResult, logger *zap.Logger) error {
	cursor, err := e.store.GetOrCreateCursor(ctx, chain.ID, d.Name)
	if err != nil {
		return fmt.Errorf("load cursor: %w", err)
	}
	endpoint := d.endpoint(chain)
	p := newPager(d, cursor, mode, chain.StartBlock)
	batch := e.opts.BatchSize

	for page := 0; e.opts.MaxPages == 0 || page < e.opts.MaxPages; page++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		query, vars := d.query(batch, p)
		data, err := e.fetch(ctx, endpoint, query, vars)
		if err != nil {
			return fmt.Errorf("page %d: %w", page, err)
		}
		nodes, err := nodesOf(data, d.Name)
		if err != nil {
			return fmt.Errorf("page %d: %w", page, err)
		}
		if len(nodes) == 0 {
			return nil
		}

		var rows []model.Row
		for _, n := range nodes {
			mapped, err := d.mapNode(n)
			if err != nil {
				res.Dropped++
				logger.Warn("dropping malformed row", zap.Error(err))
				continue
			}
			rows = append(rows, mapped...)
		}

		full := len(nodes) >= batch
		if !p.advance(nodes) && full {
			return fmt.Errorf("page %d: cursor did not advance", page)
		}
		cursor = p.apply(cursor)
		if err := e.store.CommitPage(ctx, rows, cursor); err != nil {
			return fmt.Errorf("commit page %d: %w", page, err)
		}

		res.Pages++
		res.Rows += len(rows)
		e.metrics.SyncPages.WithLabelValues(chain.ID, d.Name).Inc()
		e.metrics.SyncRows.WithLabelValues(chain.ID, d.Name).Add(float64(len(rows)))

		if !full {
			return nil
		}
	}
	return nil
}

// fetch retries transport failures with a fixed delay. Errors reported by the
// remote are returned at once.
func (e *Engine) fetch(ctx context.Context, endpoint, query string, vars map[string]any) (subgraph.Data, error) {
	var data subgraph.Data
	op := func() error {
		d, err := e.client.Query(ctx, endpoint, query, vars)
		if err != nil {
			if subgraph.IsRemote(err) || ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			return err
		}
		data = d
		return nil
	}
	b := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(e.opts.RetryDelay), uint64(e.opts.RetryCount-1)),
		ctx,
	)
	notify := func(err error, wait time.Duration) {
		e.logger.Debug("query failed, retrying", zap.String("endpoint", endpoint), zap.Duration("wait", wait), zap.Error(err))
	}
	if err := backoff.RetryNotify(op, b, notify); err != nil {
		return nil, err
	}
	return data, nil
}

func nodesOf(data subgraph.Data, collection string) ([]Node, error) {
	raw, ok := data[collection]
	if !ok {
		return nil, fmt.Errorf("response has no %q collection", collection)
	}
	if raw == nil {
		return nil, nil
	}
	items, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("collection %q is %T, not a list", collection, raw)
	}
	nodes := make([]Node, 0, len(items))
	for _, item := range items {
		// non-object items map to an empty node and are dropped as malformed.
		obj, _ := item.(map[string]any)
		nodes = append(nodes, Node(obj))
	}
	return nodes, nil
}
