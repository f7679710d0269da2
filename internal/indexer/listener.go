package indexer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"dexIngest/internal/chain"
	"dexIngest/internal/config"
	"dexIngest/internal/metrics"
	"dexIngest/internal/model"
	"dexIngest/internal/storage"
)

// State is the lifecycle state of one chain's subscription.
type State int

const (
	StateIdle State = iota
	StateSubscribing
	StateStreaming
	StateError
	StateReconnecting
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSubscribing:
		return "subscribing"
	case StateStreaming:
		return "streaming"
	case StateError:
		return "error"
	case StateReconnecting:
		return "reconnecting"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

var errSubscriptionClosed = errors.New("subscription closed")

// ListenerConfig holds runtime settings for the live event listener.
type ListenerConfig struct {
	ReconnectDelay time.Duration
	// MaxReconnectAttempts caps consecutive failed reconnects; 0 retries forever.
	MaxReconnectAttempts int
	QueueSize            int
	Workers              int
}

type chainRun struct {
	cfg    config.ChainConfig
	cancel context.CancelFunc
	done   chan struct{}
}

// Listener subscribes to every log of every enabled chain and feeds them
// through Decode and the Persister. Each chain runs on its own goroutine
// with its own bounded queue and workers.
type Listener struct {
	cfg        ListenerConfig
	registry   *chain.Registry
	persister  *Persister
	deadLetter *storage.JSONLWriter
	metrics    *metrics.Metrics
	logger     *zap.Logger
	now        func() time.Time

	ensureMu sync.Mutex

	mu      sync.Mutex
	states  map[string]State
	running map[string]*chainRun
}

// NewListener builds a Listener. deadLetter may be nil.
func NewListener(
	cfg ListenerConfig,
	registry *chain.Registry,
	persister *Persister,
	deadLetter *storage.JSONLWriter,
	m *metrics.Metrics,
	logger *zap.Logger,
) *Listener {
	if logger == nil {
		logger = zap.NewNop()
	}
	if m == nil {
		m = metrics.Nop()
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	return &Listener{
		cfg:        cfg,
		registry:   registry,
		persister:  persister,
		deadLetter: deadLetter,
		metrics:    m,
		logger:     logger,
		now:        time.Now,
		states:     make(map[string]State),
		running:    make(map[string]*chainRun),
	}
}

// Run starts the given chains and blocks until ctx is done, then stops every
// chain and closes all connections.
func (l *Listener) Run(ctx context.Context, chains []config.ChainConfig) error {
	l.Ensure(ctx, chains)
	<-ctx.Done()
	l.Wait()
	l.registry.CloseAll()
	return nil
}

// Ensure reconciles the running chain listeners with chains: enabled chains
// that are not running are started, running chains that are gone, disabled
// or reconfigured are stopped. Unchanged chains are left alone. A chain
// whose listener gave up reconnecting is started again. Calls are
// serialized.
func (l *Listener) Ensure(ctx context.Context, chains []config.ChainConfig) {
	l.ensureMu.Lock()
	defer l.ensureMu.Unlock()

	desired := make(map[string]config.ChainConfig, len(chains))
	for _, cfg := range chains {
		if !cfg.Enabled {
			continue
		}
		if cfg.WSEndpoint == "" {
			l.logger.Warn("chain skipped", zap.String("chain", cfg.ID), zap.Error(chain.ErrNoEndpoint))
			continue
		}
		desired[cfg.ID] = cfg
	}

	l.mu.Lock()
	var stopping []*chainRun
	for id, run := range l.running {
		if cfg, ok := desired[id]; !ok || cfg != run.cfg {
			run.cancel()
			stopping = append(stopping, run)
			delete(l.running, id)
		}
	}
	l.mu.Unlock()

	for _, run := range stopping {
		<-run.done
		l.logger.Info("chain listener stopped", zap.String("chain", run.cfg.ID))
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	for id, cfg := range desired {
		if _, ok := l.running[id]; ok {
			continue
		}
		runCtx, cancel := context.WithCancel(ctx)
		run := &chainRun{cfg: cfg, cancel: cancel, done: make(chan struct{})}
		l.running[id] = run
		l.states[id] = StateIdle
		go l.runChain(runCtx, run)
	}
}

// Wait blocks until every running chain goroutine has exited.
func (l *Listener) Wait() {
	l.mu.Lock()
	runs := make([]*chainRun, 0, len(l.running))
	for _, run := range l.running {
		runs = append(runs, run)
	}
	l.mu.Unlock()

	for _, run := range runs {
		<-run.done
	}
}

// States returns the current state of every chain the listener has seen.
func (l *Listener) States() map[string]State {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[string]State, len(l.states))
	for id, state := range l.states {
		out[id] = state
	}
	return out
}

func (l *Listener) setState(chainID string, state State) {
	l.mu.Lock()
	l.states[chainID] = state
	l.mu.Unlock()

	streaming := 0.0
	if state == StateStreaming {
		streaming = 1
	}
	l.metrics.ListenerState.WithLabelValues(chainID).Set(streaming)
}

func (l *Listener) runChain(ctx context.Context, run *chainRun) {
	id := run.cfg.ID
	logger := l.logger.With(zap.String("chain", id))

	queue := make(chan types.Log, l.cfg.QueueSize)
	var workers sync.WaitGroup
	for i := 0; i < l.cfg.Workers; i++ {
		workers.Add(1)
		go func() {
			defer workers.Done()
			l.work(ctx, id, queue)
		}()
	}

	var conn chain.Conn
	defer func() {
		close(queue)
		workers.Wait()
		l.registry.Release(id, conn)
		l.setState(id, StateStopped)
		l.mu.Lock()
		if l.running[id] == run {
			delete(l.running, id)
		}
		l.mu.Unlock()
		close(run.done)
	}()

	l.setState(id, StateSubscribing)
	conn, err := l.registry.Connect(ctx, run.cfg)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		l.setState(id, StateError)
		logger.Warn("initial connect failed", zap.Error(err))
		if conn, err = l.reconnect(ctx, id); err != nil {
			l.stopped(ctx, logger, err)
			return
		}
	}

	for {
		err := l.stream(ctx, id, conn, queue)
		if ctx.Err() != nil {
			return
		}
		l.setState(id, StateError)
		logger.Warn("log stream terminated", zap.Error(err))

		if conn, err = l.reconnect(ctx, id); err != nil {
			l.stopped(ctx, logger, err)
			return
		}
	}
}

func (l *Listener) stopped(ctx context.Context, logger *zap.Logger, err error) {
	if ctx.Err() != nil {
		return
	}
	logger.Error("chain listener gave up reconnecting", zap.Error(err))
}

func (l *Listener) stream(ctx context.Context, chainID string, conn chain.Conn, queue chan<- types.Log) error {
	l.setState(chainID, StateSubscribing)

	logs := make(chan types.Log, l.cfg.QueueSize)
	sub, err := conn.SubscribeLogs(ctx, logs)
	if err != nil {
		return fmt.Errorf("subscribe logs: %w", err)
	}
	defer sub.Unsubscribe()

	l.setState(chainID, StateStreaming)
	l.logger.Info("log stream open", zap.String("chain", chainID))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-sub.Err():
			if err == nil {
				err = errSubscriptionClosed
			}
			return err
		case log := <-logs:
			select {
			case queue <- log:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

// reconnect waits the fixed delay and redials the chain until it succeeds,
// the attempt ceiling is reached, or ctx is done.
func (l *Listener) reconnect(ctx context.Context, chainID string) (chain.Conn, error) {
	l.setState(chainID, StateReconnecting)

	timer := time.NewTimer(l.cfg.ReconnectDelay)
	select {
	case <-ctx.Done():
		timer.Stop()
		return nil, ctx.Err()
	case <-timer.C:
	}

	var (
		conn    chain.Conn
		attempt int
	)
	op := func() error {
		attempt++
		l.metrics.ListenerReconnects.WithLabelValues(chainID).Inc()
		c, err := l.registry.Reconnect(ctx, chainID)
		if err != nil {
			if errors.Is(err, chain.ErrNoEndpoint) || ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			return err
		}
		conn = c
		return nil
	}
	notify := func(err error, wait time.Duration) {
		l.logger.Warn("reconnect failed",
			zap.String("chain", chainID),
			zap.Int("attempt", attempt),
			zap.Duration("retry_in", wait),
			zap.Error(err),
		)
	}

	if err := backoff.RetryNotify(op, l.newBackOff(ctx), notify); err != nil {
		return nil, fmt.Errorf("reconnect %s after %d attempts: %w", chainID, attempt, err)
	}
	l.logger.Info("chain reconnected", zap.String("chain", chainID), zap.Int("attempt", attempt))
	return conn, nil
}

func (l *Listener) newBackOff(ctx context.Context) backoff.BackOff {
	var b backoff.BackOff = backoff.NewConstantBackOff(l.cfg.ReconnectDelay)
	if l.cfg.MaxReconnectAttempts > 0 {
		b = backoff.WithMaxRetries(b, uint64(l.cfg.MaxReconnectAttempts-1))
	}
	return backoff.WithContext(b, ctx)
}

func (l *Listener) work(ctx context.Context, chainID string, queue <-chan types.Log) {
	for {
		select {
		case <-ctx.Done():
			return
		case log, ok := <-queue:
			if !ok {
				return
			}
			l.handle(ctx, chainID, log)
		}
	}
}

func (l *Listener) handle(ctx context.Context, chainID string, log types.Log) {
	ev, err := Decode(log, chainID, l.now())
	if err != nil {
		l.fail(chainID, "decode", log, err)
		return
	}

	outcome, err := l.persister.Persist(ctx, ev)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		l.fail(chainID, "persist", log, err)
		return
	}

	l.metrics.ListenerLogs.WithLabelValues(chainID, outcome.String()).Inc()
	l.logger.Debug("raw event",
		zap.String("chain", chainID),
		zap.String("outcome", outcome.String()),
		zap.Uint64("block", ev.BlockNumber),
		zap.String("tx_hash", ev.TxHash),
		zap.Uint64("log_index", ev.LogIndex),
	)
}

func (l *Listener) fail(chainID, stage string, log types.Log, err error) {
	l.metrics.ListenerLogs.WithLabelValues(chainID, stage+"_error").Inc()
	l.logger.Warn("log dropped",
		zap.String("chain", chainID),
		zap.String("stage", stage),
		zap.Uint64("block", log.BlockNumber),
		zap.String("tx_hash", log.TxHash.Hex()),
		zap.Uint("log_index", log.Index),
		zap.Error(err),
	)
	if l.deadLetter == nil {
		return
	}

	entry := model.DeadLetter{
		ChainID:     chainID,
		Stage:       stage,
		BlockNumber: log.BlockNumber,
		TxHash:      log.TxHash.Hex(),
		LogIndex:    uint64(log.Index),
		Address:     log.Address.Hex(),
		Error:       err.Error(),
		FailedAt:    l.now().UTC().Format(time.RFC3339Nano),
	}
	if len(log.Topics) > 0 {
		entry.Topic0 = log.Topics[0].Hex()
	}
	if err := l.deadLetter.Append(entry); err != nil {
		l.logger.Error("dead letter write failed", zap.String("path", l.deadLetter.Path()), zap.Error(err))
	}
}
