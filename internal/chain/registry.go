package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"sync"

	"go.uber.org/zap"

	"dexIngest/internal/config"
)

// ErrNoEndpoint is returned for a chain without a subscription endpoint.
var ErrNoEndpoint = errors.New("subscription endpoint not configured")

// Dialer opens a connection for one chain.
type Dialer func(ctx context.Context, cfg config.ChainConfig) (Conn, error)

// Dial is the production Dialer. It checks the node's chain id when one is configured.
func Dial(ctx context.Context, cfg config.ChainConfig) (Conn, error) {
	client, err := NewClient(ctx, cfg.WSEndpoint)
	if err != nil {
		return nil, err
	}
	if cfg.ChainID != 0 {
		id, err := client.GetChainID(ctx)
		if err != nil {
			client.Close()
			return nil, fmt.Errorf("get chain id: %w", err)
		}
		if id.Cmp(new(big.Int).SetUint64(cfg.ChainID)) != 0 {
			client.Close()
			return nil, fmt.Errorf("chain id mismatch: configured %d, node reports %s", cfg.ChainID, id)
		}
	}
	return client, nil
}

// Registry owns one connection per chain id. Writes for a chain id come
// only from that chain's listener; the mutex guards the map itself.
type Registry struct {
	dial   Dialer
	logger *zap.Logger

	mu      sync.RWMutex
	configs map[string]config.ChainConfig
	conns   map[string]Conn
}

func NewRegistry(dial Dialer, logger *zap.Logger) *Registry {
	if dial == nil {
		dial = Dial
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		dial:    dial,
		logger:  logger,
		configs: make(map[string]config.ChainConfig),
		conns:   make(map[string]Conn),
	}
}

// Connect dials the chain and registers the connection, replacing any
// previous one for the same id.
func (r *Registry) Connect(ctx context.Context, cfg config.ChainConfig) (Conn, error) {
	if cfg.WSEndpoint == "" {
		return nil, fmt.Errorf("chain %s: %w", cfg.ID, ErrNoEndpoint)
	}

	r.mu.Lock()
	r.configs[cfg.ID] = cfg
	r.mu.Unlock()

	conn, err := r.dial(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("dial chain %s: %w", cfg.ID, err)
	}

	r.mu.Lock()
	prev := r.conns[cfg.ID]
	r.conns[cfg.ID] = conn
	r.mu.Unlock()

	if prev != nil {
		prev.Close()
	}
	r.logger.Info("chain connected", zap.String("chain", cfg.ID))
	return conn, nil
}

// Get returns the live connection for a chain id.
func (r *Registry) Get(chainID string) (Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.conns[chainID]
	return conn, ok
}

// Reconnect closes and redials one chain without touching the others.
func (r *Registry) Reconnect(ctx context.Context, chainID string) (Conn, error) {
	r.mu.Lock()
	cfg, ok := r.configs[chainID]
	prev := r.conns[chainID]
	delete(r.conns, chainID)
	r.mu.Unlock()

	if !ok {
		return nil, fmt.Errorf("chain %s: %w", chainID, ErrNoEndpoint)
	}
	if prev != nil {
		prev.Close()
	}
	return r.Connect(ctx, cfg)
}

// Release closes conn and forgets the chain if conn is still the registered
// connection. A chain that has since been connected again is left alone.
func (r *Registry) Release(chainID string, conn Conn) {
	r.mu.Lock()
	if r.conns[chainID] == conn {
		delete(r.conns, chainID)
		delete(r.configs, chainID)
	}
	r.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
}

// CloseAll releases every connection.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	conns := r.conns
	r.conns = make(map[string]Conn)
	r.configs = make(map[string]config.ChainConfig)
	r.mu.Unlock()

	for id, conn := range conns {
		conn.Close()
		r.logger.Info("chain closed", zap.String("chain", id))
	}
}

// ChainIDs returns the ids with a live connection, sorted.
func (r *Registry) ChainIDs() []string {
	r.mu.RLock()
	ids := make([]string, 0, len(r.conns))
	for id := range r.conns {
		ids = append(ids, id)
	}
	r.mu.RUnlock()
	sort.Strings(ids)
	return ids
}
