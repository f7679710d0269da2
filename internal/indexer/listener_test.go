package indexer

import (
	"bufio"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dexIngest/internal/chain"
	"dexIngest/internal/config"
	"dexIngest/internal/storage"
	"dexIngest/internal/storage/memory"
)

type fakeSub struct {
	errc chan error
	once sync.Once
	done chan struct{}
}

func newFakeSub() *fakeSub {
	return &fakeSub{errc: make(chan error, 1), done: make(chan struct{})}
}

func (s *fakeSub) Unsubscribe()      { s.once.Do(func() { close(s.done) }) }
func (s *fakeSub) Err() <-chan error { return s.errc }

func (s *fakeSub) unsubscribed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

type fakeConn struct {
	mu   sync.Mutex
	logs chan<- types.Log
	sub  *fakeSub
}

func (c *fakeConn) SubscribeLogs(_ context.Context, ch chan<- types.Log) (ethereum.Subscription, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.logs = ch
	c.sub = newFakeSub()
	return c.sub, nil
}

func (c *fakeConn) Close() {}

func (c *fakeConn) send(log types.Log) {
	c.mu.Lock()
	ch := c.logs
	c.mu.Unlock()
	ch <- log
}

func (c *fakeConn) subscription() *fakeSub {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sub
}

type fakeNetwork struct {
	mu    sync.Mutex
	conns map[string][]*fakeConn
	down  map[string]bool
}

func newFakeNetwork() *fakeNetwork {
	return &fakeNetwork{conns: make(map[string][]*fakeConn), down: make(map[string]bool)}
}

func (n *fakeNetwork) dial(_ context.Context, cfg config.ChainConfig) (chain.Conn, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.down[cfg.ID] {
		n.conns[cfg.ID] = append(n.conns[cfg.ID], nil)
		return nil, errors.New("connection refused")
	}
	conn := &fakeConn{}
	n.conns[cfg.ID] = append(n.conns[cfg.ID], conn)
	return conn, nil
}

func (n *fakeNetwork) dials(chainID string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.conns[chainID])
}

func (n *fakeNetwork) latest(chainID string) *fakeConn {
	n.mu.Lock()
	defer n.mu.Unlock()
	conns := n.conns[chainID]
	if len(conns) == 0 {
		return nil
	}
	return conns[len(conns)-1]
}

func (n *fakeNetwork) setDown(chainID string, down bool) {
	n.mu.Lock()
	n.down[chainID] = down
	n.mu.Unlock()
}

func testChains(ids ...string) []config.ChainConfig {
	out := make([]config.ChainConfig, 0, len(ids))
	for _, id := range ids {
		out = append(out, config.ChainConfig{ID: id, Enabled: true, WSEndpoint: "ws://" + id})
	}
	return out
}

func newTestListener(t *testing.T, net *fakeNetwork, cfg ListenerConfig, deadLetter *storage.JSONLWriter) (*Listener, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	registry := chain.NewRegistry(net.dial, nil)
	l := NewListener(cfg, registry, NewPersister(store, nil), deadLetter, nil, nil)
	return l, store
}

func waitState(t *testing.T, l *Listener, chainID string, state State) {
	t.Helper()
	require.Eventually(t, func() bool {
		return l.States()[chainID] == state
	}, 2*time.Second, 5*time.Millisecond, "chain %s never reached %s (now %s)", chainID, state, l.States()[chainID])
}

func waitRawEvents(t *testing.T, store *memory.Store, n int) {
	t.Helper()
	require.Eventually(t, func() bool {
		return len(store.RawEvents()) == n
	}, 2*time.Second, 5*time.Millisecond)
}

func TestListenerReconnectIsolatesChains(t *testing.T) {
	net := newFakeNetwork()
	l, store := newTestListener(t, net, ListenerConfig{ReconnectDelay: 10 * time.Millisecond, QueueSize: 4, Workers: 2}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = l.Run(ctx, testChains("a", "b"))
		close(done)
	}()

	waitState(t, l, "a", StateStreaming)
	waitState(t, l, "b", StateStreaming)

	connA := net.latest("a")
	connB := net.latest("b")
	subB := connB.subscription()
	connA.send(sampleLog("0x01", 0))
	connB.send(sampleLog("0x02", 0))
	waitRawEvents(t, store, 2)

	connA.subscription().errc <- errors.New("websocket: close 1006")

	require.Eventually(t, func() bool {
		return net.dials("a") == 2 && l.States()["a"] == StateStreaming
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, net.dials("b"))
	assert.False(t, subB.unsubscribed())
	assert.Equal(t, StateStreaming, l.States()["b"])

	connB.send(sampleLog("0x03", 0))
	net.latest("a").send(sampleLog("0x04", 0))
	waitRawEvents(t, store, 4)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("listener did not stop")
	}
	assert.Equal(t, StateStopped, l.States()["a"])
	assert.Equal(t, StateStopped, l.States()["b"])
	assert.True(t, subB.unsubscribed())
}

func TestListenerStopsAtReconnectCeiling(t *testing.T) {
	net := newFakeNetwork()
	l, _ := newTestListener(t, net, ListenerConfig{ReconnectDelay: time.Millisecond, MaxReconnectAttempts: 3}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	l.Ensure(ctx, testChains("a"))
	waitState(t, l, "a", StateStreaming)

	net.setDown("a", true)
	net.latest("a").subscription().errc <- errors.New("eof")

	waitState(t, l, "a", StateStopped)
	assert.Equal(t, 4, net.dials("a"))
}

func TestListenerDeadLettersMalformedLogs(t *testing.T) {
	net := newFakeNetwork()
	path := filepath.Join(t.TempDir(), "dead.jsonl")
	l, store := newTestListener(t, net, ListenerConfig{ReconnectDelay: time.Millisecond}, storage.NewJSONLWriter(path))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	l.Ensure(ctx, testChains("a"))
	waitState(t, l, "a", StateStreaming)

	bad := sampleLog("0x01", 0)
	bad.TxHash = common.Hash{}
	conn := net.latest("a")
	conn.send(bad)
	conn.send(sampleLog("0x02", 1))
	waitRawEvents(t, store, 1)

	require.Eventually(t, func() bool {
		file, err := os.Open(path)
		if err != nil {
			return false
		}
		defer file.Close()
		lines := 0
		scanner := bufio.NewScanner(file)
		for scanner.Scan() {
			lines++
		}
		return lines == 1
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, StateStreaming, l.States()["a"])
}

func TestListenerEnsureStartsAndStops(t *testing.T) {
	net := newFakeNetwork()
	l, _ := newTestListener(t, net, ListenerConfig{ReconnectDelay: time.Millisecond}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	chains := testChains("a", "b")
	chains[1].Enabled = false
	l.Ensure(ctx, chains)
	waitState(t, l, "a", StateStreaming)
	_, seen := l.States()["b"]
	assert.False(t, seen)

	chains[1].Enabled = true
	l.Ensure(ctx, chains)
	waitState(t, l, "b", StateStreaming)
	assert.Equal(t, 1, net.dials("a"), "enabling b must not reconnect a")

	chains[0].Enabled = false
	l.Ensure(ctx, chains)
	assert.Equal(t, StateStopped, l.States()["a"])
	assert.Equal(t, StateStreaming, l.States()["b"])

	l.Ensure(ctx, append(chains, config.ChainConfig{ID: "c", Enabled: true}))
	_, seen = l.States()["c"]
	assert.False(t, seen, "chain without endpoint is skipped")
}

func (l *Listener) isRunning(chainID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.running[chainID]
	return ok
}

func TestListenerRestartsChainAfterReconnectCeiling(t *testing.T) {
	net := newFakeNetwork()
	l, _ := newTestListener(t, net, ListenerConfig{ReconnectDelay: time.Millisecond, MaxReconnectAttempts: 1}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	chains := testChains("a")
	l.Ensure(ctx, chains)
	waitState(t, l, "a", StateStreaming)

	net.setDown("a", true)
	net.latest("a").subscription().errc <- errors.New("eof")
	waitState(t, l, "a", StateStopped)
	require.Eventually(t, func() bool { return !l.isRunning("a") }, 2*time.Second, 5*time.Millisecond)
	dials := net.dials("a")

	net.setDown("a", false)
	l.Ensure(ctx, chains)
	waitState(t, l, "a", StateStreaming)
	assert.Equal(t, dials+1, net.dials("a"))
}

func TestListenerConcurrentEnsureKeepsConnection(t *testing.T) {
	net := newFakeNetwork()
	l, _ := newTestListener(t, net, ListenerConfig{ReconnectDelay: time.Millisecond, MaxReconnectAttempts: 1}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	l.Ensure(ctx, testChains("a"))
	waitState(t, l, "a", StateStreaming)

	moved := testChains("a")
	moved[0].WSEndpoint = "ws://a-2"
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.Ensure(ctx, moved)
		}()
	}
	wg.Wait()
	waitState(t, l, "a", StateStreaming)
	assert.Equal(t, 2, net.dials("a"))

	net.latest("a").subscription().errc <- errors.New("websocket: close 1006")
	require.Eventually(t, func() bool {
		return net.dials("a") == 3 && l.States()["a"] == StateStreaming
	}, 2*time.Second, 5*time.Millisecond)
	assert.True(t, l.isRunning("a"))
}
