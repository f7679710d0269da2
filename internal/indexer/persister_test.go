package indexer

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dexIngest/internal/model"
	"dexIngest/internal/storage/memory"
)

func TestPersistTwiceReportsDuplicate(t *testing.T) {
	store := memory.NewStore()
	p := NewPersister(store, nil)
	ctx := context.Background()
	ev := model.RawEvent{ChainID: "sepolia", TxHash: "0xabc", LogIndex: 0, Payload: "{}"}

	outcome, err := p.Persist(ctx, ev)
	require.NoError(t, err)
	assert.Equal(t, Inserted, outcome)

	outcome, err = p.Persist(ctx, ev)
	require.NoError(t, err)
	assert.Equal(t, Duplicate, outcome)
	assert.Len(t, store.RawEvents(), 1)
}

func TestPersistConcurrentSameKey(t *testing.T) {
	store := memory.NewStore()
	p := NewPersister(store, nil)
	ctx := context.Background()
	ev := model.RawEvent{ChainID: "sepolia", TxHash: "0xabc", LogIndex: 0, Payload: "{}"}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		outcomes []Outcome
	)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			outcome, err := p.Persist(ctx, ev)
			assert.NoError(t, err)
			mu.Lock()
			outcomes = append(outcomes, outcome)
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Len(t, store.RawEvents(), 1)
	assert.ElementsMatch(t, []Outcome{Inserted, Duplicate}, outcomes)
}

func TestPersistSameKeyOnOtherChain(t *testing.T) {
	store := memory.NewStore()
	p := NewPersister(store, nil)
	ctx := context.Background()

	for _, chainID := range []string{"sepolia", "fuji"} {
		outcome, err := p.Persist(ctx, model.RawEvent{ChainID: chainID, TxHash: "0xabc"})
		require.NoError(t, err)
		assert.Equal(t, Inserted, outcome)
	}
}

type flakyStore struct {
	*memory.Store
	failTx string
}

func (s *flakyStore) InsertRawEvent(ctx context.Context, ev model.RawEvent) (bool, error) {
	if ev.TxHash == s.failTx {
		return false, errors.New("disk full")
	}
	return s.Store.InsertRawEvent(ctx, ev)
}

func TestPersistAllContinuesPastFailures(t *testing.T) {
	store := &flakyStore{Store: memory.NewStore(), failTx: "0xbad"}
	p := NewPersister(store, nil)

	events := []model.RawEvent{
		{ChainID: "sepolia", TxHash: "0x1"},
		{ChainID: "sepolia", TxHash: "0xbad"},
		{ChainID: "sepolia", TxHash: "0x1"},
		{ChainID: "sepolia", TxHash: "0x2"},
	}
	inserted, err := p.PersistAll(context.Background(), events)
	assert.Equal(t, 2, inserted)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Len(t, store.RawEvents(), 2)
}
