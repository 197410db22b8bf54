package service

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mako/domain/book"
	"mako/infra/memory"
	"mako/infra/outbox"
	"mako/infra/sequence"
	"mako/infra/wal"
	"mako/snapshot"
)

type testEnv struct {
	engine *Engine
	book   *book.Book
	ring   *memory.RetireRing[book.Order]
	outbox *outbox.Outbox
	walDir string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	walDir := t.TempDir()
	w, err := wal.Open(wal.Config{Dir: walDir})
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })

	ob, err := outbox.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = ob.Close() })

	pool := memory.NewPool(func() *book.Order { return new(book.Order) })
	ring := memory.NewRetireRing[book.Order](1 << 10)
	reader := snapshot.NewReader()
	b := book.New(book.WithAllocator(pool.Get))

	return &testEnv{
		engine: NewEngine(b, pool, ring, reader, sequence.New(0), w, ob),
		book:   b,
		ring:   ring,
		outbox: ob,
		walDir: walDir,
	}
}

func TestPlaceAndQuery(t *testing.T) {
	env := newTestEnv(t)

	seq, err := env.engine.PlaceOrder(1, book.Bid, 100, 10)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), seq)

	best, ok := env.engine.BestBid()
	require.True(t, ok)
	assert.Equal(t, book.LimitView{Price: 10, Volume: 100, Count: 1}, best)
}

func TestCancelRetiresOrder(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.engine.PlaceOrder(1, book.Ask, 50, 20)
	require.NoError(t, err)

	removed, err := env.engine.CancelOrder(1)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), removed.OrderID)
	assert.Equal(t, book.Ask, removed.Side)
	assert.Equal(t, int64(50), removed.Qty)

	assert.Equal(t, 1, env.ring.Len(), "cancelled order lands in the retire ring")

	_, err = env.engine.CancelOrder(1)
	assert.ErrorIs(t, err, book.ErrUnknownOrder)
}

func TestOutboxReceivesEvents(t *testing.T) {
	env := newTestEnv(t)

	seq1, err := env.engine.PlaceOrder(1, book.Bid, 100, 10)
	require.NoError(t, err)
	removed, err := env.engine.CancelOrder(1)
	require.NoError(t, err)

	e1, err := env.outbox.Get(seq1)
	require.NoError(t, err)
	var ev Event
	require.NoError(t, json.Unmarshal(e1.Payload, &ev))
	assert.Equal(t, "place", ev.Type)
	assert.Equal(t, uint64(1), ev.OrderID)
	assert.Equal(t, "bid", ev.Side)

	e2, err := env.outbox.Get(removed.Seq)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(e2.Payload, &ev))
	assert.Equal(t, "cancel", ev.Type)
}

func TestDepthSkipsEmptiedLevels(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.engine.PlaceOrder(1, book.Bid, 100, 10)
	require.NoError(t, err)
	_, err = env.engine.PlaceOrder(2, book.Bid, 50, 12)
	require.NoError(t, err)
	_, err = env.engine.PlaceOrder(3, book.Ask, 30, 20)
	require.NoError(t, err)

	_, err = env.engine.CancelOrder(2)
	require.NoError(t, err)

	d := env.engine.Depth(0)
	require.Len(t, d.Bids, 1)
	assert.Equal(t, int64(10), d.Bids[0].Price)
	require.Len(t, d.Asks, 1)
	assert.Equal(t, int64(20), d.Asks[0].Price)

	// The inside cache still reports the emptied high-water level.
	best, ok := env.engine.BestBid()
	require.True(t, ok)
	assert.Equal(t, int64(12), best.Price)
	assert.Zero(t, best.Volume)
}

func TestReplayRebuildsBook(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.engine.PlaceOrder(1, book.Bid, 100, 10)
	require.NoError(t, err)
	_, err = env.engine.PlaceOrder(2, book.Bid, 50, 12)
	require.NoError(t, err)
	_, err = env.engine.PlaceOrder(3, book.Ask, 30, 20)
	require.NoError(t, err)
	_, err = env.engine.CancelOrder(2)
	require.NoError(t, err)

	fresh := book.New()
	seqGen := sequence.New(0)
	require.NoError(t, Replay(env.walDir, 0, fresh, seqGen))

	assert.Equal(t, uint64(4), seqGen.Current())

	v, ok := fresh.FindLimit(book.Bid, 10)
	require.True(t, ok)
	assert.Equal(t, int64(100), v.Volume)

	v, ok = fresh.FindLimit(book.Bid, 12)
	require.True(t, ok)
	assert.Zero(t, v.Volume, "cancelled order must not survive replay")

	v, ok = fresh.FindLimit(book.Ask, 20)
	require.True(t, ok)
	assert.Equal(t, int64(30), v.Volume)
}

func TestConcurrentCommandsReplayCleanly(t *testing.T) {
	env := newTestEnv(t)

	const workers = 8
	const perWorker = 200

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				id := uint64(w*perWorker + i + 1)
				_, err := env.engine.PlaceOrder(id, book.Bid, 1, int64(1+id%64))
				assert.NoError(t, err)
			}
		}(w)
	}
	wg.Wait()

	// The log must replay in sequence order even though the commands
	// raced: sequence issuance and the append happen under one lock.
	fresh := book.New()
	seqGen := sequence.New(0)
	require.NoError(t, Replay(env.walDir, 0, fresh, seqGen))
	assert.Equal(t, uint64(workers*perWorker), seqGen.Current())

	var count int64
	fresh.WalkBids(func(l *book.Limit) bool {
		count += l.Count()
		return true
	})
	assert.Equal(t, int64(workers*perWorker), count)
}

func TestConcurrentCancelsRetireEveryOrder(t *testing.T) {
	env := newTestEnv(t)

	const workers = 8
	const perWorker = 16
	const n = workers * perWorker

	for id := uint64(1); id <= n; id++ {
		_, err := env.engine.PlaceOrder(id, book.Ask, 1, int64(100+id%8))
		require.NoError(t, err)
	}

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 1; i <= perWorker; i++ {
				_, err := env.engine.CancelOrder(uint64(w*perWorker + i))
				assert.NoError(t, err)
			}
		}(w)
	}
	wg.Wait()

	// Every cancelled order must land in the ring exactly once.
	assert.Equal(t, n, env.ring.Len())
}

func TestSnapshotCutCoversAppliedCommands(t *testing.T) {
	env := newTestEnv(t)
	snapDir := t.TempDir()

	for id := uint64(1); id <= 5; id++ {
		_, err := env.engine.PlaceOrder(id, book.Bid, 1, int64(10+id))
		require.NoError(t, err)
	}

	env.engine.snapshotOnce(&snapshot.Writer{Dir: snapDir})

	for id := uint64(6); id <= 10; id++ {
		_, err := env.engine.PlaceOrder(id, book.Bid, 1, int64(10+id))
		require.NoError(t, err)
	}

	fresh := book.New()
	snapSeq, err := snapshot.Load(snapDir, fresh)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), snapSeq)

	seqGen := sequence.New(0)
	require.NoError(t, Replay(env.walDir, snapSeq, fresh, seqGen))
	assert.Equal(t, uint64(10), seqGen.Current())

	for id := uint64(1); id <= 10; id++ {
		assert.NotNil(t, fresh.FindOrder(id), "order %d lost across snapshot and replay", id)
	}
}

func TestReplaySkipsSnapshottedPrefix(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.engine.PlaceOrder(1, book.Bid, 100, 10)
	require.NoError(t, err)
	_, err = env.engine.PlaceOrder(2, book.Bid, 50, 12)
	require.NoError(t, err)

	// Pretend a snapshot already covers seq 1; only order 2 replays.
	fresh := book.New()
	seqGen := sequence.New(0)
	require.NoError(t, Replay(env.walDir, 1, fresh, seqGen))

	_, ok := fresh.FindLimit(book.Bid, 10)
	assert.False(t, ok)
	v, ok := fresh.FindLimit(book.Bid, 12)
	require.True(t, ok)
	assert.Equal(t, int64(50), v.Volume)
	assert.Equal(t, uint64(2), seqGen.Current())
}
