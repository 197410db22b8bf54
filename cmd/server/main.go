package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"

	"mako/domain/book"
	"mako/infra/kafka"
	"mako/infra/memory"
	"mako/infra/outbox"
	"mako/infra/sequence"
	"mako/infra/wal"
	"mako/jobs/broadcaster"
	"mako/service"
	"mako/snapshot"
)

type config struct {
	walDir      string
	outboxDir   string
	snapshotDir string

	brokers        []string
	ordersTopic    string
	ordersGroup    string
	marketTopic    string
	ringSize       uint64
	reclaimEvery   time.Duration
	snapshotEvery  time.Duration
	walSegmentSize int64
}

func loadConfig() config {
	return config{
		walDir:         envStr("MAKO_WAL_DIR", "./data/wal"),
		outboxDir:      envStr("MAKO_OUTBOX_DIR", "./data/outbox"),
		snapshotDir:    envStr("MAKO_SNAPSHOT_DIR", "./data/snapshot"),
		brokers:        strings.Split(envStr("MAKO_KAFKA_BROKERS", "localhost:9092"), ","),
		ordersTopic:    envStr("MAKO_ORDERS_TOPIC", "orders"),
		ordersGroup:    envStr("MAKO_ORDERS_GROUP", "mako-engine"),
		marketTopic:    envStr("MAKO_MARKET_TOPIC", "market-data"),
		ringSize:       uint64(envInt("MAKO_RETIRE_RING_SIZE", 1<<18)),
		reclaimEvery:   envDur("MAKO_RECLAIM_INTERVAL", 2*time.Second),
		snapshotEvery:  envDur("MAKO_SNAPSHOT_INTERVAL", time.Minute),
		walSegmentSize: int64(envInt("MAKO_WAL_SEGMENT_SIZE", 16<<20)),
	}
}

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if lvl, err := zerolog.ParseLevel(envStr("MAKO_LOG_LEVEL", "info")); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}

	cfg := loadConfig()

	// ---------------- durability ----------------

	entryWAL, err := wal.Open(wal.Config{Dir: cfg.walDir, SegmentSize: cfg.walSegmentSize})
	if err != nil {
		log.Fatal().Err(err).Msg("open entry WAL")
	}
	defer entryWAL.Close()

	ob, err := outbox.Open(cfg.outboxDir)
	if err != nil {
		log.Fatal().Err(err).Msg("open outbox")
	}
	defer ob.Close()

	// ---------------- memory ----------------

	pool := memory.NewPool(func() *book.Order { return new(book.Order) })
	ring := memory.NewRetireRing[book.Order](cfg.ringSize)
	reader := snapshot.NewReader()

	// ---------------- domain ----------------

	b := book.New(book.WithAllocator(pool.Get))

	// ---------------- recovery ----------------

	snapSeq, err := snapshot.Load(cfg.snapshotDir, b)
	if err != nil {
		log.Fatal().Err(err).Msg("snapshot load")
	}

	seqGen := sequence.New(0)
	if err := service.Replay(cfg.walDir, snapSeq, b, seqGen); err != nil {
		log.Fatal().Err(err).Msg("WAL replay")
	}

	// ---------------- service ----------------

	engine := service.NewEngine(b, pool, ring, reader, seqGen, entryWAL, ob)

	bc, err := broadcaster.New(ob, broadcaster.DefaultConfig(cfg.brokers, cfg.marketTopic))
	if err != nil {
		log.Fatal().Err(err).Msg("start broadcaster")
	}
	defer bc.Close()

	consumer := kafka.NewConsumer(kafka.ConsumerConfig{
		Brokers: cfg.brokers,
		Topic:   cfg.ordersTopic,
		GroupID: cfg.ordersGroup,
	}, engine)
	defer consumer.Close()

	// ---------------- run ----------------

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	t, _ := tomb.WithContext(ctx)
	t.Go(func() error { return consumer.Run(t) })
	t.Go(func() error { return bc.Run(t) })
	t.Go(func() error { return engine.RunReclaimer(t, cfg.reclaimEvery) })
	t.Go(func() error { return engine.RunSnapshots(t, cfg.snapshotDir, cfg.snapshotEvery) })

	log.Info().
		Strs("brokers", cfg.brokers).
		Str("orders_topic", cfg.ordersTopic).
		Str("market_topic", cfg.marketTopic).
		Msg("engine running")

	<-ctx.Done()
	log.Info().Msg("shutting down")

	t.Kill(nil)
	if err := t.Wait(); err != nil {
		log.Error().Err(err).Msg("shutdown with error")
	}
}

func envStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return def
}

func envDur(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
