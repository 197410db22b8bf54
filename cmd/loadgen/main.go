// loadgen publishes a randomized stream of place and cancel commands
// to the order-entry topic. Order ids come from a snowflake node so
// concurrent generators never collide.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"math/rand"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/rs/zerolog/log"

	"mako/infra/kafka"
)

func main() {
	var (
		brokers  = flag.String("brokers", "localhost:9092", "comma-separated Kafka brokers")
		topic    = flag.String("topic", "orders", "order-entry topic")
		node     = flag.Int64("node", 1, "snowflake node id")
		rate     = flag.Duration("rate", 2*time.Millisecond, "delay between commands")
		mid      = flag.Int64("mid", 10_000, "mid price in ticks")
		spread   = flag.Int64("spread", 50, "half-width of the price band")
		cancelPc = flag.Int("cancel-pct", 30, "percentage of commands that cancel a live order")
	)
	flag.Parse()

	idGen, err := snowflake.NewNode(*node)
	if err != nil {
		log.Fatal().Err(err).Msg("snowflake node")
	}

	producer := kafka.NewProducer(strings.Split(*brokers, ","), *topic)
	defer producer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var live []uint64
	sent := 0

	for ctx.Err() == nil {
		var cmd kafka.Command

		if len(live) > 0 && rand.Intn(100) < *cancelPc {
			i := rand.Intn(len(live))
			cmd = kafka.Command{Type: "cancel", OrderID: live[i]}
			live = append(live[:i], live[i+1:]...)
		} else {
			id := uint64(idGen.Generate().Int64())
			side := "bid"
			price := *mid - rand.Int63n(*spread) - 1
			if rand.Intn(2) == 1 {
				side = "ask"
				price = *mid + rand.Int63n(*spread) + 1
			}
			cmd = kafka.Command{
				Type:    "place",
				OrderID: id,
				Side:    side,
				Price:   price,
				Qty:     1 + rand.Int63n(100),
			}
			live = append(live, id)
		}

		payload, err := json.Marshal(cmd)
		if err != nil {
			log.Fatal().Err(err).Msg("encode command")
		}
		key := []byte(strconv.FormatUint(cmd.OrderID, 10))
		if err := producer.Send(ctx, key, payload); err != nil {
			if ctx.Err() != nil {
				break
			}
			log.Error().Err(err).Msg("send failed")
			os.Exit(1)
		}

		sent++
		if sent%1000 == 0 {
			log.Info().Int("sent", sent).Int("live", len(live)).Msg("progress")
		}
		time.Sleep(*rate)
	}

	log.Info().Int("sent", sent).Msg("loadgen done")
}
