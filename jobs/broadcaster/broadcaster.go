// Package broadcaster drains the market-data outbox to Kafka with
// at-least-once delivery: mark SENT, publish, mark ACKED. A crash
// between publish and ack is resolved by resending on the next pass.
package broadcaster

import (
	"errors"
	"strconv"
	"time"

	"github.com/IBM/sarama"
	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"

	"mako/infra/outbox"
)

type Config struct {
	Brokers  []string
	Topic    string
	Interval time.Duration
}

func DefaultConfig(brokers []string, topic string) Config {
	return Config{
		Brokers:  brokers,
		Topic:    topic,
		Interval: 250 * time.Millisecond,
	}
}

type Broadcaster struct {
	outbox   *outbox.Outbox
	producer sarama.SyncProducer
	cfg      Config
}

func New(ob *outbox.Outbox, cfg Config) (*Broadcaster, error) {
	sc := sarama.NewConfig()
	sc.Producer.Return.Successes = true
	sc.Producer.RequiredAcks = sarama.WaitForAll
	sc.Producer.Retry.Max = 5

	producer, err := sarama.NewSyncProducer(cfg.Brokers, sc)
	if err != nil {
		return nil, err
	}

	return &Broadcaster{
		outbox:   ob,
		producer: producer,
		cfg:      cfg,
	}, nil
}

// Run drains pending events until the tomb dies.
func (b *Broadcaster) Run(t *tomb.Tomb) error {
	ticker := time.NewTicker(b.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-t.Dying():
			return nil
		case <-ticker.C:
			b.drainOnce()
		}
	}
}

var errPublishFailed = errors.New("broadcaster: publish failed")

func (b *Broadcaster) drainOnce() {
	err := b.outbox.ScanPending(func(e outbox.Event) error {
		if err := b.outbox.MarkSent(e.Seq); err != nil {
			return err
		}

		msg := &sarama.ProducerMessage{
			Topic: b.cfg.Topic,
			Key:   sarama.StringEncoder(strconv.FormatUint(e.Seq, 10)),
			Value: sarama.ByteEncoder(e.Payload),
		}
		if _, _, err := b.producer.SendMessage(msg); err != nil {
			// Stop the pass: publishing later events now would put
			// the stream out of sequence order. The event stays SENT
			// and the next pass resumes from it.
			log.Warn().Err(err).Uint64("seq", e.Seq).Msg("publish failed")
			return errPublishFailed
		}

		return b.outbox.MarkAcked(e.Seq)
	})
	if err != nil && !errors.Is(err, errPublishFailed) {
		log.Error().Err(err).Msg("outbox drain failed")
	}
}

func (b *Broadcaster) Close() error {
	return b.producer.Close()
}
