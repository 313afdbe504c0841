// Package kafka produces every event to a topic: key = tag, value = JSON
// record. Events are acked once the broker confirms them.
package kafka

import (
	"fmt"
	"sync"

	"github.com/IBM/sarama"

	"github.com/max0ne/fluent-plugin-google-cloud/internal/event"
	"github.com/max0ne/fluent-plugin-google-cloud/internal/logging"
	"github.com/max0ne/fluent-plugin-google-cloud/sink"
)

type Config struct {
	Brokers []string
	Topic   string
	Acks    int16  // 0,1,-1
	Version string // empty = sarama default
}

type driver struct {
	cfg Config
	p   sarama.AsyncProducer
	ack sink.EmitFn

	wg        sync.WaitGroup
	closeOnce sync.Once
	closeErr  error
}

func (d *driver) Configure(c any) error {
	cfg, ok := c.(Config)
	if !ok {
		return fmt.Errorf("kafka-sink: expected Config, got %T", c)
	}
	if cfg.Topic == "" {
		return fmt.Errorf("kafka-sink: topic is required")
	}
	d.cfg = cfg

	sc, err := producerConfig(cfg)
	if err != nil {
		return err
	}
	p, err := sarama.NewAsyncProducer(cfg.Brokers, sc)
	if err != nil {
		return err
	}
	d.start(p)
	return nil
}

func producerConfig(cfg Config) (*sarama.Config, error) {
	sc := sarama.NewConfig()
	sc.Producer.RequiredAcks = sarama.RequiredAcks(cfg.Acks)
	sc.Producer.Return.Successes = true
	sc.Producer.Return.Errors = true
	if cfg.Version != "" {
		ver, err := sarama.ParseKafkaVersion(cfg.Version)
		if err != nil {
			return nil, err
		}
		sc.Version = ver
	}
	return sc, nil
}

// start drains the producer's result channels; it must run before the first
// Push or the producer will stall.
func (d *driver) start(p sarama.AsyncProducer) {
	d.p = p
	d.wg.Add(2)
	go func() {
		defer d.wg.Done()
		for msg := range p.Successes() {
			if cp, ok := msg.Metadata.(*event.Checkpoint); ok && cp != nil && d.ack != nil {
				d.ack(cp)
			}
		}
	}()
	go func() {
		defer d.wg.Done()
		for perr := range p.Errors() {
			logging.L().Error("kafka-sink: produce failed", "topic", d.cfg.Topic, "err", perr.Err)
		}
	}()
}

func (d *driver) Push(ev *event.Event) error {
	value, err := event.EncodeRecord(ev.Record)
	if err != nil {
		return fmt.Errorf("kafka-sink: %w", err)
	}
	d.p.Input() <- &sarama.ProducerMessage{
		Topic:     d.cfg.Topic,
		Key:       sarama.StringEncoder(ev.Tag),
		Value:     sarama.ByteEncoder(value),
		Timestamp: ev.Time,
		Metadata:  ev.Checkpoint,
	}
	return nil
}

func (d *driver) BindAck(fn sink.EmitFn) { d.ack = fn }

func (d *driver) Close() error {
	d.closeOnce.Do(func() {
		if d.p == nil {
			return
		}
		d.closeErr = d.p.Close()
		d.wg.Wait()
	})
	return d.closeErr
}

func init() { sink.Register("kafka", func() sink.Adapter { return &driver{} }) }
