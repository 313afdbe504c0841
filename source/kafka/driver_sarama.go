package kafka

import (
	"context"
	"fmt"
	"sync"

	"github.com/IBM/sarama"

	"github.com/max0ne/fluent-plugin-google-cloud/internal/event"
	"github.com/max0ne/fluent-plugin-google-cloud/internal/logging"
	"github.com/max0ne/fluent-plugin-google-cloud/source"
)

const sourceName = "kafka"

type recordID struct {
	topic     string
	partition int32
	offset    int64
}

type SaramaDriver struct {
	cfg   Config
	mode  CommitMode
	cl    sarama.Client
	group sarama.ConsumerGroup
	bp    *tokenBucket
	cp    *commitTracker

	// offsets orders e2e commits; unused in auto mode.
	offsets *offsetWindow

	mu      sync.Mutex
	pending map[recordID]func()

	ackCh chan recordID
}

func init() {
	source.Register("kafka/sarama", func() source.Adapter { return &SaramaDriver{} })
}

func (d *SaramaDriver) Configure(raw any) error {
	config, ok := raw.(Config)
	if !ok {
		return fmt.Errorf("kafka-source: expected Config, got %T", raw)
	}
	d.cfg, d.mode = config, config.CommitMode
	d.pending = make(map[recordID]func())
	d.offsets = newOffsetWindow()

	d.bp = newTokenBucket(config.BackPressure.Capacity, config.BackPressure.Capacity/10, config.BackPressure.CheckInt)
	d.cp = newCommitTracker(int(config.BackPressure.Capacity), config.Checkpoint.CommitInt)

	d.ackCh = make(chan recordID, int(config.BackPressure.Capacity))

	sc, err := saramaConfig(config)
	if err != nil {
		return err
	}
	if d.cl, err = sarama.NewClient(config.Brokers, sc); err != nil {
		return err
	}
	d.group, err = sarama.NewConsumerGroupFromClient(config.GroupID, d.cl)
	return err
}

func saramaConfig(config Config) (*sarama.Config, error) {
	ver, err := sarama.ParseKafkaVersion(config.Version)
	if err != nil {
		return nil, err
	}
	sc := sarama.NewConfig()
	sc.Version = ver
	sc.Consumer.Return.Errors = true
	if config.TLSEn {
		sc.Net.TLS.Enable = true
	}
	if config.SASLUser != "" {
		sc.Net.SASL.Enable = true
		sc.Net.SASL.User, sc.Net.SASL.Password = config.SASLUser, config.SASLPass
	}
	switch config.StartFrom {
	case "oldest":
		sc.Consumer.Offsets.Initial = sarama.OffsetOldest
	default:
		sc.Consumer.Offsets.Initial = sarama.OffsetNewest
	}
	return sc, nil
}

func (d *SaramaDriver) Run(ctx context.Context, emit source.EmitFunc) error {
	handler := &groupHandler{driver: d, emit: emit}

	for {
		if err := d.group.Consume(ctx, d.cfg.Topics, handler); err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

func (d *SaramaDriver) Close() error {
	_ = d.group.Close()
	_ = d.cl.Close()
	d.bp.close()
	d.cp.close()
	return nil
}

type groupHandler struct {
	driver *SaramaDriver
	emit   source.EmitFunc
}

func (*groupHandler) Setup(sarama.ConsumerGroupSession) error {
	return nil
}

func (h *groupHandler) Cleanup(_ sarama.ConsumerGroupSession) error {
	h.driver.mu.Lock()
	defer h.driver.mu.Unlock()

	dropped := len(h.driver.pending)

	h.driver.pending = make(map[recordID]func())
	h.driver.cp.reset()
	h.driver.offsets.reset()

	if dropped > 0 {
		logging.L().Info("sarama-driver: rebalance – cleared pending callbacks", "count", dropped)
	}
	return nil
}

// releaseAck runs the commit callback for an acked record, if still pending.
func (d *SaramaDriver) releaseAck(rec recordID) {
	d.mu.Lock()
	cb, ok := d.pending[rec]
	if ok {
		delete(d.pending, rec)
	}
	d.mu.Unlock()
	if ok {
		cb()
		d.bp.release(1)
		logging.L().Debug("kafka ack released", "topic", rec.topic, "partition", rec.partition, "offset", rec.offset)
	}
}

func (h *groupHandler) ConsumeClaim(
	sess sarama.ConsumerGroupSession,
	claim sarama.ConsumerGroupClaim,
) error {
	for {
		if !h.driver.bp.tryAcquire() {
			select {
			case rec := <-h.driver.ackCh:
				h.driver.releaseAck(rec)
				continue
			case <-sess.Context().Done():
				return sess.Context().Err()
			}
		}

		select {
		case <-sess.Context().Done():
			h.driver.bp.release(1)
			return sess.Context().Err()

		case rec := <-h.driver.ackCh:
			h.driver.releaseAck(rec)
			h.driver.bp.release(1)
			continue

		case msg, ok := <-claim.Messages():
			if !ok {
				h.driver.bp.release(1)
				return nil
			}

			resolve, err := h.driver.cp.track(sess.Context())
			if err != nil {
				h.driver.bp.release(1)
				return err
			}

			if h.driver.mode == CommitE2E {
				h.driver.offsets.track(msg.Topic, msg.Partition, msg.Offset)
			}
			ev, err := toEvent(msg)
			if err != nil {
				// A record that is not JSON is carried as its raw text; the
				// filter passes non-map records through untouched.
				logging.L().Warn("kafka-source: undecodable record", "topic", msg.Topic, "partition", msg.Partition, "offset", msg.Offset, "err", err)
				ev.Record = string(msg.Value)
			}
			if err := h.emit(ev); err != nil {
				h.driver.bp.release(1)
				return err
			}

			rec := recordID{msg.Topic, msg.Partition, msg.Offset}
			if h.driver.mode == CommitAuto {
				due := resolve()
				sess.MarkMessage(msg, "")
				if due {
					sess.Commit()
				}
				h.driver.bp.release(1)
			} else {
				h.driver.mu.Lock()
				h.driver.pending[rec] = h.driver.commitOnAck(sess, msg, resolve)
				h.driver.mu.Unlock()
			}
		}
	}
}

// commitOnAck returns the e2e callback for msg. The session offset only
// advances past msg once every earlier offset of its partition is acked too.
func (d *SaramaDriver) commitOnAck(sess sarama.ConsumerGroupSession, msg *sarama.ConsumerMessage, resolve func() bool) func() {
	return func() {
		due := resolve()
		if next, ok := d.offsets.ack(msg.Topic, msg.Partition, msg.Offset); ok {
			sess.MarkOffset(msg.Topic, msg.Partition, next, "")
		}
		if due {
			sess.Commit()
		}
	}
}

// toEvent maps a consumer message to an event: the key is the tag, the value
// a JSON record. A message without a key is tagged with its topic. The
// returned event is usable even when err is non-nil.
func toEvent(msg *sarama.ConsumerMessage) (*event.Event, error) {
	ev := &event.Event{
		Tag:  string(msg.Key),
		Time: msg.Timestamp,
		Checkpoint: &event.Checkpoint{
			Source:    sourceName,
			Topic:     msg.Topic,
			Partition: msg.Partition,
			Offset:    msg.Offset,
		},
	}
	if ev.Tag == "" {
		ev.Tag = msg.Topic
	}
	rec, err := event.DecodeRecord(msg.Value)
	if err != nil {
		return ev, err
	}
	ev.Record = rec
	return ev, nil
}

func (d *SaramaDriver) OnAck(cp *event.Checkpoint) {
	if cp == nil || cp.Source != sourceName {
		return
	}
	rec := recordID{cp.Topic, cp.Partition, cp.Offset}

	select {
	case d.ackCh <- rec:
	default:
		select {
		case <-d.ackCh:
		default:
		}
		select {
		case d.ackCh <- rec:
		default:
			logging.L().Warn("sarama-driver: ack channel full; dropping ack", "topic", rec.topic, "partition", rec.partition, "offset", rec.offset)
		}
	}
}
