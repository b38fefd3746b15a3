// Package queue is a durable job queue over Redis Streams with consumer
// groups, redelivery, and delivery counting for dead-letter decisions
package queue

import (
	"context"
	"errors"
	"os"
	"strings"
	"time"

	perr "nitpick/internal/platform/errors"
	"nitpick/internal/platform/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const payloadField = "payload"

// Message is one delivery pulled from the stream
type Message struct {
	ID      string
	Payload []byte
}

// Options configures the queue adapter
type Options struct {
	Stream   string
	Group    string
	Consumer string // defaults to host-uuid

	// ReclaimIdle is how long a pending entry may sit with a dead consumer
	// before another consumer may claim it
	ReclaimIdle time.Duration
}

// Queue wraps one stream + consumer group pair
type Queue struct {
	rd  *redis.Client
	opt Options
	log logger.Logger
}

// New builds a Queue; call EnsureGroup once before the first Receive
func New(rd *redis.Client, opt Options) *Queue {
	if opt.Consumer == "" {
		host, _ := os.Hostname()
		opt.Consumer = host + "-" + uuid.NewString()
	}
	if opt.ReclaimIdle <= 0 {
		opt.ReclaimIdle = time.Minute
	}
	return &Queue{rd: rd, opt: opt, log: *logger.Named("queue")}
}

// EnsureGroup creates the consumer group, tolerating an existing one
func (q *Queue) EnsureGroup(ctx context.Context) error {
	err := q.rd.XGroupCreateMkStream(ctx, q.opt.Stream, q.opt.Group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return perr.Wrapf(err, perr.ErrorCodeUnavailable, "queue group create failed")
	}
	return nil
}

// Send appends one payload to the stream. Callers invoke this only after
// the ingestion gate has allowed the job
func (q *Queue) Send(ctx context.Context, payload []byte) error {
	err := q.rd.XAdd(ctx, &redis.XAddArgs{
		Stream: q.opt.Stream,
		Values: map[string]any{payloadField: payload},
	}).Err()
	if err != nil {
		return perr.Wrapf(err, perr.ErrorCodeUnavailable, "queue send failed")
	}
	return nil
}

// Receive pulls up to max messages: first it reclaims entries stranded on
// dead consumers, then reads new ones, blocking up to block for the latter
func (q *Queue) Receive(ctx context.Context, max int, block time.Duration) ([]Message, error) {
	if max <= 0 {
		max = 1
	}

	out := q.reclaim(ctx, max)
	if len(out) >= max {
		return out, nil
	}

	streams, err := q.rd.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    q.opt.Group,
		Consumer: q.opt.Consumer,
		Streams:  []string{q.opt.Stream, ">"},
		Count:    int64(max - len(out)),
		Block:    block,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return out, nil
		}
		if len(out) > 0 {
			// deliver what the reclaim pass produced
			q.log.Warn().Err(err).Msg("queue read failed after reclaim")
			return out, nil
		}
		return nil, perr.Wrapf(err, perr.ErrorCodeUnavailable, "queue receive failed")
	}

	for _, s := range streams {
		for _, m := range s.Messages {
			out = append(out, toMessage(m))
		}
	}
	return out, nil
}

// reclaim claims entries idle past the threshold from dead consumers
func (q *Queue) reclaim(ctx context.Context, max int) []Message {
	msgs, _, err := q.rd.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   q.opt.Stream,
		Group:    q.opt.Group,
		Consumer: q.opt.Consumer,
		MinIdle:  q.opt.ReclaimIdle,
		Start:    "0-0",
		Count:    int64(max),
	}).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		q.log.Warn().Err(err).Msg("queue reclaim failed")
		return nil
	}
	out := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, toMessage(m))
	}
	return out
}

// Ack removes the entry from the pending list; unacked entries are
// redelivered via reclaim
func (q *Queue) Ack(ctx context.Context, id string) error {
	if err := q.rd.XAck(ctx, q.opt.Stream, q.opt.Group, id).Err(); err != nil {
		return perr.Wrapf(err, perr.ErrorCodeUnavailable, "queue ack failed")
	}
	return nil
}

// Deliveries reports how many times the entry has been handed out, so the
// worker can dead-letter poison payloads
func (q *Queue) Deliveries(ctx context.Context, id string) (int64, error) {
	pend, err := q.rd.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: q.opt.Stream,
		Group:  q.opt.Group,
		Start:  id,
		End:    id,
		Count:  1,
	}).Result()
	if err != nil {
		return 0, perr.Wrapf(err, perr.ErrorCodeUnavailable, "queue pending lookup failed")
	}
	for _, p := range pend {
		if p.ID == id {
			return p.RetryCount, nil
		}
	}
	return 0, nil
}

func toMessage(m redis.XMessage) Message {
	var payload []byte
	if v, ok := m.Values[payloadField]; ok {
		switch x := v.(type) {
		case string:
			payload = []byte(x)
		case []byte:
			payload = x
		}
	}
	return Message{ID: m.ID, Payload: payload}
}
