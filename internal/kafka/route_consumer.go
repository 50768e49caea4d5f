package kafka

import (
	"context"
	"crypto/tls"
	"sync/atomic"

	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/pkg/sasl"
	"go.uber.org/zap"
)

// RouteConsumer reads RouteEvent records from Kafka and hands each one
// to Handler, committing offsets only after the handler returns (at
// most once per poll batch). See SPEC_FULL.md §6a.
type RouteConsumer struct {
	client *kgo.Client
	logger *zap.Logger
	joined atomic.Bool
}

// Handler processes one decoded route event. A returned error is
// logged; the consumer advances past the record regardless, since the
// rib package's own invariants (implicit withdraw, idempotent
// selection) make redelivery safe to replay.
type Handler func(ctx context.Context, ev *RouteEvent) error

func NewRouteConsumer(brokers []string, groupID string, topics []string, clientID string,
	fetchMaxBytes int32, tlsCfg *tls.Config, saslMech sasl.Mechanism, logger *zap.Logger) (*RouteConsumer, error) {
	rc := &RouteConsumer{logger: logger}

	opts := []kgo.Opt{
		kgo.SeedBrokers(brokers...),
		kgo.ConsumerGroup(groupID),
		kgo.ConsumeTopics(topics...),
		kgo.ClientID(clientID),
		kgo.FetchMaxBytes(fetchMaxBytes),
		kgo.DisableAutoCommit(),
		kgo.OnPartitionsAssigned(func(_ context.Context, _ *kgo.Client, _ map[string][]int32) {
			rc.joined.Store(true)
			logger.Info("route consumer: partitions assigned")
		}),
		kgo.OnPartitionsRevoked(func(ctx context.Context, cl *kgo.Client, _ map[string][]int32) {
			if err := cl.CommitMarkedOffsets(ctx); err != nil {
				logger.Error("route consumer: commit on revoke failed", zap.Error(err))
			}
			rc.joined.Store(false)
			logger.Info("route consumer: partitions revoked")
		}),
		kgo.OnPartitionsLost(func(_ context.Context, _ *kgo.Client, _ map[string][]int32) {
			rc.joined.Store(false)
			logger.Info("route consumer: partitions lost")
		}),
	}

	if tlsCfg != nil {
		opts = append(opts, kgo.DialTLSConfig(tlsCfg))
	}
	if saslMech != nil {
		opts = append(opts, kgo.SASL(saslMech))
	}

	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, err
	}

	rc.client = client
	return rc, nil
}

// Run polls fetches and dispatches each record to handle until ctx is
// cancelled. Offsets are marked after every record in the batch and
// committed once the batch is drained.
func (rc *RouteConsumer) Run(ctx context.Context, handle Handler) {
	for {
		fetches := rc.client.PollFetches(ctx)
		if ctx.Err() != nil {
			return
		}

		if errs := fetches.Errors(); len(errs) > 0 {
			for _, e := range errs {
				rc.logger.Error("route consumer: fetch error",
					zap.String("topic", e.Topic),
					zap.Int32("partition", e.Partition),
					zap.Error(e.Err),
				)
			}
		}

		fetches.EachRecord(func(r *kgo.Record) {
			ev, err := DecodeRouteEvent(r.Value)
			if err != nil {
				rc.logger.Error("route consumer: decode failed",
					zap.String("topic", r.Topic),
					zap.Error(err),
				)
				rc.client.MarkCommitRecords(r)
				return
			}
			if err := handle(ctx, ev); err != nil {
				rc.logger.Error("route consumer: handler failed",
					zap.String("topic", r.Topic),
					zap.String("prefix", ev.Prefix),
					zap.Error(err),
				)
			}
			rc.client.MarkCommitRecords(r)
		})

		if err := rc.client.CommitMarkedOffsets(ctx); err != nil {
			rc.logger.Error("route consumer: commit offsets failed", zap.Error(err))
		}
	}
}

func (rc *RouteConsumer) IsJoined() bool {
	return rc.joined.Load()
}

func (rc *RouteConsumer) Close() {
	rc.client.Close()
}
