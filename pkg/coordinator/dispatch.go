package coordinator

import (
	"context"
	"sync"
	"time"

	"github.com/dd0wney/cluso-coordinator/pkg/cluster"
	"github.com/dd0wney/cluso-coordinator/pkg/consensus"
	"github.com/dd0wney/cluso-coordinator/pkg/logging"
	"github.com/dd0wney/cluso-coordinator/pkg/metrics"
	"go.etcd.io/raft/v3/raftpb"
)

// MessageSender delivers one serialized raft message to addr
type MessageSender interface {
	RaftMessage(ctx context.Context, addr string, message []byte) error
}

// DispatchResult counts what happened to a batch
type DispatchResult struct {
	Sent    int
	Dropped int // unknown destination or unencodable
	Failed  int // delivery attempted and failed
}

// MessageTransport routes outbound raft messages to peers by rank
type MessageTransport struct {
	registry *cluster.PeerRegistry
	sender   MessageSender
	logger   logging.Logger
	metrics  *metrics.Registry

	// unreachable is told the participant id of every failed delivery
	unreachable func(id uint64)
}

// NewMessageTransport creates a transport that resolves destinations in registry
func NewMessageTransport(registry *cluster.PeerRegistry, sender MessageSender, logger logging.Logger, reg *metrics.Registry) *MessageTransport {
	return &MessageTransport{
		registry: registry,
		sender:   sender,
		logger:   logging.OrDefault(logger).Named("dispatch"),
		metrics:  reg,
	}
}

// OnUnreachable registers fn to be called with the destination id of every
// failed delivery
func (t *MessageTransport) OnUnreachable(fn func(id uint64)) {
	t.unreachable = fn
}

type peerBatch struct {
	rank     uint64
	address  string
	messages []raftpb.Message
}

// Dispatch delivers msgs. Messages for unknown peers are logged and dropped.
// Each destination is served by its own goroutine in batch order, and a
// failed delivery affects only that message. Dispatch returns when every
// destination is done.
func (t *MessageTransport) Dispatch(ctx context.Context, msgs []raftpb.Message) DispatchResult {
	var result DispatchResult
	if len(msgs) == 0 {
		return result
	}
	start := time.Now()

	batches := make(map[uint64]*peerBatch)
	var order []*peerBatch
	for _, m := range msgs {
		rank, ok := consensus.RankFromID(m.To)
		if !ok {
			t.drop(&result, "no_destination")
			continue
		}
		b, seen := batches[rank]
		if !seen {
			addr, err := t.registry.Address(rank)
			if err != nil {
				b = &peerBatch{rank: rank}
			} else {
				b = &peerBatch{rank: rank, address: addr}
			}
			batches[rank] = b
			order = append(order, b)
		}
		if b.address == "" {
			t.logger.Warn("dropping message for unknown peer",
				logging.PeerRank(rank),
				logging.MessageType(m.Type.String()))
			t.drop(&result, "unknown_peer")
			continue
		}
		b.messages = append(b.messages, m)
	}

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, b := range order {
		if len(b.messages) == 0 {
			continue
		}
		wg.Add(1)
		go func(b *peerBatch) {
			defer wg.Done()
			r := t.deliver(ctx, b)
			mu.Lock()
			result.Sent += r.Sent
			result.Dropped += r.Dropped
			result.Failed += r.Failed
			mu.Unlock()
		}(b)
	}
	wg.Wait()

	if t.metrics != nil {
		t.metrics.RecordDispatch(time.Since(start))
	}
	return result
}

func (t *MessageTransport) deliver(ctx context.Context, b *peerBatch) DispatchResult {
	var result DispatchResult
	for _, m := range b.messages {
		data, err := m.Marshal()
		if err != nil {
			t.logger.Error("failed to encode raft message",
				logging.PeerRank(b.rank),
				logging.MessageType(m.Type.String()),
				logging.Error(err))
			t.drop(&result, "encode")
			continue
		}

		if err := t.sender.RaftMessage(ctx, b.address, data); err != nil {
			t.logger.Warn("raft message delivery failed",
				logging.PeerRank(b.rank),
				logging.Address(b.address),
				logging.MessageType(m.Type.String()),
				logging.Error(err))
			result.Failed++
			if t.metrics != nil {
				t.metrics.RecordMessageDropped("delivery_failed")
			}
			if t.unreachable != nil {
				t.unreachable(m.To)
			}
			continue
		}

		result.Sent++
		if t.metrics != nil {
			t.metrics.RecordMessageSent(m.Type.String())
		}
	}
	return result
}

// Overflow drops msgs that could not be queued for rank and reports the
// peer unreachable
func (t *MessageTransport) Overflow(rank uint64, msgs []raftpb.Message) {
	if len(msgs) == 0 {
		return
	}
	t.logger.Warn("send queue full, dropping messages",
		logging.PeerRank(rank),
		logging.Count(len(msgs)))
	var result DispatchResult
	for range msgs {
		t.drop(&result, "queue_full")
	}
	if t.unreachable != nil {
		t.unreachable(msgs[0].To)
	}
}

func (t *MessageTransport) drop(result *DispatchResult, reason string) {
	result.Dropped++
	if t.metrics != nil {
		t.metrics.RecordMessageDropped(reason)
	}
}
