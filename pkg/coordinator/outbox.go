package coordinator

import (
	"context"
	"sync"

	"github.com/dd0wney/cluso-coordinator/pkg/consensus"
	"go.etcd.io/raft/v3/raftpb"
)

// outbox hands outbound batches to one sender goroutine per peer, so a peer
// that stalls delays only its own traffic. Batches for a peer leave in the
// order they were queued. When a peer's queue is full the batch is dropped
// and raft is told the peer is unreachable; raft retransmits.
type outbox struct {
	ctx       context.Context
	transport *MessageTransport
	depth     int

	mu     sync.Mutex
	queues map[uint64]chan []raftpb.Message
	closed bool
	wg     sync.WaitGroup
}

func newOutbox(ctx context.Context, transport *MessageTransport, depth int) *outbox {
	return &outbox{
		ctx:       ctx,
		transport: transport,
		depth:     max(depth, 1),
		queues:    make(map[uint64]chan []raftpb.Message),
	}
}

// send queues msgs by destination without blocking
func (o *outbox) send(msgs []raftpb.Message) {
	if len(msgs) == 0 {
		return
	}

	var (
		order    []uint64
		byRank   = make(map[uint64][]raftpb.Message)
		unrouted []raftpb.Message
	)
	for _, m := range msgs {
		rank, ok := consensus.RankFromID(m.To)
		if !ok {
			unrouted = append(unrouted, m)
			continue
		}
		if _, seen := byRank[rank]; !seen {
			order = append(order, rank)
		}
		byRank[rank] = append(byRank[rank], m)
	}
	if len(unrouted) > 0 {
		// Nothing to deliver, so this only counts the drops
		o.transport.Dispatch(o.ctx, unrouted)
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return
	}
	for _, rank := range order {
		batch := byRank[rank]
		select {
		case o.queue(rank) <- batch:
		default:
			o.transport.Overflow(rank, batch)
		}
	}
}

// queue returns rank's queue, starting its sender on first use. Callers
// hold mu.
func (o *outbox) queue(rank uint64) chan []raftpb.Message {
	q, ok := o.queues[rank]
	if ok {
		return q
	}
	q = make(chan []raftpb.Message, o.depth)
	o.queues[rank] = q
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		for batch := range q {
			o.transport.Dispatch(o.ctx, batch)
		}
	}()
	return q
}

// close stops accepting batches and waits for the senders to drain
func (o *outbox) close() {
	o.mu.Lock()
	if !o.closed {
		o.closed = true
		for _, q := range o.queues {
			close(q)
		}
	}
	o.mu.Unlock()
	o.wg.Wait()
}
