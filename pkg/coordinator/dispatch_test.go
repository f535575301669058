package coordinator

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/dd0wney/cluso-coordinator/pkg/cluster"
	"github.com/dd0wney/cluso-coordinator/pkg/consensus"
	"github.com/dd0wney/cluso-coordinator/pkg/logging"
	"github.com/dd0wney/cluso-coordinator/pkg/metrics"
	dto "github.com/prometheus/client_model/go"
	"go.etcd.io/raft/v3/raftpb"
)

func counterValue(t *testing.T, c interface{ Write(*dto.Metric) error }) float64 {
	t.Helper()
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatalf("read metric: %v", err)
	}
	return m.GetCounter().GetValue()
}

func newTestTransport(t *testing.T, client MessageSender, peers ...uint64) (*MessageTransport, *metrics.Registry) {
	t.Helper()
	reg := metrics.NewRegistry()
	registry := cluster.NewPeerRegistry(cluster.NodeInfo{Rank: 0, Address: peerAddr(0)}, reg)
	for _, rank := range peers {
		if err := registry.Upsert(cluster.NodeInfo{Rank: rank, Address: peerAddr(rank)}); err != nil {
			t.Fatalf("Upsert: %v", err)
		}
	}
	return NewMessageTransport(registry, client, logging.NewNopLogger(), reg), reg
}

func toRank(rank uint64, typ raftpb.MessageType, index uint64) raftpb.Message {
	return raftpb.Message{
		Type:  typ,
		From:  consensus.IDFromRank(0),
		To:    consensus.IDFromRank(rank),
		Term:  1,
		Index: index,
	}
}

func TestDispatchUnknownPeerIsNotFatal(t *testing.T) {
	log := &eventLog{}
	tr, reg := newTestTransport(t, newRecordingClient(log), 1)

	// Rank 2 was never registered
	result := tr.Dispatch(context.Background(), []raftpb.Message{
		toRank(2, raftpb.MsgHeartbeat, 0),
		toRank(1, raftpb.MsgHeartbeat, 0),
	})

	if result.Sent != 1 || result.Dropped != 1 || result.Failed != 0 {
		t.Errorf("result = %+v, want 1 sent and 1 dropped", result)
	}
	sends := log.sends()
	if len(sends) != 1 || sends[0].addr != peerAddr(1) {
		t.Fatalf("sends = %+v, want one send to rank 1", sends)
	}
	if sends[0].msg.To != consensus.IDFromRank(1) {
		t.Errorf("message To = %d", sends[0].msg.To)
	}
	if v := counterValue(t, reg.MessagesDroppedTotal.WithLabelValues("unknown_peer")); v != 1 {
		t.Errorf("unknown_peer drops = %v, want 1", v)
	}
	if v := counterValue(t, reg.MessagesSentTotal.WithLabelValues("MsgHeartbeat")); v != 1 {
		t.Errorf("sent MsgHeartbeat = %v, want 1", v)
	}
}

func TestDispatchNoDestination(t *testing.T) {
	tr, _ := newTestTransport(t, newRecordingClient(&eventLog{}), 1)

	msg := toRank(1, raftpb.MsgApp, 1)
	msg.To = 0
	if result := tr.Dispatch(context.Background(), []raftpb.Message{msg}); result.Dropped != 1 {
		t.Errorf("result = %+v, want the message dropped", result)
	}
}

func TestDispatchPreservesPerPeerOrder(t *testing.T) {
	log := &eventLog{}
	tr, _ := newTestTransport(t, newRecordingClient(log), 1, 2)

	var batch []raftpb.Message
	for i := uint64(1); i <= 10; i++ {
		batch = append(batch, toRank(1+i%2, raftpb.MsgApp, i))
	}
	result := tr.Dispatch(context.Background(), batch)
	if result.Sent != 10 {
		t.Fatalf("result = %+v, want 10 sent", result)
	}

	last := map[string]uint64{}
	for _, e := range log.sends() {
		if e.msg.Index <= last[e.addr] {
			t.Errorf("%s: index %d sent after %d", e.addr, e.msg.Index, last[e.addr])
		}
		last[e.addr] = e.msg.Index
	}
	if len(last) != 2 {
		t.Errorf("expected sends to 2 peers, got %v", last)
	}
}

func TestDispatchFailureReportsUnreachable(t *testing.T) {
	log := &eventLog{}
	client := newRecordingClient(log)
	client.failAddress(peerAddr(2), errors.New("connection refused"))
	tr, reg := newTestTransport(t, client, 1, 2)

	var mu sync.Mutex
	var unreachable []uint64
	tr.OnUnreachable(func(id uint64) {
		mu.Lock()
		defer mu.Unlock()
		unreachable = append(unreachable, id)
	})

	result := tr.Dispatch(context.Background(), []raftpb.Message{
		toRank(2, raftpb.MsgApp, 1),
		toRank(1, raftpb.MsgApp, 1),
		toRank(2, raftpb.MsgApp, 2),
	})

	if result.Sent != 1 || result.Failed != 2 {
		t.Errorf("result = %+v, want 1 sent and 2 failed", result)
	}
	// Every message to the failing peer is still attempted
	if n := len(log.sends()); n != 3 {
		t.Errorf("attempts = %d, want 3", n)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(unreachable) != 2 || unreachable[0] != consensus.IDFromRank(2) {
		t.Errorf("unreachable = %v, want id %d twice", unreachable, consensus.IDFromRank(2))
	}
	if v := counterValue(t, reg.MessagesDroppedTotal.WithLabelValues("delivery_failed")); v != 2 {
		t.Errorf("delivery_failed = %v, want 2", v)
	}
}

func TestDispatchEmptyBatch(t *testing.T) {
	tr, _ := newTestTransport(t, newRecordingClient(&eventLog{}))
	if result := tr.Dispatch(context.Background(), nil); result != (DispatchResult{}) {
		t.Errorf("result = %+v", result)
	}
}
