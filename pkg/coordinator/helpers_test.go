package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/dd0wney/cluso-coordinator/pkg/cluster"
	"github.com/dd0wney/cluso-coordinator/pkg/logging"
	"go.etcd.io/raft/v3"
	"go.etcd.io/raft/v3/raftpb"
)

// event is one observable side effect: a storage write or an outbound send
type event struct {
	kind string // "snapshot", "append", "hardstate" or "send"
	term uint64
	addr string
	msg  raftpb.Message
}

type eventLog struct {
	mu     sync.Mutex
	events []event
}

func (l *eventLog) add(e event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func (l *eventLog) snapshot() []event {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]event(nil), l.events...)
}

func (l *eventLog) sends() []event {
	var out []event
	for _, e := range l.snapshot() {
		if e.kind == "send" {
			out = append(out, e)
		}
	}
	return out
}

// recordingStorage logs every write into a shared event log
type recordingStorage struct {
	*raft.MemoryStorage
	log *eventLog
}

func (s *recordingStorage) Append(entries []raftpb.Entry) error {
	s.log.add(event{kind: "append"})
	return s.MemoryStorage.Append(entries)
}

func (s *recordingStorage) SetHardState(st raftpb.HardState) error {
	s.log.add(event{kind: "hardstate", term: st.Term})
	return s.MemoryStorage.SetHardState(st)
}

func (s *recordingStorage) ApplySnapshot(snap raftpb.Snapshot) error {
	s.log.add(event{kind: "snapshot", term: snap.Metadata.Term})
	return s.MemoryStorage.ApplySnapshot(snap)
}

// recordingClient logs every raft message it is asked to send. Addresses
// in fail return that error.
type recordingClient struct {
	log  *eventLog
	mu   sync.Mutex
	fail map[string]error
}

func newRecordingClient(log *eventLog) *recordingClient {
	return &recordingClient{log: log, fail: make(map[string]error)}
}

func (c *recordingClient) failAddress(addr string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fail[addr] = err
}

func (c *recordingClient) RaftMessage(ctx context.Context, addr string, data []byte) error {
	var m raftpb.Message
	if err := m.Unmarshal(data); err != nil {
		return err
	}
	c.log.add(event{kind: "send", addr: addr, term: m.Term, msg: m})
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fail[addr]
}

func (c *recordingClient) Info(ctx context.Context, addr string, requester cluster.NodeInfo) ([]cluster.NodeInfo, error) {
	return nil, errors.New("info not supported by recording client")
}

func peerAddr(rank uint64) string {
	return fmt.Sprintf("inproc://peer-%d", rank)
}

func testConfig(rank, world uint64) Config {
	return Config{
		Rank:         rank,
		WorldSize:    world,
		LocalAddress: peerAddr(rank),
		TickInterval: 10 * time.Millisecond,
	}
}

func newTestCoordinator(t *testing.T, rank, world uint64, opts ...Option) *Coordinator {
	t.Helper()
	opts = append([]Option{WithLogger(logging.NewNopLogger())}, opts...)
	c, err := New(testConfig(rank, world), opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

// registerPeers registers every rank below world except the local one
func registerPeers(t *testing.T, c *Coordinator, world uint64) {
	t.Helper()
	for rank := uint64(0); rank < world; rank++ {
		if rank == c.LocalNode().Rank {
			continue
		}
		if err := c.Registry().Upsert(cluster.NodeInfo{Rank: rank, Address: peerAddr(rank)}); err != nil {
			t.Fatalf("Upsert(%d): %v", rank, err)
		}
	}
}
