package transport

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dd0wney/cluso-coordinator/pkg/cluster"
	"github.com/dd0wney/cluso-coordinator/pkg/logging"
	"github.com/dd0wney/cluso-coordinator/pkg/metrics"
	"github.com/dd0wney/cluso-coordinator/pkg/validation"
	dto "github.com/prometheus/client_model/go"
)

type fakeHandler struct {
	mu       sync.Mutex
	messages [][]byte
	peers    []cluster.NodeInfo
	stepErr  error
	panicOn  string
}

func (h *fakeHandler) Info(ctx context.Context, req InfoRequest) (*InfoResponse, error) {
	if req.Requester.Address == h.panicOn {
		panic("bad requester")
	}
	if req.Requester.Address == "" {
		return nil, Errorf(CodeInvalidArgument, "requester address is empty")
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return &InfoResponse{Peers: append([]cluster.NodeInfo{req.Requester}, h.peers...)}, nil
}

func (h *fakeHandler) RaftMessage(ctx context.Context, req RaftMessageRequest) (*RaftMessageResponse, error) {
	if h.stepErr != nil {
		return nil, h.stepErr
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.messages = append(h.messages, req.Message)
	return &RaftMessageResponse{}, nil
}

func testAddr(t *testing.T) string {
	return "inproc://" + strings.ReplaceAll(t.Name(), "/", "-")
}

func startServer(t *testing.T, handler Handler, opts ...ServerOption) *Server {
	t.Helper()
	opts = append([]ServerOption{WithServerLogger(logging.NewNopLogger())}, opts...)
	server := NewServer(Config{Workers: 4}, handler, opts...)
	if err := server.Start(testAddr(t)); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(func() { server.Stop() })
	return server
}

func testClient() *Client {
	return NewClient(Config{ConnectTimeout: time.Second, RequestTimeout: 2 * time.Second}, WithClientLogger(logging.NewNopLogger()))
}

func TestInfoCall(t *testing.T) {
	handler := &fakeHandler{peers: []cluster.NodeInfo{{Rank: 0, Address: "inproc://zero"}}}
	server := startServer(t, handler)

	peers, err := testClient().Info(context.Background(), server.Addr(), cluster.NodeInfo{Rank: 2, Address: "inproc://two"})
	if err != nil {
		t.Fatalf("Info failed: %v", err)
	}
	if len(peers) != 2 || peers[0].Rank != 2 || peers[1].Address != "inproc://zero" {
		t.Errorf("peers = %+v", peers)
	}
}

func TestRaftMessageCall(t *testing.T) {
	handler := &fakeHandler{}
	server := startServer(t, handler)

	if err := testClient().RaftMessage(context.Background(), server.Addr(), []byte("payload")); err != nil {
		t.Fatalf("RaftMessage failed: %v", err)
	}

	handler.mu.Lock()
	defer handler.mu.Unlock()
	if len(handler.messages) != 1 || string(handler.messages[0]) != "payload" {
		t.Errorf("handler received %q", handler.messages)
	}
}

func TestHandlerErrorsKeepTheirCode(t *testing.T) {
	handler := &fakeHandler{stepErr: errors.New("stale term"), panicOn: "inproc://panic"}
	server := startServer(t, handler)
	client := testClient()

	err := client.RaftMessage(context.Background(), server.Addr(), []byte("x"))
	if CodeOf(err) != CodeInternal || !strings.Contains(err.Error(), "stale term") {
		t.Errorf("RaftMessage error = %v, want Internal", err)
	}
	if n := strings.Count(err.Error(), "rpc Internal"); n != 1 {
		t.Errorf("RaftMessage error %q carries its status %d times", err, n)
	}

	_, err = client.Info(context.Background(), server.Addr(), cluster.NodeInfo{Rank: 1})
	if CodeOf(err) != CodeInvalidArgument {
		t.Errorf("Info error = %v, want InvalidArgument", err)
	}

	_, err = client.Info(context.Background(), server.Addr(), cluster.NodeInfo{Rank: 1, Address: "inproc://panic"})
	if CodeOf(err) != CodeInternal {
		t.Errorf("panicking handler error = %v, want Internal", err)
	}

	err = client.Call(context.Background(), server.Addr(), Method("bogus"), struct{}{}, nil)
	if CodeOf(err) != CodeUnimplemented {
		t.Errorf("unknown method error = %v, want Unimplemented", err)
	}
}

func TestUnreachablePeer(t *testing.T) {
	err := testClient().RaftMessage(context.Background(), "inproc://nobody-listens-here", []byte("x"))
	if CodeOf(err) != CodeUnavailable {
		t.Errorf("error = %v, want Unavailable", err)
	}
}

func TestExpiredContext(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), -time.Second)
	defer cancel()

	err := testClient().RaftMessage(ctx, "inproc://whatever", []byte("x"))
	if CodeOf(err) != CodeDeadlineExceeded {
		t.Errorf("error = %v, want DeadlineExceeded", err)
	}
}

func TestConcurrentCalls(t *testing.T) {
	handler := &fakeHandler{}
	server := startServer(t, handler)
	client := testClient()

	var wg sync.WaitGroup
	errs := make(chan error, 32)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs <- client.RaftMessage(context.Background(), server.Addr(), []byte(fmt.Sprint(i)))
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Errorf("call failed: %v", err)
		}
	}
	handler.mu.Lock()
	defer handler.mu.Unlock()
	if len(handler.messages) != 32 {
		t.Errorf("handler received %d messages, want 32", len(handler.messages))
	}
}

func TestStopRejectsCalls(t *testing.T) {
	server := NewServer(Config{Workers: 2}, &fakeHandler{}, WithServerLogger(logging.NewNopLogger()))
	if err := server.Start(testAddr(t)); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := server.Start(testAddr(t)); !errors.Is(err, ErrServerRunning) {
		t.Errorf("second Start error = %v", err)
	}
	if err := server.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if err := server.Stop(); err != nil {
		t.Errorf("second Stop failed: %v", err)
	}

	err := testClient().RaftMessage(context.Background(), testAddr(t), []byte("x"))
	if CodeOf(err) != CodeUnavailable {
		t.Errorf("call after Stop error = %v, want Unavailable", err)
	}
}

func TestStartRejectsBadAddress(t *testing.T) {
	for _, addr := range []string{"", "bogus", "udp://127.0.0.1:1"} {
		server := NewServer(Config{Workers: 1}, &fakeHandler{}, WithServerLogger(logging.NewNopLogger()))
		if err := server.Start(addr); !errors.Is(err, validation.ErrInvalidConfig) {
			t.Errorf("Start(%q) error = %v, want ErrInvalidConfig", addr, err)
		}
	}
}

func TestServerMetrics(t *testing.T) {
	reg := metrics.NewRegistry()
	server := startServer(t, &fakeHandler{}, WithServerMetrics(reg))

	if err := testClient().RaftMessage(context.Background(), server.Addr(), []byte("x")); err != nil {
		t.Fatal(err)
	}

	var m dto.Metric
	if err := reg.RPCRequestsTotal.WithLabelValues("raft_message", "OK").Write(&m); err != nil {
		t.Fatal(err)
	}
	if m.Counter.GetValue() != 1 {
		t.Errorf("rpc counter = %v, want 1", m.Counter.GetValue())
	}
}

func TestConfigValidate(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
	if cfg.ConnectTimeout != 10*time.Second {
		t.Errorf("ConnectTimeout = %v, want 10s", cfg.ConnectTimeout)
	}

	cfg.Workers = 5000
	if err := cfg.Validate(); err == nil {
		t.Error("expected an error for 5000 workers")
	}

	cfg.Workers = -1
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "must be positive") {
		t.Errorf("Validate() = %v, want a positive workers error", err)
	}
	if strings.Contains(err.Error(), "outside range") {
		t.Errorf("negative workers reported twice: %v", err)
	}
}
