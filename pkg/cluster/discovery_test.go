package cluster

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/dd0wney/cluso-coordinator/pkg/logging"
)

// fakeNetwork answers Info calls from in-memory registries keyed by address,
// the same way a running coordinator answers an announcement.
type fakeNetwork struct {
	mu     sync.Mutex
	nodes  map[string]*PeerRegistry
	probes map[string]int
}

func newFakeNetwork() *fakeNetwork {
	return &fakeNetwork{
		nodes:  make(map[string]*PeerRegistry),
		probes: make(map[string]int),
	}
}

func (n *fakeNetwork) add(registry *PeerRegistry) {
	n.nodes[registry.LocalNode().Address] = registry
}

func (n *fakeNetwork) Info(ctx context.Context, addr string, requester NodeInfo) ([]NodeInfo, error) {
	n.mu.Lock()
	n.probes[addr]++
	registry, ok := n.nodes[addr]
	n.mu.Unlock()

	if !ok {
		return nil, fmt.Errorf("dial %s: connection refused", addr)
	}
	if err := registry.Upsert(requester); err != nil {
		return nil, err
	}
	return registry.Members(), nil
}

// fullyConnected builds n nodes that already know each other
func fullyConnected(t *testing.T, n int) *fakeNetwork {
	t.Helper()
	network := newFakeNetwork()
	registries := make([]*PeerRegistry, n)
	for i := range registries {
		registries[i] = NewPeerRegistry(NodeInfo{Rank: uint64(i), Address: addr(uint64(i))}, nil)
		network.add(registries[i])
	}
	for _, r := range registries {
		for _, other := range registries {
			if other != r {
				if err := r.Upsert(other.LocalNode()); err != nil {
					t.Fatal(err)
				}
			}
		}
	}
	return network
}

func quietOptions() DiscoveryOptions {
	return DiscoveryOptions{Logger: logging.NewNopLogger()}
}

func TestBootstrapConvergence(t *testing.T) {
	const existing = 4

	for seed := 0; seed < existing; seed++ {
		t.Run(fmt.Sprintf("seed %d", seed), func(t *testing.T) {
			network := fullyConnected(t, existing)
			registry := NewPeerRegistry(NodeInfo{Rank: existing, Address: addr(existing)}, nil)
			discovery := NewDiscovery(registry, network, quietOptions())

			result, err := discovery.Bootstrap(context.Background(), []string{addr(uint64(seed))})
			if err != nil {
				t.Fatalf("Bootstrap failed: %v", err)
			}

			if registry.Len() != existing {
				t.Fatalf("registered %d peers, want %d", registry.Len(), existing)
			}
			for rank := uint64(0); rank < existing; rank++ {
				got, err := registry.Address(rank)
				if err != nil || got != addr(rank) {
					t.Errorf("Address(%d) = %q, %v", rank, got, err)
				}
			}
			if result.Registered != existing {
				t.Errorf("Registered = %d, want %d", result.Registered, existing)
			}
			for a, count := range network.probes {
				if count > 1 {
					t.Errorf("%s probed %d times", a, count)
				}
			}

			// the seed learned about the new node too
			if _, ok := network.nodes[addr(uint64(seed))].Lookup(existing); !ok {
				t.Errorf("seed %d did not register the bootstrapping node", seed)
			}
		})
	}
}

func TestBootstrapTransitive(t *testing.T) {
	// a chain 0 <- 1 <- 2: node 1 knows 0, node 2 knows only 1
	network := newFakeNetwork()
	r0 := NewPeerRegistry(NodeInfo{Rank: 0, Address: addr(0)}, nil)
	r1 := NewPeerRegistry(NodeInfo{Rank: 1, Address: addr(1)}, nil)
	r2 := NewPeerRegistry(NodeInfo{Rank: 2, Address: addr(2)}, nil)
	r1.Upsert(r0.LocalNode())
	r2.Upsert(r1.LocalNode())
	network.add(r0)
	network.add(r1)
	network.add(r2)

	registry := NewPeerRegistry(NodeInfo{Rank: 3, Address: addr(3)}, nil)
	if _, err := NewDiscovery(registry, network, quietOptions()).Bootstrap(context.Background(), []string{addr(2)}); err != nil {
		t.Fatalf("Bootstrap failed: %v", err)
	}

	if registry.Len() != 3 {
		t.Errorf("registered ranks %v, want [0 1 2]", registry.Ranks())
	}
}

func TestBootstrapEmptySeeds(t *testing.T) {
	network := newFakeNetwork()
	registry := NewPeerRegistry(NodeInfo{Rank: 0, Address: addr(0)}, nil)

	result, err := NewDiscovery(registry, network, quietOptions()).Bootstrap(context.Background(), []string{"", addr(0)})
	if err != nil {
		t.Fatalf("Bootstrap failed: %v", err)
	}
	if result.Probed != 0 || len(network.probes) != 0 {
		t.Errorf("empty and self seeds must not be probed: %v", network.probes)
	}
}

func TestBootstrapUnreachableIsFatal(t *testing.T) {
	network := fullyConnected(t, 2)
	registry := NewPeerRegistry(NodeInfo{Rank: 5, Address: addr(5)}, nil)

	// popped last-in first-out, so the dead address is tried first
	_, err := NewDiscovery(registry, network, quietOptions()).Bootstrap(context.Background(), []string{addr(0), "inproc://dead"})
	if !errors.Is(err, ErrBootstrapFailed) {
		t.Fatalf("Bootstrap error = %v, want ErrBootstrapFailed", err)
	}
	if registry.Len() != 0 {
		t.Errorf("registered %d peers before the failure, want 0", registry.Len())
	}
}

func TestBootstrapSkipUnreachable(t *testing.T) {
	network := fullyConnected(t, 2)
	registry := NewPeerRegistry(NodeInfo{Rank: 5, Address: addr(5)}, nil)

	opts := quietOptions()
	opts.SkipUnreachable = true
	result, err := NewDiscovery(registry, network, opts).Bootstrap(context.Background(), []string{addr(0), "inproc://dead"})
	if err != nil {
		t.Fatalf("Bootstrap failed: %v", err)
	}
	if len(result.Skipped) != 1 || result.Skipped[0] != "inproc://dead" {
		t.Errorf("Skipped = %v", result.Skipped)
	}
	if registry.Len() != 2 {
		t.Errorf("registered %d peers, want 2", registry.Len())
	}
}

func TestBootstrapCanceled(t *testing.T) {
	network := fullyConnected(t, 2)
	registry := NewPeerRegistry(NodeInfo{Rank: 5, Address: addr(5)}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewDiscovery(registry, network, quietOptions()).Bootstrap(ctx, []string{addr(0)})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Bootstrap error = %v, want context.Canceled", err)
	}
}

func TestBootstrapNoClient(t *testing.T) {
	registry := NewPeerRegistry(NodeInfo{Rank: 0, Address: addr(0)}, nil)
	_, err := NewDiscovery(registry, nil, quietOptions()).Bootstrap(context.Background(), []string{addr(1)})
	if !errors.Is(err, ErrNoInfoClient) {
		t.Errorf("Bootstrap error = %v, want ErrNoInfoClient", err)
	}
}
