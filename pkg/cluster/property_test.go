package cluster

import (
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestRegistryInvariants checks that any sequence of announcements only
// ever grows the set of known ranks and never registers the local rank.
func TestRegistryInvariants(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)

	properties.Property("known ranks never shrink", prop.ForAll(
		func(ranks []uint64, salts []uint8) bool {
			registry := NewPeerRegistry(NodeInfo{Rank: 0, Address: "inproc://local"}, nil)
			seen := make(map[uint64]bool)

			for i, rank := range ranks {
				salt := uint8(0)
				if i < len(salts) {
					salt = salts[i]
				}
				info := NodeInfo{Rank: rank, Address: fmt.Sprintf("inproc://%d-%d", rank, salt)}
				if i%2 == 0 {
					registry.Upsert(info)
				} else {
					registry.AddIfAbsent(info)
				}
				if rank != 0 {
					seen[rank] = true
				}

				for r := range seen {
					if _, ok := registry.Lookup(r); !ok {
						return false
					}
				}
				if registry.Len() != len(seen) {
					return false
				}
			}
			_, hasLocal := registry.Lookup(0)
			return !hasLocal
		},
		gen.SliceOf(gen.UInt64Range(0, 8)),
		gen.SliceOf(gen.UInt8()),
	))

	properties.Property("upsert is last writer wins", prop.ForAll(
		func(first, second string) bool {
			registry := NewPeerRegistry(NodeInfo{Rank: 0, Address: "inproc://local"}, nil)
			registry.Upsert(NodeInfo{Rank: 1, Address: "inproc://" + first})
			registry.Upsert(NodeInfo{Rank: 1, Address: "inproc://" + second})
			got, err := registry.Address(1)
			return err == nil && got == "inproc://"+second
		},
		gen.AlphaString(),
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}
