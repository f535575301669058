package cluster

import (
	"context"
	"fmt"

	"github.com/dd0wney/cluso-coordinator/pkg/logging"
	"github.com/dd0wney/cluso-coordinator/pkg/metrics"
)

// InfoClient announces the local node to the peer at addr and returns the
// peers that node knows about, itself included.
type InfoClient interface {
	Info(ctx context.Context, addr string, requester NodeInfo) ([]NodeInfo, error)
}

// DiscoveryOptions configures a Discovery
type DiscoveryOptions struct {
	// SkipUnreachable logs and skips addresses that fail to answer instead
	// of aborting the bootstrap.
	SkipUnreachable bool
	Logger          logging.Logger
	Metrics         *metrics.Registry
}

// Discovery fills a PeerRegistry from seed addresses by exchanging peer
// lists until no unknown peers remain.
type Discovery struct {
	registry        *PeerRegistry
	client          InfoClient
	skipUnreachable bool
	logger          logging.Logger
	metrics         *metrics.Registry
}

// BootstrapResult describes a finished bootstrap
type BootstrapResult struct {
	Probed     int      // addresses that answered
	Registered int      // peers added to the registry
	Skipped    []string // addresses that failed, only with SkipUnreachable
}

// NewDiscovery creates a discovery service that writes into registry
func NewDiscovery(registry *PeerRegistry, client InfoClient, opts DiscoveryOptions) *Discovery {
	logger := logging.OrDefault(opts.Logger).Named("discovery")
	return &Discovery{
		registry:        registry,
		client:          client,
		skipUnreachable: opts.SkipUnreachable,
		logger:          logger,
		metrics:         opts.Metrics,
	}
}

// Bootstrap probes seeds and every newly learned peer address. Empty seeds
// and the local address are ignored. Addresses are probed last-in first-out.
// A peer's address is only queued when it differs from the address that
// reported it, so a node is not asked twice in a row about itself.
//
// Unless SkipUnreachable is set, the first failed probe aborts the bootstrap
// with an error wrapping ErrBootstrapFailed; peers registered so far stay
// registered.
func (d *Discovery) Bootstrap(ctx context.Context, seeds []string) (BootstrapResult, error) {
	var result BootstrapResult
	if d.client == nil {
		return result, ErrNoInfoClient
	}

	local := d.registry.LocalNode()
	timer := logging.StartTimer(d.logger, "bootstrap finished", logging.Rank(local.Rank))

	work := make([]string, 0, len(seeds))
	for _, seed := range seeds {
		if seed == "" || seed == local.Address {
			continue
		}
		work = append(work, seed)
	}

	for len(work) > 0 {
		if err := ctx.Err(); err != nil {
			return result, fmt.Errorf("%w: %w", ErrBootstrapFailed, err)
		}

		addr := work[len(work)-1]
		work = work[:len(work)-1]

		peers, err := d.client.Info(ctx, addr, local)
		if err != nil {
			d.recordProbe("failed")
			if d.skipUnreachable {
				d.logger.Warn("skipping unreachable bootstrap address", logging.Address(addr), logging.Error(err))
				result.Skipped = append(result.Skipped, addr)
				continue
			}
			timer.EndError(err)
			return result, fmt.Errorf("%w: probe %s: %w", ErrBootstrapFailed, addr, err)
		}
		d.recordProbe("ok")
		result.Probed++

		for _, peer := range peers {
			if peer.Rank == local.Rank {
				continue
			}
			added, err := d.registry.AddIfAbsent(peer)
			if err != nil {
				d.logger.Warn("ignoring invalid peer", logging.PeerRank(peer.Rank), logging.Address(addr), logging.Error(err))
				continue
			}
			if !added {
				continue
			}
			result.Registered++
			d.logger.Info("discovered peer", logging.PeerRank(peer.Rank), logging.Address(peer.Address))
			if peer.Address != addr {
				work = append(work, peer.Address)
			}
		}
	}

	if d.metrics != nil {
		d.metrics.RecordBootstrap(timer.Elapsed())
	}
	timer.End(logging.Count(d.registry.Len()))
	return result, nil
}

func (d *Discovery) recordProbe(result string) {
	if d.metrics != nil {
		d.metrics.RecordBootstrapProbe(result)
	}
}
