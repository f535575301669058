package coordinator

import (
	"context"
	"errors"
	"fmt"

	"github.com/dd0wney/cluso-coordinator/pkg/cluster"
	"github.com/dd0wney/cluso-coordinator/pkg/logging"
	"github.com/dd0wney/cluso-coordinator/pkg/transport"
	"go.etcd.io/raft/v3/raftpb"
)

// AcceptMessage decodes one raft message and steps it into the node.
// The node is unchanged when an error is returned.
func (c *Coordinator) AcceptMessage(data []byte) error {
	var msg raftpb.Message
	if err := msg.Unmarshal(data); err != nil {
		c.metrics.RecordMessageDropped("decode")
		return fmt.Errorf("%w: %w", ErrDeserialization, err)
	}
	c.metrics.RecordMessageReceived(msg.Type.String())

	if err := c.step(msg); err != nil {
		c.metrics.RecordStepError(msg.Type.String())
		c.logger.Debug("step rejected",
			logging.MessageType(msg.Type.String()),
			logging.Uint64("from", msg.From),
			logging.Error(err))
		return err
	}
	return nil
}

func (c *Coordinator) step(msg raftpb.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.driver.Step(msg)
}

// AnnouncePeer records info, replacing any earlier address for its rank,
// and returns every known node including this one.
func (c *Coordinator) AnnouncePeer(info cluster.NodeInfo) ([]cluster.NodeInfo, error) {
	if err := c.registry.Upsert(info); err != nil {
		return nil, err
	}
	c.metrics.RecordAnnouncement()
	c.logger.Debug("peer announced", logging.PeerRank(info.Rank), logging.Address(info.Address))
	return c.registry.Members(), nil
}

var _ transport.Handler = (*Coordinator)(nil)

// Info serves the Info RPC
func (c *Coordinator) Info(ctx context.Context, req transport.InfoRequest) (*transport.InfoResponse, error) {
	peers, err := c.AnnouncePeer(req.Requester)
	if err != nil {
		if errors.Is(err, cluster.ErrLocalRank) || errors.Is(err, cluster.ErrEmptyAddress) {
			return nil, transport.Errorf(transport.CodeInvalidArgument, "announce %s: %w", req.Requester, err)
		}
		return nil, transport.Errorf(transport.CodeInternal, "announce %s: %w", req.Requester, err)
	}
	return &transport.InfoResponse{Peers: peers}, nil
}

// RaftMessage serves the RaftMessage RPC
func (c *Coordinator) RaftMessage(ctx context.Context, req transport.RaftMessageRequest) (*transport.RaftMessageResponse, error) {
	if err := c.AcceptMessage(req.Message); err != nil {
		return nil, transport.Errorf(transport.CodeInternal, "%w", err)
	}
	return &transport.RaftMessageResponse{}, nil
}

// Serve starts an RPC server for c on the configured listen address. The
// caller stops it.
func (c *Coordinator) Serve(opts ...transport.ServerOption) (*transport.Server, error) {
	opts = append([]transport.ServerOption{
		transport.WithServerLogger(c.logger),
		transport.WithServerMetrics(c.metrics),
	}, opts...)
	srv := transport.NewServer(c.config.TransportConfig(), c, opts...)
	if err := srv.Start(c.config.ListenAddress); err != nil {
		return nil, err
	}
	return srv, nil
}
