package coordinator

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dd0wney/cluso-coordinator/pkg/cluster"
	"github.com/dd0wney/cluso-coordinator/pkg/consensus"
	"github.com/dd0wney/cluso-coordinator/pkg/logging"
	"github.com/dd0wney/cluso-coordinator/pkg/metrics"
	"github.com/dd0wney/cluso-coordinator/pkg/transport"
	"go.etcd.io/raft/v3/raftpb"
)

// PeerClient is the outbound side of the peer RPC surface
type PeerClient interface {
	cluster.InfoClient
	MessageSender
}

// CommittedEntry is a normal log entry that reached the commit index
type CommittedEntry struct {
	Index uint64
	Term  uint64
	Data  []byte
}

// Coordinator runs one raft participant: the tick loop, the peer registry,
// outbound dispatch and the inbound RPC handlers.
type Coordinator struct {
	config Config

	// mu serializes every use of driver
	mu     sync.Mutex
	driver *consensus.Driver

	registry  *cluster.PeerRegistry
	client    PeerClient
	transport *MessageTransport
	out       atomic.Pointer[outbox]
	logger    logging.Logger
	metrics   *metrics.Registry

	callbackMu     sync.RWMutex
	onCommit       []func(CommittedEntry)
	onLeaderChange []func(leaderRank uint64, ok bool)

	running    atomic.Bool
	lastTick   atomic.Int64
	lastLeader atomic.Uint64
}

// Option configures a Coordinator
type Option func(*options)

type options struct {
	client  PeerClient
	storage consensus.Storage
	logger  logging.Logger
	metrics *metrics.Registry
}

// WithClient replaces the mangos RPC client
func WithClient(c PeerClient) Option {
	return func(o *options) { o.client = c }
}

// WithStorage replaces the in-memory raft log. The storage must be empty.
func WithStorage(s consensus.Storage) Option {
	return func(o *options) { o.storage = s }
}

// WithLogger sets the logger
func WithLogger(l logging.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithMetrics sets the metrics registry
func WithMetrics(m *metrics.Registry) Option {
	return func(o *options) { o.metrics = m }
}

// New validates cfg and creates a coordinator. Every rank below
// cfg.WorldSize starts as a voter.
func New(cfg Config, opts ...Option) (*Coordinator, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if o.metrics == nil {
		o.metrics = metrics.NewRegistry()
	}
	logger := logging.OrDefault(o.logger).With(logging.Rank(cfg.Rank))

	cc := cfg.consensusConfig()
	cc.Storage = o.storage
	cc.Logger = logger
	driver, err := consensus.New(cc)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	if o.client == nil {
		o.client = transport.NewClient(cfg.TransportConfig(), transport.WithClientLogger(logger))
	}

	registry := cluster.NewPeerRegistry(cluster.NodeInfo{Rank: cfg.Rank, Address: cfg.LocalAddress}, o.metrics)

	c := &Coordinator{
		config:    cfg,
		driver:    driver,
		registry:  registry,
		client:    o.client,
		transport: NewMessageTransport(registry, o.client, logger, o.metrics),
		logger:    logger.Named("coordinator"),
		metrics:   o.metrics,
	}
	c.transport.OnUnreachable(c.reportUnreachable)
	c.lastLeader.Store(driver.Status().Leader)
	return c, nil
}

// Config returns the effective configuration
func (c *Coordinator) Config() Config {
	return c.config
}

// Registry returns the peer registry
func (c *Coordinator) Registry() *cluster.PeerRegistry {
	return c.registry
}

// Metrics returns the metrics registry
func (c *Coordinator) Metrics() *metrics.Registry {
	return c.metrics
}

// LocalNode returns this node's rank and address
func (c *Coordinator) LocalNode() cluster.NodeInfo {
	return c.registry.LocalNode()
}

// Bootstrap discovers peers from seeds. See cluster.Discovery.Bootstrap.
func (c *Coordinator) Bootstrap(ctx context.Context, seeds []string) (cluster.BootstrapResult, error) {
	d := cluster.NewDiscovery(c.registry, c.client, cluster.DiscoveryOptions{
		SkipUnreachable: c.config.SkipUnreachableSeeds,
		Logger:          c.logger,
		Metrics:         c.metrics,
	})
	return d.Bootstrap(ctx, seeds)
}

// OnCommit registers fn to receive committed normal entries with data, in
// log order. Callbacks run on the tick goroutine without the driver lock.
func (c *Coordinator) OnCommit(fn func(CommittedEntry)) {
	c.callbackMu.Lock()
	defer c.callbackMu.Unlock()
	c.onCommit = append(c.onCommit, fn)
}

// OnLeaderChange registers fn to be told the new leader's rank, or ok=false
// when no leader is known.
func (c *Coordinator) OnLeaderChange(fn func(leaderRank uint64, ok bool)) {
	c.callbackMu.Lock()
	defer c.callbackMu.Unlock()
	c.onLeaderChange = append(c.onLeaderChange, fn)
}

// Run ticks the raft node every TickInterval until ctx is done. It returns
// nil on cancellation and an error if persisting ready effects fails.
func (c *Coordinator) Run(ctx context.Context) error {
	if !c.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer c.running.Store(false)

	ob := newOutbox(ctx, c.transport, c.config.SendQueueDepth)
	c.out.Store(ob)
	defer func() {
		c.out.Store(nil)
		ob.close()
	}()

	c.logger.Info("tick loop started", logging.Duration("interval", c.config.TickInterval))
	ticker := time.NewTicker(c.config.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("tick loop stopped")
			return nil
		case <-ticker.C:
			if err := c.tick(ctx); err != nil {
				c.logger.Error("tick failed", logging.Error(err))
				return err
			}
		}
	}
}

// Running reports whether Run is active
func (c *Coordinator) Running() bool {
	return c.running.Load()
}

// LastTick returns when the tick loop last completed a tick
func (c *Coordinator) LastTick() time.Time {
	n := c.lastTick.Load()
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n)
}

// tick performs one logical clock tick and the ready cycle that follows.
// Outbound messages leave after the driver lock is released, and only once
// the batch they belong to has been persisted. Under Run they are queued per
// peer; a tick outside Run delivers them before returning.
func (c *Coordinator) tick(ctx context.Context) error {
	cyc, err := c.advance()
	if err != nil {
		return err
	}
	if cyc.effects != nil {
		c.metrics.RecordReady(metrics.ReadyStats{
			Entries:   len(cyc.effects.Entries),
			HardState: cyc.effects.HardState != nil,
			Snapshot:  cyc.effects.Snapshot != nil,
			Duration:  cyc.took,
		})
		if ob := c.out.Load(); ob != nil {
			ob.send(cyc.outbound)
		} else {
			c.transport.Dispatch(ctx, cyc.outbound)
		}
		c.deliverCommitted(cyc.light.CommittedEntries)
	}
	c.lastTick.Store(time.Now().UnixNano())
	c.observe(cyc.status)
	return nil
}

// readyCycle is what one tick produced under the driver lock
type readyCycle struct {
	effects  *consensus.ReadyEffects
	light    consensus.LightReady
	outbound []raftpb.Message
	status   consensus.Status
	took     time.Duration
}

// advance ticks the driver and runs its ready cycle. Everything that
// touches the driver happens under one acquisition of mu.
func (c *Coordinator) advance() (readyCycle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.driver.Tick()
	c.metrics.RecordTick()
	if !c.driver.HasReady() {
		return readyCycle{status: c.driver.Status()}, nil
	}

	start := time.Now()
	effects := c.driver.ReadReady()
	outbound := make([]raftpb.Message, 0, effects.OutboundCount())
	outbound = append(outbound, effects.Messages...)

	if err := c.driver.Persist(effects); err != nil {
		return readyCycle{}, err
	}
	outbound = append(outbound, effects.PersistedMessages...)

	light := c.driver.Advance(effects)
	if err := c.driver.AdvanceApply(light); err != nil {
		return readyCycle{}, err
	}
	return readyCycle{
		effects:  effects,
		light:    light,
		outbound: outbound,
		status:   c.driver.Status(),
		took:     time.Since(start),
	}, nil
}

func (c *Coordinator) deliverCommitted(entries []raftpb.Entry) {
	if len(entries) == 0 {
		return
	}
	c.metrics.RecordCommitted(len(entries))

	c.callbackMu.RLock()
	callbacks := c.onCommit
	c.callbackMu.RUnlock()
	if len(callbacks) == 0 {
		return
	}

	for _, e := range entries {
		if e.Type != raftpb.EntryNormal || len(e.Data) == 0 {
			continue
		}
		ce := CommittedEntry{Index: e.Index, Term: e.Term, Data: e.Data}
		for _, fn := range callbacks {
			fn(ce)
		}
	}
}

// observe publishes status to the gauges and fires leader callbacks
func (c *Coordinator) observe(status consensus.Status) {
	c.metrics.UpdateConsensusState(status.Term, status.Commit, status.Applied)
	c.metrics.SetRole(string(status.Role))

	if c.lastLeader.Swap(status.Leader) == status.Leader {
		return
	}
	c.metrics.RecordLeaderChange()

	rank, ok := status.LeaderRank()
	if ok {
		c.logger.Info("leader changed",
			logging.Uint64("leader_rank", rank),
			logging.Term(status.Term),
			logging.String("role", string(status.Role)))
	} else {
		c.logger.Info("leader lost", logging.Term(status.Term))
	}

	c.callbackMu.RLock()
	callbacks := c.onLeaderChange
	c.callbackMu.RUnlock()
	for _, fn := range callbacks {
		fn(rank, ok)
	}
}

func (c *Coordinator) reportUnreachable(id uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.driver.ReportUnreachable(id)
}

// Propose appends data to the replicated log. raft.ErrProposalDropped is
// returned when no leader is known. The entry is replicated by later ticks.
func (c *Coordinator) Propose(data []byte) error {
	err := c.propose(data)
	c.metrics.RecordProposal(err == nil)
	return err
}

func (c *Coordinator) propose(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.driver.Propose(data)
}

// Status is a point-in-time view of the node and its registry
type Status struct {
	consensus.Status
	LeaderRank   *uint64              `json:"leader_rank,omitempty"`
	LocalAddress string               `json:"local_address"`
	WorldSize    uint64               `json:"world_size"`
	Peers        []cluster.PeerStatus `json:"peers"`
}

// Status returns the node's raft state and known peers
func (c *Coordinator) Status() Status {
	st := c.driverStatus()
	s := Status{
		Status:       st,
		LocalAddress: c.config.LocalAddress,
		WorldSize:    c.config.WorldSize,
		Peers:        c.registry.Snapshot(),
	}
	if rank, ok := st.LeaderRank(); ok {
		s.LeaderRank = &rank
	}
	return s
}

func (c *Coordinator) driverStatus() consensus.Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.driver.Status()
}
