package consensus

import (
	"errors"
	"fmt"

	"go.etcd.io/raft/v3/raftpb"
)

// Configuration errors
var (
	ErrInvalidConfig    = errors.New("invalid consensus configuration")
	ErrInvalidWorldSize = errors.New("world size must be at least 1")
	ErrRankOutOfRange   = errors.New("rank must be less than world size")
	ErrInvalidTicks     = errors.New("election tick must be greater than heartbeat tick")
)

// Runtime errors
var (
	ErrConsensusStep = errors.New("consensus step rejected")
	ErrMisrouted     = errors.New("message addressed to another participant")
	ErrCommitAhead   = errors.New("commit index beyond the local log")
	ErrStepPanic     = errors.New("raft node panicked while stepping")
	ErrPersist       = errors.New("persisting ready effects failed")
)

// StepError reports an inbound message the raft node refused. The node's
// state is unchanged when a StepError is returned.
type StepError struct {
	Type raftpb.MessageType
	From uint64
	To   uint64
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %s from %d to %d: %v", e.Type, e.From, e.To, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// Is makes every StepError match ErrConsensusStep
func (e *StepError) Is(target error) bool {
	return target == ErrConsensusStep
}
