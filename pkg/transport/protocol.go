package transport

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/dd0wney/cluso-coordinator/pkg/cluster"
	"github.com/google/uuid"
)

// Method names an RPC operation
type Method string

const (
	// MethodInfo announces the caller and returns the callee's peer list
	MethodInfo Method = "info"
	// MethodRaftMessage delivers one serialized raft message
	MethodRaftMessage Method = "raft_message"
)

// Envelope is the frame exchanged over a socket. Replies copy the request's
// Type and RequestID.
type Envelope struct {
	Type      Method `json:"type"`
	RequestID string `json:"request_id"`
	Timestamp int64  `json:"timestamp"`
	Code      Code   `json:"code,omitempty"`
	Error     string `json:"error,omitempty"`
	Data      []byte `json:"data,omitempty"`
}

// NewRequest creates a request envelope with a fresh request id
func NewRequest(method Method, payload any) (*Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Envelope{
		Type:      method,
		RequestID: uuid.NewString(),
		Timestamp: time.Now().UnixNano(),
		Data:      data,
	}, nil
}

// Reply creates the response envelope for this request
func (e *Envelope) Reply(payload any, err error) *Envelope {
	reply := &Envelope{
		Type:      e.Type,
		RequestID: e.RequestID,
		Timestamp: time.Now().UnixNano(),
	}
	if err != nil {
		reply.Code = CodeOf(err)
		reply.Error = err.Error()
		var se *StatusError
		if errors.As(err, &se) {
			reply.Error = se.Message
		}
		return reply
	}
	data, merr := json.Marshal(payload)
	if merr != nil {
		reply.Code = CodeInternal
		reply.Error = "encode reply: " + merr.Error()
		return reply
	}
	reply.Data = data
	return reply
}

// Decode decodes envelope data into v
func (e *Envelope) Decode(v any) error {
	return json.Unmarshal(e.Data, v)
}

// InfoRequest announces the caller
type InfoRequest struct {
	Requester cluster.NodeInfo `json:"requester"`
}

// InfoResponse lists every node the callee knows, itself included
type InfoResponse struct {
	Peers []cluster.NodeInfo `json:"peers"`
}

// RaftMessageRequest carries one raftpb.Message in its wire encoding
type RaftMessageRequest struct {
	Message []byte `json:"message"`
}

// RaftMessageResponse is an empty acknowledgement
type RaftMessageResponse struct{}
