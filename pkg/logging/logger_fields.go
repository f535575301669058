package logging

import (
	"time"
)

func String(key, value string) Field {
	return Field{Key: key, Value: value}
}

func Int(key string, value int) Field {
	return Field{Key: key, Value: value}
}

func Uint64(key string, value uint64) Field {
	return Field{Key: key, Value: value}
}

func Bool(key string, value bool) Field {
	return Field{Key: key, Value: value}
}

func Duration(key string, value time.Duration) Field {
	return Field{Key: key, Value: value.String()}
}

func Error(err error) Field {
	if err == nil {
		return Field{Key: "error", Value: nil}
	}
	return Field{Key: "error", Value: err.Error()}
}

func Any(key string, value any) Field {
	return Field{Key: key, Value: value}
}

// Domain fields

// Rank is the local node's 0-based cluster rank
func Rank(rank uint64) Field {
	return Uint64("rank", rank)
}

// PeerRank is the rank of the remote side of an exchange
func PeerRank(rank uint64) Field {
	return Uint64("peer_rank", rank)
}

func Address(addr string) Field {
	return String("address", addr)
}

func Term(term uint64) Field {
	return Uint64("term", term)
}

func MessageType(t string) Field {
	return String("msg_type", t)
}

func RequestID(id string) Field {
	return String("request_id", id)
}

func Latency(d time.Duration) Field {
	return Duration("latency", d)
}

func Count(n int) Field {
	return Int("count", n)
}
