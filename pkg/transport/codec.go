package transport

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/golang/snappy"
)

// ErrCorruptFrame is returned for frames that do not decode to an Envelope
var ErrCorruptFrame = errors.New("corrupt frame")

// Encode serializes an envelope as snappy-compressed JSON
func Encode(env *Envelope) ([]byte, error) {
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("encode envelope: %w", err)
	}
	return snappy.Encode(nil, data), nil
}

// Decode parses a frame produced by Encode
func Decode(frame []byte) (*Envelope, error) {
	data, err := snappy.Decode(nil, frame)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptFrame, err)
	}
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptFrame, err)
	}
	if env.Type == "" {
		return nil, fmt.Errorf("%w: missing type", ErrCorruptFrame)
	}
	return &env, nil
}
