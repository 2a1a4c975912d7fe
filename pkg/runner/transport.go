package runner

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/weftlabs/weft/pkg/models"
)

// Transport frames messages as JSON lines over a byte stream. Sends are
// serialized; receives are expected from a single reader goroutine.
type Transport struct {
	mu      sync.Mutex
	encoder *json.Encoder
	decoder *json.Decoder
}

// NewTransport wraps a read/write pair, typically the pipes of a worker
// process or an in-memory pipe in tests.
func NewTransport(r io.Reader, w io.Writer) *Transport {
	return &Transport{
		encoder: json.NewEncoder(w),
		decoder: json.NewDecoder(r),
	}
}

// Send writes one message. Failures come back as TransportError so callers
// can treat them as best effort.
func (t *Transport) Send(msgType string, payload any) error {
	var (
		data json.RawMessage
		err  error
	)

	if payload != nil {
		data, err = json.Marshal(payload)
		if err != nil {
			return &models.TransportError{MessageType: msgType, Err: fmt.Errorf("failed to encode payload: %w", err)}
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.encoder.Encode(Message{Type: msgType, Data: data}); err != nil {
		return &models.TransportError{MessageType: msgType, Err: err}
	}

	return nil
}

// Receive reads the next message. io.EOF means the peer closed the pipe.
func (t *Transport) Receive() (*Message, error) {
	var msg Message

	if err := t.decoder.Decode(&msg); err != nil {
		return nil, err
	}

	return &msg, nil
}
