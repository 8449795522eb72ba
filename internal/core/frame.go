package core

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"
)

// Message types on the wire.
const (
	TypeHistory      = "message:history"
	TypeMessageNew   = "message:new"
	TypeSignalOffer  = "signal:offer"
	TypeSignalAnswer = "signal:answer"
	TypeSignalICE    = "signal:ice"
	TypeError        = "error"
)

var ErrMalformed = errors.New("malformed message")

// Envelope is the inbound shape shared by chat and signaling frames.
// Data is kept raw and forwarded without re-interpretation.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// ParseEnvelope rejects anything that is not a JSON object with a string type.
func ParseEnvelope(raw []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Envelope{}, ErrMalformed
	}
	if env.Type == "" {
		return Envelope{}, ErrMalformed
	}
	return env, nil
}

func IsSignalType(t string) bool {
	switch t {
	case TypeSignalOffer, TypeSignalAnswer, TypeSignalICE:
		return true
	}
	return false
}

type errorFrame struct {
	Type         string `json:"type"`
	Code         int    `json:"code"`
	Message      string `json:"message,omitempty"`
	RetryAfterMs int64  `json:"retry_after_ms,omitempty"`
}

var historyFrame = Frame(`{"type":"message:history","data":[]}`)

// HistoryFrame is the first frame every chat session receives.
func HistoryFrame() Frame {
	out := make(Frame, len(historyFrame))
	copy(out, historyFrame)
	return out
}

// ChatFrame wraps data, verbatim, as a message:new frame.
// The payload bytes are not re-encoded.
func ChatFrame(data json.RawMessage) Frame {
	if len(data) == 0 {
		data = json.RawMessage("null")
	}
	out := make(Frame, 0, len(chatPrefix)+len(data)+1)
	out = append(out, chatPrefix...)
	out = append(out, data...)
	return append(out, '}')
}

const chatPrefix = `{"type":"message:new","data":`

// ErrorFrame builds an error frame; message is omitted when empty.
func ErrorFrame(code int, message string) Frame {
	b, _ := json.Marshal(errorFrame{Type: TypeError, Code: code, Message: message})
	return b
}

// RateLimitedFrame is the 429 error frame. retry_after_ms is how long the
// sender has to wait before its next frame is admitted, rounded up.
func RateLimitedFrame(retryAfter time.Duration) Frame {
	ms := int64((retryAfter + time.Millisecond - 1) / time.Millisecond)
	if ms < 1 {
		ms = 1
	}
	b, _ := json.Marshal(errorFrame{Type: TypeError, Code: http.StatusTooManyRequests, Message: "rate limited", RetryAfterMs: ms})
	return b
}
