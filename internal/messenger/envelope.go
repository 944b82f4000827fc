package messenger

import (
	"encoding/json"
	"math"
	"time"

	"github.com/yndnr/meshbus-go/internal/codec"
)

// Envelope is the unit exchanged between nodes.
type Envelope struct {
	Type      string         `json:"type"`
	Content   string         `json:"content"`
	Sender    string         `json:"sender"`
	Timestamp int64          `json:"timestamp"`
	Data      map[string]any `json:"data,omitempty"`
}

// NewEnvelope builds an unsent envelope. Sender and Timestamp are filled in
// at send time.
func NewEnvelope(msgType, content string, data map[string]any) *Envelope {
	return &Envelope{Type: msgType, Content: content, Data: data}
}

// Time returns the send time.
func (e *Envelope) Time() time.Time {
	return time.UnixMilli(e.Timestamp)
}

// DataString returns a string entry of Data.
func (e *Envelope) DataString(key string) (string, bool) {
	v, ok := e.Data[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// DataInt returns an integer entry of Data. Decoded JSON numbers arrive as
// float64 and are accepted when they hold a whole value; numeric strings
// are accepted too.
func (e *Envelope) DataInt(key string) (int64, bool) {
	switch v := e.Data[key].(type) {
	case int:
		return int64(v), true
	case int32:
		return int64(v), true
	case int64:
		return v, true
	case float64:
		if v != math.Trunc(v) || v < math.MinInt64 || v >= math.MaxInt64 {
			return 0, false
		}
		return int64(v), true
	case json.Number:
		n, err := v.Int64()
		return n, err == nil
	case string:
		n, err := codec.ParseInt(v)
		return n, err == nil
	default:
		return 0, false
	}
}

// DataBool returns a boolean entry of Data.
func (e *Envelope) DataBool(key string) (bool, bool) {
	switch v := e.Data[key].(type) {
	case bool:
		return v, true
	case string:
		b, err := codec.ParseBool(v)
		return b, err == nil
	default:
		return false, false
	}
}

func encodeEnvelope(e *Envelope) (string, error) {
	return codec.Encode(e)
}

func decodeEnvelope(payload string) (*Envelope, error) {
	e, err := codec.Decode[Envelope](payload)
	if err != nil {
		return nil, err
	}
	return &e, nil
}
