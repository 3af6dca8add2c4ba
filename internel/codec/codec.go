// Package codec tells the three kinds of frames sharing the shell socket
// apart and maps control envelopes to typed messages.
package codec

import (
	"encoding/json"

	ws "github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
	"wsshell/internel/shared"
)

type Kind int

const (
	RawText Kind = iota
	Control
	Binary
)

func (k Kind) String() string {
	switch k {
	case RawText:
		return "raw"
	case Control:
		return "control"
	case Binary:
		return "binary"
	default:
		return "unknown"
	}
}

// Envelope is a parsed control message. Fields holds the generic object,
// Raw the received bytes for typed decoding.
type Envelope struct {
	Tag    string
	Fields *structpb.Struct
	Raw    []byte
}

// Field returns a string-valued field, or "" when missing or not a string.
func (e *Envelope) Field(name string) string {
	if e == nil || e.Fields == nil {
		return ""
	}
	return e.Fields.GetFields()[name].GetStringValue()
}

func (e *Envelope) Decode(v interface{}) error {
	if err := json.Unmarshal(e.Raw, v); err != nil {
		return errors.Wrapf(err, "decode %s", e.Tag)
	}
	return nil
}

// Frame is the result of classifying one inbound websocket message.
type Frame struct {
	Kind     Kind
	Envelope *Envelope
	Data     []byte
}

var unmarshal = protojson.UnmarshalOptions{DiscardUnknown: true}

// Classify never fails: anything that is not binary and not a recognised
// control envelope is raw terminal text.
func Classify(messageType int, data []byte) Frame {
	if messageType == ws.BinaryMessage {
		return Frame{Kind: Binary, Data: data}
	}
	if env, ok := parseEnvelope(data); ok {
		return Frame{Kind: Control, Envelope: env, Data: data}
	}
	return Frame{Kind: RawText, Data: data}
}

func parseEnvelope(data []byte) (*Envelope, bool) {
	if len(data) < 2 || !looksLikeObject(data) {
		return nil, false
	}
	fields := &structpb.Struct{}
	if err := unmarshal.Unmarshal(data, fields); err != nil {
		return nil, false
	}
	tag := fields.GetFields()["type"].GetStringValue()
	if !shared.IsInbound(tag) {
		return nil, false
	}
	return &Envelope{Tag: tag, Fields: fields, Raw: data}, true
}

// looksLikeObject skips the JSON parser for ordinary shell output.
func looksLikeObject(data []byte) bool {
	for _, c := range data {
		switch c {
		case ' ', '\t', '\r', '\n':
			continue
		case '{':
			return true
		default:
			return false
		}
	}
	return false
}
