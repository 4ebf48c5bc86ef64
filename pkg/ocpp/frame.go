// Package ocpp parses OCPP 1.6-J frames out of charger protocol log lines
// and provides the calendar-month activity index used for gap analysis.
package ocpp

import (
	"strings"

	"github.com/valyala/fastjson"
)

// MessageType is the OCPP-J frame type discriminator.
type MessageType int

// OCPP-J wire values.
const (
	Call       MessageType = 2
	CallResult MessageType = 3
	CallError  MessageType = 4
)

// Frame is one parsed OCPP-J message.
type Frame struct {
	Type MessageType

	// ID is the message identifier used for request/response correlation.
	ID string

	// Action is the operation name; present only on Call frames.
	Action string

	// Payload is the message body. May be nil for malformed frames.
	Payload *fastjson.Value
}

// Parser extracts frames from log lines. Not safe for concurrent use;
// each device analysis owns its own.
type Parser struct {
	pool fastjson.ParserPool
}

// ParseLine extracts the OCPP-J frame from a protocol log line. Lines
// that carry no frame, or whose frame cannot be parsed, return ok=false;
// they are simply not protocol messages.
func (p *Parser) ParseLine(line string) (Frame, bool) {
	end := strings.LastIndex(line, "]")
	if end < 0 {
		return Frame{}, false
	}

	// The frame is the bracketed JSON array; log prefixes may contain
	// their own brackets, so walk candidate opens until one parses.
	offset := 0
	for {
		rel := strings.Index(line[offset:], "[")
		if rel < 0 {
			return Frame{}, false
		}
		start := offset + rel
		if start >= end {
			return Frame{}, false
		}
		if frame, ok := p.parseFrame(line[start : end+1]); ok {
			return frame, true
		}
		offset = start + 1
	}
}

func (p *Parser) parseFrame(text string) (Frame, bool) {
	jp := p.pool.Get()
	defer p.pool.Put(jp)

	v, err := jp.Parse(text)
	if err != nil {
		return Frame{}, false
	}

	arr := v.GetArray()
	if len(arr) < 2 {
		return Frame{}, false
	}

	msgType, err := arr[0].Int()
	if err != nil {
		return Frame{}, false
	}

	frame := Frame{Type: MessageType(msgType)}
	switch frame.Type {
	case Call:
		if len(arr) < 4 {
			return Frame{}, false
		}
		frame.ID = string(arr[1].GetStringBytes())
		frame.Action = string(arr[2].GetStringBytes())
		frame.Payload = cloneValue(arr[3])
	case CallResult:
		if len(arr) < 3 {
			return Frame{}, false
		}
		frame.ID = string(arr[1].GetStringBytes())
		frame.Payload = cloneValue(arr[2])
	case CallError:
		frame.ID = string(arr[1].GetStringBytes())
	default:
		return Frame{}, false
	}

	if frame.ID == "" {
		return Frame{}, false
	}
	return frame, true
}

// cloneValue reparses a payload so it outlives the pooled parser's buffer.
func cloneValue(v *fastjson.Value) *fastjson.Value {
	if v == nil {
		return nil
	}
	clone, err := fastjson.Parse(v.String())
	if err != nil {
		return nil
	}
	return clone
}
