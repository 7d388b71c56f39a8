// Package blip implements the replicator's framed message protocol: a
// bi-directional exchange of request/response messages over a single
// persistent connection, each message split into one or more frames that
// may interleave with frames from other in-flight messages, reassembled
// by the receiver per messageNo and sender role (§4.7).
package blip

import "strconv"

// Flags is a bitfield carried on every frame, copied onto the
// reassembled Message once the final frame arrives.
type Flags uint8

const (
	TypeRequest Flags = 1 << iota
	TypeResponse
	TypeError
	Urgent
	NoReply
	MoreComing
	Compressed
)

func (f Flags) Has(bit Flags) bool { return f&bit != 0 }

// typeMask isolates the Request/Response/Error type bits, which are
// mutually exclusive (exactly one is set on any sent message).
const typeMask = TypeRequest | TypeResponse | TypeError

// Message is one complete, reassembled protocol message.
type Message struct {
	MessageNo  uint64
	Flags      Flags
	Properties map[string]string
	Body       []byte
}

// IsRequest, IsResponse, IsError report the message's type bit.
func (m *Message) IsRequest() bool  { return m.Flags&typeMask == TypeRequest }
func (m *Message) IsResponse() bool { return m.Flags&typeMask == TypeResponse }
func (m *Message) IsError() bool    { return m.Flags&typeMask == TypeError }

// Profile returns the message's "Profile" property, the dispatch key
// handlers register against.
func (m *Message) Profile() string { return m.Properties["Profile"] }

// NewRequest builds a request Message for the given profile.
func NewRequest(profile string, properties map[string]string, body []byte) *Message {
	props := cloneProps(properties)
	props["Profile"] = profile
	return &Message{Flags: TypeRequest, Properties: props, Body: body}
}

// NewResponse builds a response Message replying to request.
func NewResponse(properties map[string]string, body []byte) *Message {
	return &Message{Flags: TypeResponse, Properties: cloneProps(properties), Body: body}
}

// NewErrorResponse builds an error response with the conventional
// Error-Domain/Error-Code properties.
func NewErrorResponse(domain string, code int, message string) *Message {
	return &Message{
		Flags: TypeError,
		Properties: map[string]string{
			"Error-Domain": domain,
			"Error-Code":   strconv.Itoa(code),
		},
		Body: []byte(message),
	}
}

func cloneProps(in map[string]string) map[string]string {
	out := make(map[string]string, len(in)+1)
	for k, v := range in {
		out[k] = v
	}
	return out
}

