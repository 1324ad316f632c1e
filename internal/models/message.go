package models

import "encoding/json"

// MessageType is the wire-level discriminator for every frame exchanged
// with a client. JOIN/LEAVE/HEARTBEAT share the envelope with chat text;
// the connection manager dispatches on the type explicitly.
type MessageType int

const (
	TypeText MessageType = iota + 1
	TypeJoin
	TypeLeave
	TypeHelp
	TypeCommand
	TypeEncrypted
	TypeHeartbeat
)

func (t MessageType) String() string {
	switch t {
	case TypeText:
		return "text"
	case TypeJoin:
		return "join"
	case TypeLeave:
		return "leave"
	case TypeHelp:
		return "help"
	case TypeCommand:
		return "command"
	case TypeEncrypted:
		return "encrypted"
	case TypeHeartbeat:
		return "heartbeat"
	default:
		return "unknown"
	}
}

// SystemSender is the reserved sender name for server-authored messages.
const SystemSender = "server"

// Message is the unit of communication. Sender is never empty once a
// message has passed authentication; Target, when set, names a user.
type Message struct {
	Type    MessageType `json:"type"`
	Sender  string      `json:"sender"`
	Content string      `json:"content"`
	Target  string      `json:"target,omitempty"`
	Command string      `json:"command,omitempty"`
}

// Encode serializes the message as compact JSON for the wire.
func (m *Message) Encode() ([]byte, error) {
	return json.Marshal(m)
}

// Decode parses a wire frame. Missing optional fields keep their zero
// values.
func Decode(data []byte) (*Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// NewText builds a plain chat message.
func NewText(sender, content, target string) *Message {
	return &Message{Type: TypeText, Sender: sender, Content: content, Target: target}
}

// NewServerNotice builds a server-authored text message for one user.
func NewServerNotice(content, target string) *Message {
	return &Message{Type: TypeText, Sender: SystemSender, Content: content, Target: target}
}

// NewJoin builds the notification broadcast when a user comes online.
func NewJoin(user string) *Message {
	return &Message{Type: TypeJoin, Sender: user, Content: user + " joined the chat"}
}

// NewLeave builds the notification broadcast when a user goes offline.
func NewLeave(user string) *Message {
	return &Message{Type: TypeLeave, Sender: user, Content: user + " left the chat"}
}

// NewPong builds the heartbeat reply sent back to the originating
// connection only.
func NewPong(target string) *Message {
	return &Message{Type: TypeHeartbeat, Sender: SystemSender, Content: "pong", Target: target}
}
