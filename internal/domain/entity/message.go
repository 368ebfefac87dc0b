package entity

import (
	"time"

	"github.com/chatwork/chatwork/gateway/internal/domain/valueobject"
)

// Direction marks a message as received from or sent to the platform.
type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

// Kind classifies the message payload.
type Kind string

const (
	KindText    Kind = "text"
	KindCommand Kind = "command"
	KindMedia   Kind = "media"
	KindSystem  Kind = "system"
)

// Message is one inbound or outbound chat message. Immutable once
// persisted; (chatID, platformMessageID) is unique when the platform id
// is present.
type Message struct {
	id                string
	chatID            string
	platformMessageID string
	sender            valueobject.Sender
	body              string
	attachments       []valueobject.Attachment
	direction         Direction
	kind              Kind
	timestamp         time.Time
	metadata          map[string]interface{}
}

// NewInbound creates a message received from the platform.
func NewInbound(
	id string,
	chatID string,
	platformMessageID string,
	sender valueobject.Sender,
	body string,
	attachments []valueobject.Attachment,
	kind Kind,
	timestamp time.Time,
) (*Message, error) {
	if id == "" {
		return nil, ErrInvalidMessageID
	}
	if chatID == "" {
		return nil, ErrInvalidChatID
	}
	if timestamp.IsZero() {
		timestamp = time.Now().UTC()
	}

	return &Message{
		id:                id,
		chatID:            chatID,
		platformMessageID: platformMessageID,
		sender:            sender,
		body:              body,
		attachments:       attachments,
		direction:         DirectionInbound,
		kind:              kind,
		timestamp:         timestamp,
		metadata:          make(map[string]interface{}),
	}, nil
}

// NewOutbound creates a reply produced by the gateway. The platform
// message id is filled in after a successful send.
func NewOutbound(id string, chatID string, sender valueobject.Sender, body string) (*Message, error) {
	if id == "" {
		return nil, ErrInvalidMessageID
	}
	if chatID == "" {
		return nil, ErrInvalidChatID
	}

	return &Message{
		id:        id,
		chatID:    chatID,
		sender:    sender,
		body:      body,
		direction: DirectionOutbound,
		kind:      KindText,
		timestamp: time.Now().UTC(),
		metadata:  make(map[string]interface{}),
	}, nil
}

// Reconstruct rebuilds a message from the persistence layer.
func Reconstruct(
	id string,
	chatID string,
	platformMessageID string,
	sender valueobject.Sender,
	body string,
	attachments []valueobject.Attachment,
	direction Direction,
	kind Kind,
	timestamp time.Time,
	metadata map[string]interface{},
) *Message {
	if metadata == nil {
		metadata = make(map[string]interface{})
	}
	return &Message{
		id:                id,
		chatID:            chatID,
		platformMessageID: platformMessageID,
		sender:            sender,
		body:              body,
		attachments:       attachments,
		direction:         direction,
		kind:              kind,
		timestamp:         timestamp,
		metadata:          metadata,
	}
}

func (m *Message) ID() string                           { return m.id }
func (m *Message) ChatID() string                       { return m.chatID }
func (m *Message) PlatformMessageID() string            { return m.platformMessageID }
func (m *Message) Sender() valueobject.Sender           { return m.sender }
func (m *Message) Body() string                         { return m.body }
func (m *Message) Attachments() []valueobject.Attachment { return m.attachments }
func (m *Message) Direction() Direction                 { return m.direction }
func (m *Message) Kind() Kind                           { return m.kind }
func (m *Message) Timestamp() time.Time                 { return m.timestamp }

// SetPlatformMessageID records the platform-assigned id after a send.
// Only valid before the message is persisted.
func (m *Message) SetPlatformMessageID(id string) {
	m.platformMessageID = id
}

// SetMetadata sets one metadata value.
func (m *Message) SetMetadata(key string, value interface{}) {
	m.metadata[key] = value
}

// GetMetadata returns one metadata value.
func (m *Message) GetMetadata(key string) (interface{}, bool) {
	val, ok := m.metadata[key]
	return val, ok
}

// Metadata returns a copy of all metadata.
func (m *Message) Metadata() map[string]interface{} {
	result := make(map[string]interface{}, len(m.metadata))
	for k, v := range m.metadata {
		result[k] = v
	}
	return result
}

// IsFromAgent reports whether the gateway's own account sent this message.
func (m *Message) IsFromAgent() bool {
	return m.sender.Type() == valueobject.SenderAgent
}

// HasAttachments reports whether the message carries media.
func (m *Message) HasAttachments() bool {
	return len(m.attachments) > 0
}
