package service

import (
	"time"

	"github.com/chatwork/chatwork/gateway/internal/domain/valueobject"
)

// InboundMessage is the normalized raw message handed to the pipeline
// ingress by a transport adapter. Transports fill every field they
// know; the pipeline never reaches back into transport-specific types.
type InboundMessage struct {
	ChatID            string
	ChatKind          valueobject.ChatKind
	SenderID          string
	SenderName        string
	Body              string
	Attachments       []valueobject.Attachment
	PlatformMessageID string
	Timestamp         time.Time

	// ReplyToAgent is set when the message replies to one of the
	// gateway's own prior messages. Group routing treats such replies
	// like explicit mentions.
	ReplyToAgent bool
}

// Sender builds the sender value for this message.
func (m *InboundMessage) Sender() valueobject.Sender {
	return valueobject.NewSender(m.SenderID, m.SenderName, valueobject.SenderUser)
}
