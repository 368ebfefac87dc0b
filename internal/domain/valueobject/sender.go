package valueobject

// SenderType distinguishes real users from the gateway's own account.
type SenderType string

const (
	SenderUser  SenderType = "user"
	SenderAgent SenderType = "agent"
)

// Sender identifies who wrote a message.
type Sender struct {
	id          string
	displayName string
	senderType  SenderType
}

// NewSender creates a sender value.
func NewSender(id, displayName string, senderType SenderType) Sender {
	return Sender{
		id:          id,
		displayName: displayName,
		senderType:  senderType,
	}
}

func (s Sender) ID() string          { return s.id }
func (s Sender) DisplayName() string { return s.displayName }
func (s Sender) Type() SenderType    { return s.senderType }
