package service

import (
	"strings"

	"go.uber.org/zap"

	"github.com/chatwork/chatwork/gateway/internal/domain/valueobject"
)

// RouteKind is the closed set of routing outcomes. Every admitted
// message maps to exactly one.
type RouteKind string

const (
	RoutePlainReply RouteKind = "plain_reply"
	RouteCommand    RouteKind = "command"
	RouteMedia      RouteKind = "media"
	RouteSilent     RouteKind = "silent_ignore"
)

// RoutingDecision classifies one message. Command and Media carry the
// variant-specific payload; the other kinds carry none.
type RoutingDecision struct {
	Kind      RouteKind
	Command   string
	Args      []string
	MediaKind valueobject.MediaKind
	Delegated bool
}

// TypeRouter maps a ProcessingContext to a RoutingDecision. The mapping
// is pure: same context, same decision.
type TypeRouter struct {
	logger *zap.Logger
}

func NewTypeRouter(logger *zap.Logger) *TypeRouter {
	return &TypeRouter{logger: logger}
}

// Route classifies the message. Precedence: commands first, then media,
// then the group silence rule, then plain reply. A message that carries
// media and also addresses the agent is media handling, not a plain
// reply.
func (r *TypeRouter) Route(pc *ProcessingContext) RoutingDecision {
	body := strings.TrimSpace(pc.Message.Body())

	if strings.HasPrefix(body, "/") {
		name, args := parseCommand(body)
		if name != "" {
			return RoutingDecision{
				Kind:      RouteCommand,
				Command:   name,
				Args:      args,
				Delegated: name == "task",
			}
		}
	}

	addressed := !pc.IsGroup || pc.MentionsBot || (pc.Inbound != nil && pc.Inbound.ReplyToAgent)

	if pc.Message.HasAttachments() {
		if !addressed {
			return RoutingDecision{Kind: RouteSilent}
		}
		return RoutingDecision{
			Kind:      RouteMedia,
			MediaKind: pc.Message.Attachments()[0].Kind,
		}
	}

	// Group chats only respond when addressed directly.
	if !addressed {
		return RoutingDecision{Kind: RouteSilent}
	}

	return RoutingDecision{Kind: RoutePlainReply}
}

func parseCommand(body string) (string, []string) {
	fields := strings.Fields(body)
	if len(fields) == 0 {
		return "", nil
	}
	name := strings.TrimPrefix(fields[0], "/")
	// Strip platform suffixes like /task@chatwork_bot.
	if at := strings.Index(name, "@"); at >= 0 {
		name = name[:at]
	}
	name = strings.ToLower(name)
	if name == "" {
		return "", nil
	}
	return name, fields[1:]
}
