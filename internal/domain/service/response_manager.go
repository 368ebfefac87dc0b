package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/chatwork/chatwork/gateway/internal/domain/entity"
	"github.com/chatwork/chatwork/gateway/internal/domain/repository"
	"github.com/chatwork/chatwork/gateway/internal/domain/valueobject"
	"github.com/chatwork/chatwork/gateway/internal/infrastructure/config"
	apperrors "github.com/chatwork/chatwork/gateway/pkg/errors"
)

const (
	deliveryAttempts = 3
	deliveryBackoff  = 200 * time.Millisecond
	draftInterval    = 750 * time.Millisecond

	// draftEditCap bounds intermediate streaming edits. Replies that
	// grow past it stop editing and arrive in full, chunked, at
	// Finalize; the cap leaves headroom under Telegram's 4096-byte
	// limit for HTML markup added by rendering.
	draftEditCap = 3500
)

// Transport is the outbound platform boundary. Send returns the
// platform-assigned message id so later edits can target it.
type Transport interface {
	Send(ctx context.Context, chatID, text string) (string, error)
	Edit(ctx context.Context, chatID, platformMessageID, text string) error
}

// DeliveryNotifier observes successful outbound deliveries, for
// example the websocket delivery stream. Notification is best effort
// and must not block.
type DeliveryNotifier interface {
	NotifyOutbound(msg *entity.Message)
}

// ResponseManager is the single egress point: idempotent delivery with
// bounded retries, outbound persistence, and throttled draft streaming.
type ResponseManager struct {
	transport  Transport
	store      repository.ConversationStore
	deliveries repository.DeliveryStore
	audit      repository.AuditLog
	cfg        config.ResponsesConfig
	sender     valueobject.Sender
	notifier   DeliveryNotifier
	logger     *zap.Logger
	sleepFn    func(context.Context, time.Duration) bool
}

func NewResponseManager(
	transport Transport,
	store repository.ConversationStore,
	deliveries repository.DeliveryStore,
	audit repository.AuditLog,
	cfg config.ResponsesConfig,
	agentName string,
	logger *zap.Logger,
) *ResponseManager {
	return &ResponseManager{
		transport:  transport,
		store:      store,
		deliveries: deliveries,
		audit:      audit,
		cfg:        cfg,
		sender:     valueobject.NewSender("agent", agentName, valueobject.SenderAgent),
		logger:     logger,
		sleepFn:    sleepCtx,
	}
}

// Deliver sends text as the reply to the inbound message identified by
// its platform message id. The id doubles as the idempotency key: a
// reprocessed message yields exactly one outbound delivery.
func (m *ResponseManager) Deliver(ctx context.Context, chatID, inboundPlatformID, inboundID, text string) (*entity.Message, error) {
	key := deliveryKey(chatID, inboundPlatformID)
	fresh, err := m.deliveries.Reserve(ctx, key, chatID, inboundID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeUnavailable, "reserve delivery", err)
	}
	if !fresh {
		m.logger.Info("Delivery already reserved, skipping",
			zap.String("chat_id", chatID),
			zap.String("key", key),
		)
		return nil, nil
	}
	return m.completeReserved(ctx, chatID, key, inboundID, text)
}

// completeReserved sends and records a delivery whose key is already
// reserved by the caller.
func (m *ResponseManager) completeReserved(ctx context.Context, chatID, key, inboundID, text string) (*entity.Message, error) {
	platformID, err := m.sendWithRetry(ctx, chatID, text)
	if err != nil {
		if markErr := m.deliveries.MarkFailed(ctx, key, err.Error()); markErr != nil {
			m.logger.Error("Failed to mark delivery failed", zap.Error(markErr))
		}
		m.auditFailed(ctx, chatID, inboundID, err)
		return nil, err
	}
	return m.recordDelivered(ctx, chatID, key, platformID, text)
}

// recordDelivered persists the outbound message, resolves the delivery
// record and notifies observers. The message is already on the wire:
// persistence failures are logged, not surfaced.
func (m *ResponseManager) recordDelivered(ctx context.Context, chatID, key, platformID, text string) (*entity.Message, error) {
	out, err := entity.NewOutbound(uuid.NewString(), chatID, m.sender, text)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, "construct outbound message", err)
	}
	out.SetPlatformMessageID(platformID)
	if err := m.store.Append(ctx, out); err != nil {
		m.logger.Error("Failed to persist outbound message",
			zap.String("chat_id", chatID),
			zap.Error(err),
		)
	}
	if err := m.deliveries.MarkDelivered(ctx, key, out.ID()); err != nil {
		m.logger.Error("Failed to mark delivery complete", zap.Error(err))
	}
	m.notify(out)
	return out, nil
}

// SetNotifier attaches the delivery observer. Call before Start; not
// safe to swap while delivering.
func (m *ResponseManager) SetNotifier(n DeliveryNotifier) {
	m.notifier = n
}

func (m *ResponseManager) notify(out *entity.Message) {
	if m.notifier != nil {
		m.notifier.NotifyOutbound(out)
	}
}

func (m *ResponseManager) auditFailed(ctx context.Context, chatID, inboundID string, cause error) {
	if m.audit == nil {
		return
	}
	rec := repository.AuditRecord{
		ID:        uuid.NewString(),
		ChatID:    chatID,
		Verdict:   "delivery_failed",
		Reason:    cause.Error(),
		MessageID: inboundID,
		CreatedAt: time.Now().UTC(),
	}
	if err := m.audit.Record(ctx, rec); err != nil {
		m.logger.Error("Failed to record delivery audit", zap.Error(err))
	}
}

// DeliverDegraded sends the configured apology for a failed or timed-out
// invocation. The user always gets a reply, never silence.
func (m *ResponseManager) DeliverDegraded(ctx context.Context, chatID, inboundPlatformID, inboundID string, outcome AgentOutcome) (*entity.Message, error) {
	return m.Deliver(ctx, chatID, inboundPlatformID, inboundID, m.degradedText(outcome))
}

// AckTask confirms that a long task was queued.
func (m *ResponseManager) AckTask(ctx context.Context, chatID, inboundPlatformID, inboundID string) (*entity.Message, error) {
	return m.Deliver(ctx, chatID, inboundPlatformID, inboundID, m.cfg.TaskAckText)
}

func (m *ResponseManager) degradedText(outcome AgentOutcome) string {
	if outcome.Kind == OutcomeTimedOut {
		return m.cfg.DegradedText
	}
	return m.cfg.FailedText
}

func (m *ResponseManager) sendWithRetry(ctx context.Context, chatID, text string) (string, error) {
	var lastErr error
	backoff := deliveryBackoff
	for attempt := 1; attempt <= deliveryAttempts; attempt++ {
		platformID, err := m.transport.Send(ctx, chatID, text)
		if err == nil {
			return platformID, nil
		}
		lastErr = err
		m.logger.Warn("Transport send failed",
			zap.String("chat_id", chatID),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		if attempt < deliveryAttempts {
			if !m.sleepFn(ctx, backoff) {
				return "", apperrors.Wrap(apperrors.CodeFailed, "delivery cancelled", ctx.Err())
			}
			backoff *= 2
		}
	}
	return "", apperrors.Wrap(apperrors.CodeFailed, "delivery exhausted retries", lastErr)
}

// Draft is a progressively edited outbound message holding the
// delivery reservation for its inbound message. Updates are throttled
// so the platform sees at most one edit per interval; the final text
// is always flushed.
type Draft struct {
	mgr       *ResponseManager
	chatID    string
	key       string
	inboundID string

	mu         sync.Mutex
	platformID string
	pending    string
	lastEdit   time.Time
	started    bool
}

// StartDraft reserves the delivery for the inbound message and begins a
// streaming reply. A nil draft with nil error means the delivery was
// already reserved: the caller must not produce another reply.
func (m *ResponseManager) StartDraft(ctx context.Context, chatID, inboundPlatformID, inboundID string) (*Draft, error) {
	key := deliveryKey(chatID, inboundPlatformID)
	fresh, err := m.deliveries.Reserve(ctx, key, chatID, inboundID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeUnavailable, "reserve delivery", err)
	}
	if !fresh {
		m.logger.Info("Delivery already reserved, skipping",
			zap.String("chat_id", chatID),
			zap.String("key", key),
		)
		return nil, nil
	}
	return &Draft{mgr: m, chatID: chatID, key: key, inboundID: inboundID}, nil
}

// Update replaces the draft text, creating the platform message on
// first call and editing it afterwards, at most once per interval.
// Text beyond the edit cap is not flushed; Finalize delivers it whole.
func (d *Draft) Update(ctx context.Context, text string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(text) > draftEditCap {
		return
	}
	d.pending = text
	if !d.started {
		id, err := d.mgr.transport.Send(ctx, d.chatID, text)
		if err != nil {
			d.mgr.logger.Warn("Draft send failed", zap.String("chat_id", d.chatID), zap.Error(err))
			return
		}
		d.platformID = id
		d.started = true
		d.lastEdit = time.Now()
		return
	}
	if time.Since(d.lastEdit) < draftInterval {
		return
	}
	d.flushLocked(ctx)
}

// Finalize flushes the final text and records the delivery under the
// reservation taken at StartDraft. When streaming never produced a
// platform message it sends the reply whole instead.
func (d *Draft) Finalize(ctx context.Context, text string) (*entity.Message, error) {
	d.mu.Lock()
	started := d.started
	platformID := d.platformID
	d.pending = text
	if started {
		d.flushLocked(ctx)
	}
	d.mu.Unlock()

	if !started {
		return d.mgr.completeReserved(ctx, d.chatID, d.key, d.inboundID, text)
	}
	return d.mgr.recordDelivered(ctx, d.chatID, d.key, platformID, text)
}

// FinalizeDegraded closes the draft with the apology for a failed or
// timed-out invocation, replacing any partial streamed text.
func (d *Draft) FinalizeDegraded(ctx context.Context, outcome AgentOutcome) (*entity.Message, error) {
	return d.Finalize(ctx, d.mgr.degradedText(outcome))
}

func (d *Draft) flushLocked(ctx context.Context) {
	if err := d.mgr.transport.Edit(ctx, d.chatID, d.platformID, d.pending); err != nil {
		d.mgr.logger.Warn("Draft edit failed", zap.String("chat_id", d.chatID), zap.Error(err))
		return
	}
	d.lastEdit = time.Now()
}

func deliveryKey(chatID, inboundPlatformID string) string {
	return chatID + ":" + inboundPlatformID
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
