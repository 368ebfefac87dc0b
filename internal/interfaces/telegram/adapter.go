// Copyright 2026 Chatwork Authors
// SPDX-License-Identifier: Apache-2.0

// Package telegram adapts Telegram long polling to the pipeline ingress
// and implements the outbound transport.
package telegram

import (
	"context"
	"fmt"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/chatwork/chatwork/gateway/internal/domain/service"
	"github.com/chatwork/chatwork/gateway/internal/domain/valueobject"
	"github.com/chatwork/chatwork/gateway/internal/infrastructure/config"
	domainErrors "github.com/chatwork/chatwork/gateway/pkg/errors"
	"github.com/chatwork/chatwork/gateway/pkg/safego"
)

// Ingress is the pipeline entry the adapter feeds. Handle must not
// block; ordering per chat is the pipeline's concern.
type Ingress interface {
	Handle(msg *service.InboundMessage)
}

// Adapter runs the long-poll loop and converts updates to normalized
// inbound messages. It is also the Transport for outbound replies.
type Adapter struct {
	bot     *tgbotapi.BotAPI
	cfg     config.TelegramConfig
	ingress Ingress
	logger  *zap.Logger
	cancel  context.CancelFunc
}

func NewAdapter(cfg config.TelegramConfig, ingress Ingress, logger *zap.Logger) (*Adapter, error) {
	bot, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}
	bot.Debug = cfg.Debug

	logger.Info("Telegram bot authorized",
		zap.String("username", bot.Self.UserName),
	)

	return &Adapter{
		bot:     bot,
		cfg:     cfg,
		ingress: ingress,
		logger:  logger,
	}, nil
}

// SelfID returns the bot's own user id for the self-message rule.
func (a *Adapter) SelfID() string {
	return strconv.FormatInt(a.bot.Self.ID, 10)
}

// Start begins long polling in a background goroutine.
func (a *Adapter) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := a.bot.GetUpdatesChan(u)

	safego.Go(a.logger, "telegram-poll", func() {
		for {
			select {
			case <-ctx.Done():
				return
			case update, ok := <-updates:
				if !ok {
					return
				}
				a.handleUpdate(update)
			}
		}
	})
}

// Stop ends polling.
func (a *Adapter) Stop() {
	if a.cancel != nil {
		a.cancel()
	}
	a.bot.StopReceivingUpdates()
}

func (a *Adapter) handleUpdate(update tgbotapi.Update) {
	msg := update.Message
	if msg == nil {
		msg = update.EditedMessage
	}
	if msg == nil || msg.From == nil {
		return
	}

	inbound := &service.InboundMessage{
		ChatID:            strconv.FormatInt(msg.Chat.ID, 10),
		ChatKind:          chatKind(msg.Chat),
		SenderID:          strconv.FormatInt(msg.From.ID, 10),
		SenderName:        senderName(msg.From),
		Body:              messageText(msg),
		Attachments:       extractAttachments(msg),
		PlatformMessageID: strconv.Itoa(msg.MessageID),
		Timestamp:         time.Unix(int64(msg.Date), 0).UTC(),
		ReplyToAgent:      repliesToSelf(msg, a.bot.Self.ID),
	}
	a.ingress.Handle(inbound)
}

func chatKind(chat *tgbotapi.Chat) valueobject.ChatKind {
	if chat.IsGroup() || chat.IsSuperGroup() {
		return valueobject.ChatGroup
	}
	return valueobject.ChatDirect
}

func senderName(user *tgbotapi.User) string {
	if user.UserName != "" {
		return user.UserName
	}
	return user.FirstName
}

func messageText(msg *tgbotapi.Message) string {
	if msg.Text != "" {
		return msg.Text
	}
	return msg.Caption
}

func repliesToSelf(msg *tgbotapi.Message, selfID int64) bool {
	return msg.ReplyToMessage != nil &&
		msg.ReplyToMessage.From != nil &&
		msg.ReplyToMessage.From.ID == selfID
}

func extractAttachments(msg *tgbotapi.Message) []valueobject.Attachment {
	var atts []valueobject.Attachment
	switch {
	case len(msg.Photo) > 0:
		// Telegram sends several sizes; keep the largest.
		largest := msg.Photo[len(msg.Photo)-1]
		atts = append(atts, valueobject.Attachment{
			Kind: valueobject.MediaImage,
			Ref:  largest.FileID,
		})
	case msg.Voice != nil:
		atts = append(atts, valueobject.Attachment{
			Kind: valueobject.MediaVoice,
			Ref:  msg.Voice.FileID,
			MIME: msg.Voice.MimeType,
		})
	case msg.Audio != nil:
		atts = append(atts, valueobject.Attachment{
			Kind: valueobject.MediaAudio,
			Ref:  msg.Audio.FileID,
			MIME: msg.Audio.MimeType,
			Name: msg.Audio.FileName,
		})
	case msg.Video != nil:
		atts = append(atts, valueobject.Attachment{
			Kind: valueobject.MediaVideo,
			Ref:  msg.Video.FileID,
			MIME: msg.Video.MimeType,
		})
	case msg.Document != nil:
		atts = append(atts, valueobject.Attachment{
			Kind: valueobject.MediaDocument,
			Ref:  msg.Document.FileID,
			MIME: msg.Document.MimeType,
			Name: msg.Document.FileName,
		})
	}
	return atts
}

// Send implements the outbound transport. Markdown is converted to
// Telegram-safe HTML and split at the platform limit; the returned
// platform id is the first chunk's, which is the one later edits
// target.
func (a *Adapter) Send(ctx context.Context, chatID, text string) (string, error) {
	id, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return "", domainErrors.NewInvalidInput("invalid chat id: " + chatID)
	}

	chunks := ChunkText(MarkdownToTelegramHTML(text))
	var firstID string
	for i, chunk := range chunks {
		sent, err := a.sendChunk(id, chunk)
		if err != nil {
			return "", err
		}
		if i == 0 {
			firstID = strconv.Itoa(sent.MessageID)
		}
	}
	return firstID, nil
}

func (a *Adapter) sendChunk(chatID int64, chunk string) (tgbotapi.Message, error) {
	msg := tgbotapi.NewMessage(chatID, chunk)
	msg.ParseMode = tgbotapi.ModeHTML
	sent, err := a.bot.Send(msg)
	if err != nil {
		// Fall back to plain text when Telegram rejects the HTML.
		msg.ParseMode = ""
		msg.Text = chunk
		sent, err = a.bot.Send(msg)
		if err != nil {
			return tgbotapi.Message{}, domainErrors.NewUnavailable("telegram send failed", err)
		}
	}
	return sent, nil
}

// Edit replaces a previously sent message's text. A body beyond the
// platform limit is split: the original message gets the first chunk
// and the remainder goes out as follow-up messages.
func (a *Adapter) Edit(ctx context.Context, chatID, platformMessageID, text string) error {
	id, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return domainErrors.NewInvalidInput("invalid chat id: " + chatID)
	}
	msgID, err := strconv.Atoi(platformMessageID)
	if err != nil {
		return domainErrors.NewInvalidInput("invalid message id: " + platformMessageID)
	}

	chunks := ChunkText(MarkdownToTelegramHTML(text))
	edit := tgbotapi.NewEditMessageText(id, msgID, chunks[0])
	edit.ParseMode = tgbotapi.ModeHTML
	if _, err := a.bot.Send(edit); err != nil {
		return domainErrors.NewUnavailable("telegram edit failed", err)
	}
	for _, chunk := range chunks[1:] {
		if _, err := a.sendChunk(id, chunk); err != nil {
			return err
		}
	}
	return nil
}
