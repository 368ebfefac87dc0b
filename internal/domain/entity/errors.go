package entity

import "errors"

var (
	ErrInvalidMessageID = errors.New("invalid message id")
	ErrInvalidChatID    = errors.New("invalid chat id")
)
