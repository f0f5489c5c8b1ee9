package repository

import (
	"context"

	"telegram-channel-publisher/internal/domain/model"
)

// SessionRepository is the port for per-operator conversational state.
// Get returns (nil, nil) when the operator has no live session.
type SessionRepository interface {
	Get(ctx context.Context, operatorID int64) (*model.Session, error)
	Set(ctx context.Context, s *model.Session) error
	Clear(ctx context.Context, operatorID int64) error
}
