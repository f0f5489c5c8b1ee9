package repository

import (
	"context"

	"telegram-channel-publisher/internal/domain/model"
)

// MarkSentCriteria selects the post to transition. PostID wins when set;
// otherwise the oldest scheduled post with exactly Text is used.
type MarkSentCriteria struct {
	PostID int64
	Text   string
}

// PostRepository is the durable Post Store. Every method is a single-row statement.
type PostRepository interface {
	// Create inserts p and fills ID and CreatedAt.
	Create(ctx context.Context, tx Tx, p *model.Post) (int64, error)
	// MarkSent moves a scheduled post to sent. Returns domain.ErrNotFound when no scheduled row matches.
	MarkSent(ctx context.Context, tx Tx, criteria MarkSentCriteria, deliveredMessageID int64) error
	// UpdateText overwrites text only.
	UpdateText(ctx context.Context, tx Tx, id int64, text string) error
	List(ctx context.Context, tx Tx, status model.PostStatus, limit int) ([]*model.Post, error)
	Get(ctx context.Context, tx Tx, id int64) (*model.Post, error)
	// ListScheduled returns every scheduled post ordered by scheduled_at.
	ListScheduled(ctx context.Context, tx Tx) ([]*model.Post, error)
}
