package model

import (
	"strings"
	"time"

	"telegram-channel-publisher/internal/domain"
)

type PostStatus string

const (
	PostStatusSent      PostStatus = "sent"
	PostStatusScheduled PostStatus = "scheduled"
)

func (s PostStatus) Valid() bool {
	return s == PostStatusSent || s == PostStatusScheduled
}

// Post is the durable record of a finalized channel post.
// Status only ever moves scheduled -> sent.
type Post struct {
	ID                 int64
	Text               string
	Status             PostStatus
	ScheduledAt        *time.Time
	DeliveredMessageID *int64
	CreatedAt          time.Time
}

// NewSentPost builds the record for a post that was already delivered.
func NewSentPost(text string, deliveredID int64) (*Post, error) {
	if strings.TrimSpace(text) == "" {
		return nil, domain.ErrInvalidArgument
	}
	return &Post{
		Text:               text,
		Status:             PostStatusSent,
		DeliveredMessageID: &deliveredID,
		CreatedAt:          time.Now(),
	}, nil
}

// NewScheduledPost builds the record for a post waiting for runAt.
func NewScheduledPost(text string, runAt time.Time) (*Post, error) {
	if strings.TrimSpace(text) == "" || runAt.IsZero() {
		return nil, domain.ErrInvalidArgument
	}
	at := runAt
	return &Post{
		Text:        text,
		Status:      PostStatusScheduled,
		ScheduledAt: &at,
		CreatedAt:   time.Now(),
	}, nil
}

// MarkDelivered moves the post to sent. A sent post carries no schedule.
func (p *Post) MarkDelivered(messageID int64) {
	p.Status = PostStatusSent
	p.ScheduledAt = nil
	p.DeliveredMessageID = &messageID
}

func (p *Post) IsSent() bool      { return p != nil && p.Status == PostStatusSent }
func (p *Post) IsScheduled() bool { return p != nil && p.Status == PostStatusScheduled }

// WithSignature appends the signature after a blank line unless text already carries it.
func WithSignature(text, signature string) string {
	if signature == "" || strings.Contains(text, signature) {
		return text
	}
	return text + "\n\n" + signature
}

// ScheduledJob is the immutable payload handed to the scheduler.
type ScheduledJob struct {
	PostID int64
	Text   string
	RunAt  time.Time
}

func (p *Post) Job() (ScheduledJob, bool) {
	if !p.IsScheduled() || p.ScheduledAt == nil {
		return ScheduledJob{}, false
	}
	return ScheduledJob{PostID: p.ID, Text: p.Text, RunAt: *p.ScheduledAt}, true
}
