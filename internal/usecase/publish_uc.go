// File: internal/usecase/publish_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"telegram-channel-publisher/internal/domain"
	"telegram-channel-publisher/internal/domain/model"
	"telegram-channel-publisher/internal/domain/ports/adapter"
	"telegram-channel-publisher/internal/domain/ports/repository"
	"telegram-channel-publisher/internal/infra/logging"
	"telegram-channel-publisher/internal/infra/metrics"
)

// Compile-time check
var _ PublishUseCase = (*publishUC)(nil)

// PostLocker is a short-lived mutex keyed by post. TryLock gives up quickly
// with domain.ErrOperatorBusy when the key is held.
type PostLocker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, err error)
	Unlock(ctx context.Context, key, token string) error
}

const postLockTTL = 2 * time.Minute

func postLockKey(id int64) string { return fmt.Sprintf("lock:post:%d", id) }

// JobScheduler accepts one-shot publication jobs.
type JobScheduler interface {
	Schedule(job model.ScheduledJob)
	Cancel(postID int64) bool
}

type PublishUseCase interface {
	// Publish sends text (signed) to the channel in exactly one attempt.
	Publish(ctx context.Context, text string) (int64, error)
	// PublishNow publishes and records the post as sent.
	PublishNow(ctx context.Context, text string) (*model.Post, error)
	// SchedulePost records the post as scheduled, then registers its job.
	SchedulePost(ctx context.Context, text string, runAt time.Time) (*model.Post, error)
	// PublishScheduled is the scheduler's fire handler.
	PublishScheduled(ctx context.Context, job model.ScheduledJob) error
	// Retry publishes a scheduled post immediately. It and PublishScheduled
	// deliver a given post under the same per-post lock, so a job already
	// handed to the worker pool and a concurrent retry send at most once.
	Retry(ctx context.Context, id int64) (*model.Post, error)
	// EditPost replaces a post's text, editing the channel message first for sent posts.
	EditPost(ctx context.Context, id int64, text string) (*model.Post, error)

	Recent(ctx context.Context, status model.PostStatus, limit int) ([]*model.Post, error)
	Get(ctx context.Context, id int64) (*model.Post, error)
}

// PublishConfig carries the channel rendering options.
type PublishConfig struct {
	Signature string
	ParseMode string
}

type publishUC struct {
	posts     repository.PostRepository
	sender    adapter.ChannelSender
	scheduler JobScheduler
	locker    PostLocker
	cfg       PublishConfig
	log       *zerolog.Logger
}

func NewPublishUseCase(
	posts repository.PostRepository,
	sender adapter.ChannelSender,
	scheduler JobScheduler,
	locker PostLocker,
	cfg PublishConfig,
	logger *zerolog.Logger,
) PublishUseCase {
	l := logger.With().Str("component", "publish").Logger()
	return &publishUC{posts: posts, sender: sender, scheduler: scheduler, locker: locker, cfg: cfg, log: &l}
}

// lockPost takes the per-post lock. ErrPostBusy means another path is
// delivering the post right now. Other locker failures fail open.
func (uc *publishUC) lockPost(ctx context.Context, id int64) (func(), error) {
	if uc.locker == nil || id == 0 {
		return func() {}, nil
	}
	key := postLockKey(id)
	token, err := uc.locker.TryLock(ctx, key, postLockTTL)
	switch {
	case err == nil:
		return func() {
			if err := uc.locker.Unlock(context.WithoutCancel(ctx), key, token); err != nil {
				logging.With(ctx, uc.log).Warn().Err(err).Msg("post unlock failed")
			}
		}, nil
	case errors.Is(err, domain.ErrOperatorBusy):
		return nil, domain.ErrPostBusy
	default:
		logging.With(ctx, uc.log).Warn().Err(err).Msg("post lock unavailable; continuing unlocked")
		return func() {}, nil
	}
}

func (uc *publishUC) sign(text string) string {
	return model.WithSignature(text, uc.cfg.Signature)
}

func (uc *publishUC) message(text string) adapter.ChannelMessage {
	return adapter.ChannelMessage{Text: text, ParseMode: uc.cfg.ParseMode, DisableWebPagePreview: true}
}

func (uc *publishUC) Publish(ctx context.Context, text string) (int64, error) {
	defer logging.TraceDuration(uc.log, "PublishUC.Publish")()
	id, err := uc.sender.SendToChannel(ctx, uc.message(uc.sign(text)))
	if err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrDelivery, err)
	}
	return id, nil
}

func (uc *publishUC) PublishNow(ctx context.Context, text string) (*model.Post, error) {
	final := uc.sign(text)
	post, err := model.NewSentPost(final, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: empty post", domain.ErrValidation)
	}

	msgID, err := uc.Publish(ctx, final)
	if err != nil {
		metrics.IncDeliveryFailed("now")
		logging.With(ctx, uc.log).Warn().Err(err).Msg("immediate publish failed")
		return nil, err
	}
	post.DeliveredMessageID = &msgID
	metrics.IncPublished("now")

	if _, err := uc.posts.Create(ctx, nil, post); err != nil {
		logging.With(ctx, uc.log).Error().Err(err).Int64("message_id", msgID).Msg("post delivered but not recorded")
		return nil, err
	}
	logging.With(logging.WithPostID(ctx, post.ID), uc.log).Info().Int64("message_id", msgID).Msg("post published")
	return post, nil
}

func (uc *publishUC) SchedulePost(ctx context.Context, text string, runAt time.Time) (*model.Post, error) {
	post, err := model.NewScheduledPost(uc.sign(text), runAt)
	if err != nil {
		return nil, fmt.Errorf("%w: empty post", domain.ErrValidation)
	}
	if _, err := uc.posts.Create(ctx, nil, post); err != nil {
		return nil, err
	}
	job, _ := post.Job()
	uc.scheduler.Schedule(job)
	metrics.IncScheduled()

	logging.With(logging.WithPostID(ctx, post.ID), uc.log).Info().Time("run_at", runAt).Msg("post scheduled")
	return post, nil
}

func (uc *publishUC) PublishScheduled(ctx context.Context, job model.ScheduledJob) error {
	ctx = logging.WithPostID(ctx, job.PostID)
	log := logging.With(ctx, uc.log)

	unlock, err := uc.lockPost(ctx, job.PostID)
	if err != nil {
		log.Info().Msg("post is being published by a retry; skipping fire")
		return nil
	}
	defer unlock()

	text := job.Text
	criteria := repository.MarkSentCriteria{PostID: job.PostID}
	if job.PostID == 0 {
		criteria = repository.MarkSentCriteria{Text: job.Text}
	} else {
		post, err := uc.posts.Get(ctx, nil, job.PostID)
		switch {
		case err == nil:
			if post.IsSent() {
				log.Info().Msg("scheduled post already sent; skipping")
				return nil
			}
			text = post.Text
		case errors.Is(err, domain.ErrNotFound):
			log.Warn().Msg("scheduled post row missing; matching by text")
			criteria = repository.MarkSentCriteria{Text: job.Text}
		default:
			log.Error().Err(err).Msg("could not load scheduled post")
			metrics.IncDeliveryFailed("scheduled")
			return err
		}
	}

	msgID, err := uc.Publish(ctx, text)
	if err != nil {
		metrics.IncDeliveryFailed("scheduled")
		log.Error().Err(err).Msg("scheduled publish failed")
		return err
	}
	metrics.IncPublished("scheduled")

	if err := uc.posts.MarkSent(ctx, nil, criteria, msgID); err != nil {
		log.Error().Err(err).Int64("message_id", msgID).Msg("post delivered but not marked sent")
		return err
	}
	log.Info().Int64("message_id", msgID).Msg("scheduled post published")
	return nil
}

func (uc *publishUC) Retry(ctx context.Context, id int64) (*model.Post, error) {
	unlock, err := uc.lockPost(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	post, err := uc.posts.Get(ctx, nil, id)
	if err != nil {
		return nil, err
	}
	if post.IsSent() {
		return post, domain.ErrAlreadySent
	}

	// The pending job must not fire behind the retry.
	cancelled := uc.scheduler.Cancel(id)
	msgID, err := uc.Publish(ctx, post.Text)
	if err != nil {
		metrics.IncDeliveryFailed("retry")
		if job, ok := post.Job(); ok && cancelled {
			uc.scheduler.Schedule(job)
		}
		return nil, err
	}
	metrics.IncPublished("retry")
	if err := uc.posts.MarkSent(ctx, nil, repository.MarkSentCriteria{PostID: id}, msgID); err != nil {
		return nil, err
	}
	post.MarkDelivered(msgID)
	logging.With(logging.WithPostID(ctx, id), uc.log).Info().Int64("message_id", msgID).Msg("post published by retry")
	return post, nil
}

func (uc *publishUC) EditPost(ctx context.Context, id int64, text string) (*model.Post, error) {
	post, err := uc.posts.Get(ctx, nil, id)
	if err != nil {
		return nil, err
	}
	final := uc.sign(text)
	if post.IsSent() && post.DeliveredMessageID != nil {
		if err := uc.sender.EditChannelMessage(ctx, *post.DeliveredMessageID, uc.message(final)); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrDelivery, err)
		}
	}
	if err := uc.posts.UpdateText(ctx, nil, id, final); err != nil {
		return nil, err
	}
	post.Text = final
	metrics.IncEdited(string(post.Status))
	logging.With(logging.WithPostID(ctx, id), uc.log).Info().Str("status", string(post.Status)).Msg("post edited")
	return post, nil
}

func (uc *publishUC) Recent(ctx context.Context, status model.PostStatus, limit int) ([]*model.Post, error) {
	return uc.posts.List(ctx, nil, status, limit)
}

func (uc *publishUC) Get(ctx context.Context, id int64) (*model.Post, error) {
	return uc.posts.Get(ctx, nil, id)
}
