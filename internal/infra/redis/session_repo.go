package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"telegram-channel-publisher/internal/domain"
	"telegram-channel-publisher/internal/domain/model"
	"telegram-channel-publisher/internal/domain/ports/repository"
)

var _ repository.SessionRepository = (*SessionRepo)(nil)

// SessionRepo keeps one conversational session per operator in Redis.
type SessionRepo struct {
	client RedisClient
	ttl    time.Duration
}

func NewSessionRepo(client RedisClient, ttl time.Duration) *SessionRepo {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &SessionRepo{client: client, ttl: ttl}
}

func sessionKey(operatorID int64) string {
	return fmt.Sprintf("conv_session:%d", operatorID)
}

// Get returns nil, nil when the operator has no session.
func (s *SessionRepo) Get(ctx context.Context, operatorID int64) (*model.Session, error) {
	data, err := s.client.Get(ctx, sessionKey(operatorID))
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: load session: %v", domain.ErrPersistence, err)
	}

	var sess model.Session
	if err := json.Unmarshal([]byte(data), &sess); err != nil {
		// A corrupt entry is treated as no session.
		_ = s.client.Del(ctx, sessionKey(operatorID))
		return nil, nil
	}
	if !sess.Step.Valid() {
		sess.Step = model.StepIdle
		sess.Draft = model.Draft{}
	}
	return &sess, nil
}

func (s *SessionRepo) Set(ctx context.Context, sess *model.Session) error {
	if sess == nil || sess.OperatorID == 0 {
		return domain.ErrInvalidArgument
	}
	data, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, sessionKey(sess.OperatorID), data, s.ttl); err != nil {
		return fmt.Errorf("%w: save session: %v", domain.ErrPersistence, err)
	}
	return nil
}

func (s *SessionRepo) Clear(ctx context.Context, operatorID int64) error {
	if err := s.client.Del(ctx, sessionKey(operatorID)); err != nil {
		return fmt.Errorf("%w: clear session: %v", domain.ErrPersistence, err)
	}
	return nil
}
