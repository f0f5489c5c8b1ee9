//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"telegram-channel-publisher/internal/domain"
	"telegram-channel-publisher/internal/domain/model"
	"telegram-channel-publisher/internal/domain/ports/adapter"
	"telegram-channel-publisher/internal/domain/ports/repository"
	"telegram-channel-publisher/internal/infra/i18n"
)

const testSignature = "[Money with Character](https://t.me/moneygrit)"

func newTestLogger() *zerolog.Logger {
	l := zerolog.New(io.Discard)
	return &l
}

func newTestTranslator() *i18n.Translator {
	tr, err := i18n.NewTranslator(i18n.LocalesFS, "en")
	if err != nil {
		panic(err)
	}
	return tr
}

// =============================
// Adapters
// =============================

// ---- Mock AIServiceAdapter ----

type MockAI struct {
	mu    sync.Mutex
	Calls [][]adapter.Message

	ChatWithUsageFunc func(ctx context.Context, msgs []adapter.Message) (string, adapter.Usage, error)
}

var _ adapter.AIServiceAdapter = (*MockAI)(nil)

func (m *MockAI) Name() string { return "mock" }

func (m *MockAI) Chat(ctx context.Context, msgs []adapter.Message) (string, error) {
	out, _, err := m.ChatWithUsage(ctx, msgs)
	return out, err
}

func (m *MockAI) ChatWithUsage(ctx context.Context, msgs []adapter.Message) (string, adapter.Usage, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, msgs)
	m.mu.Unlock()
	if m.ChatWithUsageFunc != nil {
		return m.ChatWithUsageFunc(ctx, msgs)
	}
	return "rewritten: " + msgs[len(msgs)-1].Content, adapter.Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15}, nil
}

func (m *MockAI) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

// ---- Mock RewriteUseCase ----

type MockRewriter struct {
	RewriteFunc func(ctx context.Context, text, style string) string
	Inputs      []string
}

func (m *MockRewriter) Rewrite(ctx context.Context, text, style string) string {
	m.Inputs = append(m.Inputs, text)
	if m.RewriteFunc != nil {
		return m.RewriteFunc(ctx, text, style)
	}
	return "polished " + text
}

// ---- Mock ChannelSender ----

type MockSender struct {
	mu     sync.Mutex
	Sent   []adapter.ChannelMessage
	Edited map[int64]adapter.ChannelMessage
	nextID int64

	SendErr error
	EditErr error
}

var _ adapter.ChannelSender = (*MockSender)(nil)

func (m *MockSender) SendToChannel(ctx context.Context, msg adapter.ChannelMessage) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SendErr != nil {
		return 0, m.SendErr
	}
	m.nextID++
	m.Sent = append(m.Sent, msg)
	return 1000 + m.nextID, nil
}

func (m *MockSender) EditChannelMessage(ctx context.Context, messageID int64, msg adapter.ChannelMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.EditErr != nil {
		return m.EditErr
	}
	if m.Edited == nil {
		m.Edited = make(map[int64]adapter.ChannelMessage)
	}
	m.Edited[messageID] = msg
	return nil
}

// ---- Mock JobScheduler ----

type MockScheduler struct {
	mu        sync.Mutex
	Jobs      []model.ScheduledJob
	Cancelled []int64
}

func (m *MockScheduler) Schedule(job model.ScheduledJob) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Jobs = append(m.Jobs, job)
}

func (m *MockScheduler) Cancel(postID int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, j := range m.Jobs {
		if j.PostID == postID {
			m.Jobs = append(m.Jobs[:i], m.Jobs[i+1:]...)
			m.Cancelled = append(m.Cancelled, postID)
			return true
		}
	}
	return false
}

// ---- Mock PostLocker ----

type MockPostLocker struct {
	mu       sync.Mutex
	held     map[string]string
	Acquired []string
	Err      error
}

func NewMockPostLocker() *MockPostLocker { return &MockPostLocker{held: map[string]string{}} }

func (m *MockPostLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return "", m.Err
	}
	if _, busy := m.held[key]; busy {
		return "", domain.ErrOperatorBusy
	}
	token := fmt.Sprintf("t%d", len(m.Acquired)+1)
	m.held[key] = token
	m.Acquired = append(m.Acquired, key)
	return token, nil
}

func (m *MockPostLocker) Unlock(ctx context.Context, key, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.held[key] == token {
		delete(m.held, key)
	}
	return nil
}

// Hold takes key on behalf of another publisher.
func (m *MockPostLocker) Hold(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.held[key] = "other"
}

func (m *MockPostLocker) Held() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.held)
}

// ---- Mock TokenCounter ----

type MockCounter struct{ PerMessage int }

func (m MockCounter) Count(string) int { return m.PerMessage }

// =============================
// Repositories
// =============================

// ---- Mock PostRepository ----

type MockPostRepo struct {
	mu     sync.Mutex
	posts  map[int64]*model.Post
	nextID int64

	CreateErr error
	MarkErr   error
	GetErr    error
}

var _ repository.PostRepository = (*MockPostRepo)(nil)

func NewMockPostRepo() *MockPostRepo {
	return &MockPostRepo{posts: make(map[int64]*model.Post)}
}

func clonePost(p *model.Post) *model.Post {
	cp := *p
	if p.ScheduledAt != nil {
		t := *p.ScheduledAt
		cp.ScheduledAt = &t
	}
	if p.DeliveredMessageID != nil {
		id := *p.DeliveredMessageID
		cp.DeliveredMessageID = &id
	}
	return &cp
}

func (r *MockPostRepo) Create(ctx context.Context, tx repository.Tx, p *model.Post) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.CreateErr != nil {
		return 0, r.CreateErr
	}
	r.nextID++
	p.ID = r.nextID
	p.CreatedAt = time.Now().Add(time.Duration(r.nextID) * time.Millisecond)
	r.posts[p.ID] = clonePost(p)
	return p.ID, nil
}

func (r *MockPostRepo) MarkSent(ctx context.Context, tx repository.Tx, c repository.MarkSentCriteria, deliveredID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.MarkErr != nil {
		return r.MarkErr
	}
	var target *model.Post
	if c.PostID != 0 {
		target = r.posts[c.PostID]
	} else {
		for _, p := range r.sortedLocked(true) {
			if p.Text == c.Text && p.IsScheduled() {
				target = r.posts[p.ID]
				break
			}
		}
	}
	if target == nil || !target.IsScheduled() {
		return domain.ErrNotFound
	}
	target.MarkDelivered(deliveredID)
	return nil
}

func (r *MockPostRepo) UpdateText(ctx context.Context, tx repository.Tx, id int64, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.posts[id]
	if !ok {
		return domain.ErrNotFound
	}
	p.Text = text
	return nil
}

func (r *MockPostRepo) List(ctx context.Context, tx repository.Tx, status model.PostStatus, limit int) ([]*model.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Post
	for _, p := range r.sortedLocked(false) {
		if status != "" && p.Status != status {
			continue
		}
		out = append(out, p)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *MockPostRepo) Get(ctx context.Context, tx repository.Tx, id int64) (*model.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.GetErr != nil {
		return nil, r.GetErr
	}
	p, ok := r.posts[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return clonePost(p), nil
}

func (r *MockPostRepo) ListScheduled(ctx context.Context, tx repository.Tx) ([]*model.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Post
	for _, p := range r.sortedLocked(true) {
		if p.IsScheduled() {
			out = append(out, p)
		}
	}
	return out, nil
}

// sortedLocked returns copies ordered by id.
func (r *MockPostRepo) sortedLocked(asc bool) []*model.Post {
	out := make([]*model.Post, 0, len(r.posts))
	for _, p := range r.posts {
		out = append(out, clonePost(p))
	}
	sort.Slice(out, func(i, j int) bool {
		if asc {
			return out[i].ID < out[j].ID
		}
		return out[i].ID > out[j].ID
	})
	return out
}

func (r *MockPostRepo) All() []*model.Post {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sortedLocked(true)
}

// ---- Mock SessionRepository ----

type MockSessionRepo struct {
	mu       sync.Mutex
	sessions map[int64]model.Session

	GetErr error
	SetErr error
}

var _ repository.SessionRepository = (*MockSessionRepo)(nil)

func NewMockSessionRepo() *MockSessionRepo {
	return &MockSessionRepo{sessions: make(map[int64]model.Session)}
}

func (r *MockSessionRepo) Get(ctx context.Context, operatorID int64) (*model.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.GetErr != nil {
		return nil, r.GetErr
	}
	s, ok := r.sessions[operatorID]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (r *MockSessionRepo) Set(ctx context.Context, s *model.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.SetErr != nil {
		return r.SetErr
	}
	if s == nil || s.OperatorID == 0 {
		return errors.New("invalid session")
	}
	r.sessions[s.OperatorID] = *s
	return nil
}

func (r *MockSessionRepo) Clear(ctx context.Context, operatorID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, operatorID)
	return nil
}

func (r *MockSessionRepo) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
