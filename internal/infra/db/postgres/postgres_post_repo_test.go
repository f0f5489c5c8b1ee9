//go:build integration

package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v4"

	"telegram-channel-publisher/internal/domain"
	"telegram-channel-publisher/internal/domain/model"
	"telegram-channel-publisher/internal/domain/ports/repository"
)

func TestPostRepo_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode.")
	}

	ctx := context.Background()
	repo := NewPostRepo(testPool)

	t.Run("should create and read back a sent post", func(t *testing.T) {
		cleanup(t)
		p, _ := model.NewSentPost("hello channel", 501)

		id, err := repo.Create(ctx, nil, p)
		if err != nil {
			t.Fatalf("Create failed: %v", err)
		}

		got, err := repo.Get(ctx, nil, id)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if !got.IsSent() || got.Text != "hello channel" || got.DeliveredMessageID == nil || *got.DeliveredMessageID != 501 {
			t.Errorf("unexpected row: %+v", got)
		}
	})

	t.Run("should mark a scheduled post sent by id exactly once", func(t *testing.T) {
		cleanup(t)
		p, _ := model.NewScheduledPost("Launch day tips", time.Now().Add(time.Hour))
		id, _ := repo.Create(ctx, nil, p)

		if err := repo.MarkSent(ctx, nil, repository.MarkSentCriteria{PostID: id}, 900); err != nil {
			t.Fatalf("MarkSent failed: %v", err)
		}
		if err := repo.MarkSent(ctx, nil, repository.MarkSentCriteria{PostID: id}, 901); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("second MarkSent should find no scheduled row, got %v", err)
		}

		got, _ := repo.Get(ctx, nil, id)
		if !got.IsSent() || *got.DeliveredMessageID != 900 {
			t.Errorf("unexpected row: %+v", got)
		}
		if got.ScheduledAt != nil {
			t.Errorf("sent post must not keep scheduled_at, got %v", got.ScheduledAt)
		}
	})

	t.Run("should reject a sent row that carries a schedule", func(t *testing.T) {
		cleanup(t)
		_, err := testPool.Exec(ctx,
			`INSERT INTO posts (text, status, scheduled_at, delivered_message_id) VALUES ('x', 'sent', now(), 1)`)
		if err == nil {
			t.Error("expected the check constraint to reject the row")
		}
	})

	t.Run("should mark only the oldest duplicate when matching by text", func(t *testing.T) {
		cleanup(t)
		first, _ := model.NewScheduledPost("same text", time.Now().Add(time.Hour))
		second, _ := model.NewScheduledPost("same text", time.Now().Add(2*time.Hour))
		firstID, _ := repo.Create(ctx, nil, first)
		secondID, _ := repo.Create(ctx, nil, second)

		if err := repo.MarkSent(ctx, nil, repository.MarkSentCriteria{Text: "same text"}, 1); err != nil {
			t.Fatalf("MarkSent failed: %v", err)
		}

		a, _ := repo.Get(ctx, nil, firstID)
		b, _ := repo.Get(ctx, nil, secondID)
		if !a.IsSent() || !b.IsScheduled() {
			t.Errorf("expected only the oldest to be sent, got %s / %s", a.Status, b.Status)
		}
		if a.ScheduledAt != nil || b.ScheduledAt == nil {
			t.Errorf("scheduled_at must follow status: %v / %v", a.ScheduledAt, b.ScheduledAt)
		}
	})

	t.Run("should update text without touching status or schedule", func(t *testing.T) {
		cleanup(t)
		at := time.Now().Add(3 * time.Hour).Truncate(time.Second)
		p, _ := model.NewScheduledPost("draft", at)
		id, _ := repo.Create(ctx, nil, p)

		if err := repo.UpdateText(ctx, nil, id, "final"); err != nil {
			t.Fatalf("UpdateText failed: %v", err)
		}
		got, _ := repo.Get(ctx, nil, id)
		if got.Text != "final" || !got.IsScheduled() || !got.ScheduledAt.Equal(at) || !got.CreatedAt.Equal(p.CreatedAt) {
			t.Errorf("unexpected row after update: %+v", got)
		}
	})

	t.Run("should list newest first and filter by status", func(t *testing.T) {
		cleanup(t)
		for i, text := range []string{"one", "two", "three"} {
			p, _ := model.NewSentPost(text, int64(i+1))
			if _, err := repo.Create(ctx, nil, p); err != nil {
				t.Fatalf("Create failed: %v", err)
			}
		}
		s, _ := model.NewScheduledPost("later", time.Now().Add(time.Hour))
		_, _ = repo.Create(ctx, nil, s)

		sent, err := repo.List(ctx, nil, model.PostStatusSent, 2)
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if len(sent) != 2 || sent[0].Text != "three" || sent[1].Text != "two" {
			t.Errorf("unexpected list: %+v", sent)
		}

		all, _ := repo.List(ctx, nil, "", 10)
		if len(all) != 4 {
			t.Errorf("expected 4 posts, got %d", len(all))
		}

		scheduled, _ := repo.ListScheduled(ctx, nil)
		if len(scheduled) != 1 || scheduled[0].Text != "later" {
			t.Errorf("unexpected scheduled list: %+v", scheduled)
		}
	})

	t.Run("should read and mark inside one transaction", func(t *testing.T) {
		cleanup(t)
		p, _ := model.NewScheduledPost("tx post", time.Now().Add(time.Hour))
		id, _ := repo.Create(ctx, nil, p)

		txm := NewTxManager(testPool)
		err := txm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
			got, err := repo.Get(ctx, tx, id)
			if err != nil {
				return err
			}
			return repo.MarkSent(ctx, tx, repository.MarkSentCriteria{PostID: got.ID}, 42)
		})
		if err != nil {
			t.Fatalf("WithTx failed: %v", err)
		}
		got, _ := repo.Get(ctx, nil, id)
		if !got.IsSent() {
			t.Errorf("expected sent after commit, got %s", got.Status)
		}
	})
}
