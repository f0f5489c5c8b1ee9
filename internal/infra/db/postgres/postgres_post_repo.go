package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"

	"telegram-channel-publisher/internal/domain"
	"telegram-channel-publisher/internal/domain/model"
	"telegram-channel-publisher/internal/domain/ports/repository"
)

var _ repository.PostRepository = (*postRepo)(nil)

const defaultListLimit = 50

const postColumns = `id, text, status, scheduled_at, delivered_message_id, created_at`

type postRepo struct{ pool executor }

// NewPostRepo accepts a *pgxpool.Pool (or any pgx executor used as the default).
func NewPostRepo(pool executor) *postRepo {
	return &postRepo{pool: pool}
}

func (r *postRepo) Create(ctx context.Context, tx repository.Tx, p *model.Post) (int64, error) {
	if p == nil || !p.Status.Valid() {
		return 0, domain.ErrInvalidArgument
	}
	if p.IsScheduled() && p.ScheduledAt == nil {
		return 0, domain.ErrInvalidArgument
	}

	const q = `
INSERT INTO posts (text, status, scheduled_at, delivered_message_id)
VALUES ($1, $2, $3, $4)
RETURNING id, created_at;`

	row, err := pickRow(ctx, r.pool, tx, q, p.Text, string(p.Status), p.ScheduledAt, p.DeliveredMessageID)
	if err != nil {
		return 0, err
	}
	if err := row.Scan(&p.ID, &p.CreatedAt); err != nil {
		return 0, fmt.Errorf("%w: insert post: %v", domain.ErrPersistence, err)
	}
	return p.ID, nil
}

func (r *postRepo) MarkSent(ctx context.Context, tx repository.Tx, c repository.MarkSentCriteria, deliveredMessageID int64) error {
	var (
		q    string
		args []interface{}
	)
	switch {
	case c.PostID != 0:
		q = `UPDATE posts SET status='sent', scheduled_at=NULL, delivered_message_id=$2 WHERE id=$1 AND status='scheduled';`
		args = []interface{}{c.PostID, deliveredMessageID}
	case c.Text != "":
		q = `
UPDATE posts SET status='sent', scheduled_at=NULL, delivered_message_id=$2
 WHERE status='scheduled'
   AND id = (SELECT id FROM posts WHERE text=$1 AND status='scheduled' ORDER BY created_at ASC, id ASC LIMIT 1);`
		args = []interface{}{c.Text, deliveredMessageID}
	default:
		return domain.ErrInvalidArgument
	}

	cmd, err := execSQL(ctx, r.pool, tx, q, args...)
	if err != nil {
		if isExecContextErr(err) {
			return err
		}
		return fmt.Errorf("%w: mark sent: %v", domain.ErrPersistence, err)
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *postRepo) UpdateText(ctx context.Context, tx repository.Tx, id int64, text string) error {
	if id <= 0 {
		return domain.ErrInvalidArgument
	}
	const q = `UPDATE posts SET text=$2 WHERE id=$1;`
	cmd, err := execSQL(ctx, r.pool, tx, q, id, text)
	if err != nil {
		if isExecContextErr(err) {
			return err
		}
		return fmt.Errorf("%w: update text: %v", domain.ErrPersistence, err)
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// List returns posts newest first. An empty status lists every post.
func (r *postRepo) List(ctx context.Context, tx repository.Tx, status model.PostStatus, limit int) ([]*model.Post, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if status != "" && !status.Valid() {
		return nil, domain.ErrInvalidArgument
	}
	const q = `SELECT ` + postColumns + ` FROM posts
 WHERE ($1::text = '' OR status = $1::text)
 ORDER BY created_at DESC, id DESC
 LIMIT $2;`
	return r.collect(ctx, tx, q, string(status), limit)
}

func (r *postRepo) ListScheduled(ctx context.Context, tx repository.Tx) ([]*model.Post, error) {
	const q = `SELECT ` + postColumns + ` FROM posts WHERE status='scheduled' ORDER BY scheduled_at ASC, id ASC;`
	return r.collect(ctx, tx, q)
}

func (r *postRepo) Get(ctx context.Context, tx repository.Tx, id int64) (*model.Post, error) {
	q := `SELECT ` + postColumns + ` FROM posts WHERE id=$1`
	if _, ok := tx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	q += ";"
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	p, err := scanPost(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return p, nil
}

func (r *postRepo) collect(ctx context.Context, tx repository.Tx, q string, args ...interface{}) ([]*model.Post, error) {
	rows, err := queryRows(ctx, r.pool, tx, q, args...)
	if err != nil {
		if isExecContextErr(err) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: query posts: %v", domain.ErrPersistence, err)
	}
	defer rows.Close()

	var out []*model.Post
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate posts: %v", domain.ErrPersistence, err)
	}
	return out, nil
}

func scanPost(row pgx.Row) (*model.Post, error) {
	p := &model.Post{}
	var status string
	if err := row.Scan(&p.ID, &p.Text, &status, &p.ScheduledAt, &p.DeliveredMessageID, &p.CreatedAt); err != nil {
		return nil, err
	}
	p.Status = model.PostStatus(status)
	return p, nil
}
