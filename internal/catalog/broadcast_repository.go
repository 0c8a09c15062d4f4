package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/andriawan/siaran/internal/domain"
)

// broadcastColumns must match the Scan order in scanBroadcast.
const broadcastColumns = `id, title, broadcast_date, start_time, end_time, filename, is_live, duration_seconds, created_at, updated_at`

// BroadcastRepo implements domain.BroadcastRepository backed by PostgreSQL.
type BroadcastRepo struct {
	pool *pgxpool.Pool
}

func NewBroadcastRepo(pool *pgxpool.Pool) *BroadcastRepo {
	return &BroadcastRepo{pool: pool}
}

func scanBroadcast(row pgx.Row) (*domain.Broadcast, error) {
	var b domain.Broadcast
	err := row.Scan(
		&b.ID, &b.Title, &b.BroadcastDate, &b.StartTime, &b.EndTime,
		&b.Filename, &b.IsLive, &b.DurationSeconds, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *BroadcastRepo) Create(ctx context.Context, b *domain.Broadcast) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `
		INSERT INTO broadcasts (title, broadcast_date, start_time, filename, is_live)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, b.Title, b.BroadcastDate, b.StartTime, b.Filename, b.IsLive).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to create broadcast: %w", err)
	}
	return id, nil
}

func (r *BroadcastRepo) GetByID(ctx context.Context, id int64) (*domain.Broadcast, error) {
	b, err := scanBroadcast(r.pool.QueryRow(ctx, `
		SELECT `+broadcastColumns+`
		FROM broadcasts
		WHERE id = $1
	`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrBroadcastNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get broadcast by id: %w", err)
	}
	return b, nil
}

func (r *BroadcastRepo) FindLive(ctx context.Context) (*domain.Broadcast, error) {
	b, err := scanBroadcast(r.pool.QueryRow(ctx, `
		SELECT `+broadcastColumns+`
		FROM broadcasts
		WHERE is_live
		ORDER BY id DESC
		LIMIT 1
	`))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNoLiveBroadcast
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find live broadcast: %w", err)
	}
	return b, nil
}

func (r *BroadcastRepo) Finalize(ctx context.Context, id int64, endTime string, duration *int64) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE broadcasts
		SET is_live = FALSE, end_time = $1, duration_seconds = $2, updated_at = NOW()
		WHERE id = $3
	`, endTime, duration, id)
	if err != nil {
		return fmt.Errorf("failed to finalize broadcast: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrBroadcastNotFound
	}
	return nil
}

func (r *BroadcastRepo) ListArchive(ctx context.Context) ([]*domain.Broadcast, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+broadcastColumns+`
		FROM broadcasts
		WHERE NOT is_live
		ORDER BY id DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list archive: %w", err)
	}
	defer rows.Close()

	return collectBroadcasts(rows)
}

func (r *BroadcastRepo) Search(ctx context.Context, query string, sort domain.SearchSort) ([]*domain.Broadcast, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+broadcastColumns+`
		FROM broadcasts
		WHERE title ILIKE '%' || $1 || '%' OR broadcast_date LIKE '%' || $1 || '%'
		ORDER BY `+orderClause(sort),
		query)
	if err != nil {
		return nil, fmt.Errorf("failed to search broadcasts: %w", err)
	}
	defer rows.Close()

	return collectBroadcasts(rows)
}

// orderClause maps a SearchSort to a fixed ORDER BY fragment. Only known
// constants are emitted, never caller input.
func orderClause(sort domain.SearchSort) string {
	switch sort {
	case domain.SortTitleAsc:
		return "title ASC"
	case domain.SortTitleDesc:
		return "title DESC"
	case domain.SortDateAsc:
		return "broadcast_date ASC, start_time ASC"
	default:
		return "broadcast_date DESC, start_time DESC"
	}
}

func collectBroadcasts(rows pgx.Rows) ([]*domain.Broadcast, error) {
	broadcasts := make([]*domain.Broadcast, 0)
	for rows.Next() {
		b, err := scanBroadcast(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan broadcast: %w", err)
		}
		broadcasts = append(broadcasts, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read broadcasts: %w", err)
	}
	return broadcasts, nil
}
