package domain

import (
	"context"
	"time"
)

// Broadcast is one catalog entry: a past or currently live broadcast.
// EndTime and DurationSeconds stay nil until the broadcast is finalized;
// DurationSeconds stays nil forever when precise timing was lost (process
// restart, force-stop, pre-emption).
type Broadcast struct {
	ID              int64     `db:"id"`
	Title           string    `db:"title"`
	BroadcastDate   string    `db:"broadcast_date"`
	StartTime       string    `db:"start_time"`
	EndTime         *string   `db:"end_time"`
	Filename        string    `db:"filename"`
	IsLive          bool      `db:"is_live"`
	DurationSeconds *int64    `db:"duration_seconds"`
	CreatedAt       time.Time `db:"created_at"`
	UpdatedAt       time.Time `db:"updated_at"`
}

// SearchSort selects the ordering of catalog search results.
type SearchSort string

const (
	SortTitleAsc  SearchSort = "title_asc"
	SortTitleDesc SearchSort = "title_desc"
	SortDateAsc   SearchSort = "date_asc"
	SortDateDesc  SearchSort = "date_desc"
)

// ParseSearchSort maps a query parameter to a SearchSort, defaulting to
// newest-first like the archive listing.
func ParseSearchSort(s string) SearchSort {
	switch SearchSort(s) {
	case SortTitleAsc, SortTitleDesc, SortDateAsc:
		return SearchSort(s)
	default:
		return SortDateDesc
	}
}

// BroadcastRepository is the catalog contract. Every state transition issues
// at most one Create and/or one Finalize; each call is atomic on its own row.
type BroadcastRepository interface {
	// Create inserts a new record and returns its assigned id.
	Create(ctx context.Context, b *Broadcast) (int64, error)

	// GetByID returns ErrBroadcastNotFound if no record has that id.
	GetByID(ctx context.Context, id int64) (*Broadcast, error)

	// FindLive returns the single record with is_live=true, or
	// ErrNoLiveBroadcast if no broadcast is live.
	FindLive(ctx context.Context) (*Broadcast, error)

	// Finalize flips is_live to false and sets the end time label in one
	// atomic update. duration is stored as NULL when nil (timing unknown).
	// Returns ErrBroadcastNotFound if the record vanished meanwhile.
	Finalize(ctx context.Context, id int64, endTime string, duration *int64) error

	// ListArchive returns finished broadcasts, newest id first.
	ListArchive(ctx context.Context) ([]*Broadcast, error)

	// Search matches query against title and broadcast date.
	Search(ctx context.Context, query string, sort SearchSort) ([]*Broadcast, error)
}

// ListenerNotifier fans out session events and audio to connected listeners.
// All methods are fire-and-forget: delivery is best effort and never blocks
// the caller on a slow listener.
type ListenerNotifier interface {
	BroadcastStarted(title string)
	BroadcastStopped()
	Fragment(data []byte)
}

// PresenceStore tracks how many listeners are currently tuned in. Backed by
// Redis when configured, by process memory otherwise.
type PresenceStore interface {
	IncrListeners(ctx context.Context) (int64, error)
	DecrListeners(ctx context.Context) (int64, error)
	ListenerCount(ctx context.Context) (int64, error)
	// Reset clears the count, used at startup since listener connections do
	// not survive a process restart.
	Reset(ctx context.Context) error
}
