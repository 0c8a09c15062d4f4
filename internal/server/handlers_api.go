package server

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/andriawan/siaran/internal/domain"
	apperrors "github.com/andriawan/siaran/internal/errors"
)

// searchResult is the wire shape the archive search UI consumes.
type searchResult struct {
	ID        int64  `json:"id"`
	Title     string `json:"title"`
	Date      string `json:"date"`
	StartTime string `json:"start_time"`
	Filename  string `json:"filename"`
}

// archiveEntry extends searchResult with the fields only finished broadcasts
// carry.
type archiveEntry struct {
	searchResult
	EndTime         *string `json:"end_time"`
	DurationSeconds *int64  `json:"duration_seconds"`
}

func toSearchResult(b *domain.Broadcast) searchResult {
	return searchResult{
		ID:        b.ID,
		Title:     b.Title,
		Date:      b.BroadcastDate,
		StartTime: b.StartTime,
		Filename:  b.Filename,
	}
}

func (s *Server) handleLiveBroadcast(c echo.Context) error {
	ctx := c.Request().Context()

	live, err := s.catalog.FindLive(ctx)
	if errors.Is(err, domain.ErrNoLiveBroadcast) {
		return c.JSON(200, map[string]any{"live": false})
	}
	if err != nil {
		return apperrors.InternalError("failed to load live broadcast", err)
	}

	var listeners int64
	if n, err := s.presence.ListenerCount(ctx); err != nil {
		slog.Warn("Failed to read listener count", "error", err)
	} else {
		listeners = n
	}

	return c.JSON(200, map[string]any{
		"live":       true,
		"id":         live.ID,
		"title":      live.Title,
		"date":       live.BroadcastDate,
		"start_time": live.StartTime,
		"filename":   live.Filename,
		"listeners":  listeners,
	})
}

func (s *Server) handleArchive(c echo.Context) error {
	broadcasts, err := s.catalog.ListArchive(c.Request().Context())
	if err != nil {
		return apperrors.InternalError("failed to load archive", err)
	}

	entries := make([]archiveEntry, 0, len(broadcasts))
	for _, b := range broadcasts {
		entries = append(entries, archiveEntry{
			searchResult:    toSearchResult(b),
			EndTime:         b.EndTime,
			DurationSeconds: b.DurationSeconds,
		})
	}

	if err := c.JSON(200, entries); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleSearch(c echo.Context) error {
	query := c.QueryParam("q")
	sort := domain.ParseSearchSort(c.QueryParam("sort"))

	broadcasts, err := s.catalog.Search(c.Request().Context(), query, sort)
	if err != nil {
		return apperrors.InternalError("failed to search broadcasts", err).
			WithContext("query", query)
	}

	results := make([]searchResult, 0, len(broadcasts))
	for _, b := range broadcasts {
		results = append(results, toSearchResult(b))
	}

	if err := c.JSON(200, results); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleRecording(c echo.Context) error {
	filename := c.Param("filename")

	// The recordings directory is flat; anything that is not a plain file
	// name is an attempted traversal.
	if filename == "" || filename != filepath.Base(filename) || strings.Contains(filename, "..") {
		return apperrors.ValidationError("invalid recording filename").
			WithContext("filename", filename)
	}

	path := filepath.Join(s.config.RecordingsDir, filename)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return apperrors.NotFoundError("recording not found").
				WithContext("filename", filename)
		}
		return apperrors.InternalError("failed to read recording", err).
			WithContext("filename", filename)
	}

	return c.File(path)
}
