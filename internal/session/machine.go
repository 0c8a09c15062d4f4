package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/andriawan/siaran/internal/domain"
	"github.com/andriawan/siaran/internal/metrics"
	"github.com/andriawan/siaran/internal/recording"
)

// timeLabelLayout matches the HH:MM labels broadcaster clients send for
// start and end times. Server-generated end times (pre-emption, force-stop)
// use the same shape so catalog rows stay uniform.
const timeLabelLayout = "15:04"

// recordingExt is the container the broadcaster clients produce. The core
// treats fragments as opaque bytes; the extension only names the file.
const recordingExt = "webm"

// Machine is the live session state machine. A single instance exists per
// process; its transition methods must not be called concurrently with each
// other, which the internal mutex enforces.
type Machine struct {
	mu        sync.Mutex
	catalog   domain.BroadcastRepository
	notifier  domain.ListenerNotifier
	clock     clockwork.Clock
	filenames *recording.FilenameGenerator
	dir       string

	// Guarded by mu. activeID == 0 means Idle. A zero startedAt with a
	// non-zero activeID means the start instant was lost (process restart
	// adopted a leftover live record), so durations cannot be computed.
	activeID  int64
	startedAt time.Time
	sink      *recording.Sink
}

func NewMachine(catalog domain.BroadcastRepository, notifier domain.ListenerNotifier, clock clockwork.Clock, recordingsDir string) *Machine {
	return &Machine{
		catalog:   catalog,
		notifier:  notifier,
		clock:     clock,
		filenames: recording.NewFilenameGenerator(clock, recordingExt),
		dir:       recordingsDir,
	}
}

// Reconcile adopts a catalog record left live by a previous process. The
// start instant is gone with the old process, so a later Stop finalizes the
// adopted record with an unknown duration rather than a guessed one.
func (m *Machine) Reconcile(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, err := m.catalog.FindLive(ctx)
	if errors.Is(err, domain.ErrNoLiveBroadcast) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to reconcile live session: %w", err)
	}

	m.activeID = b.ID
	m.startedAt = time.Time{}
	slog.Warn("Adopted live broadcast from previous run, start instant unknown",
		"broadcast_id", b.ID, "title", b.Title)
	return nil
}

// Start begins a new live broadcast. Any broadcast still marked live,
// whether from a crashed run or an abandoned session on this one, is
// finalized first with an unknown duration. A sink open failure leaves the
// session live but unrecorded; it does not roll back the catalog record.
func (m *Machine) Start(ctx context.Context, title, date, startTimeLabel string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.preemptLocked(ctx); err != nil {
		return err
	}

	filename := m.filenames.Next()
	id, err := m.catalog.Create(ctx, &domain.Broadcast{
		Title:         title,
		BroadcastDate: date,
		StartTime:     startTimeLabel,
		Filename:      filename,
		IsLive:        true,
	})
	if err != nil {
		return fmt.Errorf("failed to start broadcast: %w", err)
	}

	m.activeID = id
	m.startedAt = m.clock.Now()

	sink, err := recording.Open(m.dir, filename)
	if err != nil {
		// Degraded mode: live with no recording.
		slog.Error("Failed to open recording sink, broadcast continues unrecorded",
			"broadcast_id", id, "filename", filename, "error", err)
		metrics.SessionDegradedStartsTotal.Inc()
	} else {
		m.sink = sink
	}

	m.notifier.BroadcastStarted(title)
	metrics.SessionTransitionsTotal.WithLabelValues("start").Inc()
	slog.Info("Broadcast started", "broadcast_id", id, "title", title, "filename", filename, "recording", m.sink != nil)
	return nil
}

// Stop ends the current broadcast with the client-reported end time label.
// When no broadcast is active it performs no catalog mutation but still
// notifies listeners and returns nil.
func (m *Machine) Stop(ctx context.Context, endTimeLabel string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closeSinkLocked()

	if m.activeID == 0 {
		m.notifier.BroadcastStopped()
		return nil
	}

	var duration *int64
	if !m.startedAt.IsZero() {
		seconds := int64(m.clock.Since(m.startedAt) / time.Second)
		duration = &seconds
	}

	err := m.finalizeLocked(ctx, m.activeID, endTimeLabel, duration)
	id := m.activeID
	m.resetLocked()

	m.notifier.BroadcastStopped()
	metrics.SessionTransitionsTotal.WithLabelValues("stop").Inc()
	slog.Info("Broadcast stopped", "broadcast_id", id, "end_time", endTimeLabel, "duration_known", duration != nil)
	return err
}

// ForceStop ends the current broadcast without client-reported timing, used
// when the broadcaster connection is lost. The duration is recorded as
// unknown since the triggering event carries no trustworthy clock reading.
// Safe to call at any time, including when Idle.
func (m *Machine) ForceStop(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closeSinkLocked()

	var err error
	if m.activeID != 0 {
		endLabel := m.clock.Now().Format(timeLabelLayout)
		err = m.finalizeLocked(ctx, m.activeID, endLabel, nil)
		slog.Info("Broadcast force-stopped", "broadcast_id", m.activeID, "end_time", endLabel)
	}
	m.resetLocked()

	m.notifier.BroadcastStopped()
	metrics.SessionTransitionsTotal.WithLabelValues("force_stop").Inc()
	return err
}

// AppendFragment writes one audio fragment to the active recording. Best
// effort: a failed or late append drops the fragment and nothing else.
func (m *Machine) AppendFragment(data []byte) {
	m.mu.Lock()
	sink := m.sink
	m.mu.Unlock()

	if sink == nil {
		return
	}

	// Outside the machine lock: disk writes must not block transitions.
	// The sink serializes appends internally and tolerates a concurrent
	// close from a pre-empting Start.
	if err := sink.Append(data); err != nil && !errors.Is(err, recording.ErrClosed) {
		slog.Warn("Dropped audio fragment", "path", sink.Path(), "bytes", len(data), "error", err)
	}
}

// Live reports whether a broadcast is currently active and its id.
func (m *Machine) Live() (int64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.activeID, m.activeID != 0
}

// preemptLocked finalizes whatever the catalog still considers live. The
// previous session's start instant is never reused, so the pre-empted record
// keeps an unknown duration.
func (m *Machine) preemptLocked(ctx context.Context) error {
	prior, err := m.catalog.FindLive(ctx)
	if errors.Is(err, domain.ErrNoLiveBroadcast) {
		m.closeSinkLocked()
		m.resetLocked()
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to check for live broadcast: %w", err)
	}

	m.closeSinkLocked()
	endLabel := m.clock.Now().Format(timeLabelLayout)
	if err := m.finalizeLocked(ctx, prior.ID, endLabel, nil); err != nil {
		return err
	}
	m.resetLocked()

	metrics.SessionPreemptionsTotal.Inc()
	slog.Warn("Pre-empted live broadcast", "broadcast_id", prior.ID, "title", prior.Title)
	return nil
}

// finalizeLocked updates the catalog record, swallowing a vanished record:
// the row may have been deleted externally, and the transition's remaining
// side effects must still run.
func (m *Machine) finalizeLocked(ctx context.Context, id int64, endTime string, duration *int64) error {
	err := m.catalog.Finalize(ctx, id, endTime, duration)
	if errors.Is(err, domain.ErrBroadcastNotFound) {
		slog.Warn("Broadcast record vanished before finalize, skipping update", "broadcast_id", id)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to finalize broadcast %d: %w", id, err)
	}
	return nil
}

func (m *Machine) closeSinkLocked() {
	if m.sink == nil {
		return
	}
	if err := m.sink.Close(); err != nil {
		// The session is ending either way.
		slog.Warn("Failed to close recording sink", "path", m.sink.Path(), "error", err)
	}
	m.sink = nil
}

func (m *Machine) resetLocked() {
	m.activeID = 0
	m.startedAt = time.Time{}
	m.sink = nil
}
