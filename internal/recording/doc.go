// Package recording persists the live audio stream to disk.
//
// A Sink is an exclusive append-only writer for one session's recording file.
// The session owns the sink for its whole lifetime and closes it on every
// transition path; Close is idempotent so overlapping shutdown paths are safe.
package recording
