// Package session owns the live-broadcast state machine.
//
// Exactly one broadcast may be live at a time. All transitions (Start, Stop,
// ForceStop, Reconcile) run under a single mutex, so the one-live invariant
// and the exclusive recording sink need no further coordination. Failures
// inside a transition are contained: they are logged and the transition
// completes its remaining side effects, the process never dies because a
// finalize or a file open failed.
package session
