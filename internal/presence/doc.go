// Package presence tracks how many listeners are tuned in. The count lives
// in Redis when a REDIS_URL is configured so it survives process restarts of
// sibling tooling; otherwise a process-local counter is used. Redis access
// runs behind a circuit breaker so a Redis outage degrades the count instead
// of stalling listener connects.
package presence
