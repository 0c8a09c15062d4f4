// Package relay implements the listener fan-out hub using the actor pattern.
//
// The Hub runs a single goroutine fed by a command channel (no mutexes).
// Audio fragments and session events are pushed into the hub and fanned out to
// every connected listener; per-connection write goroutines absorb slow
// clients, and a listener whose send buffer fills up is evicted rather than
// allowed to stall the broadcast. Delivery is best effort: a listener joining
// mid-broadcast simply misses earlier fragments.
package relay
