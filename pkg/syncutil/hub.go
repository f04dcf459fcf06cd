// Package syncutil holds the single shared mutex and the three condition
// variables the player and decoder controls coordinate through. Grounded
// directly on original_source/src/player/Control.hxx's mutex/cond/
// client_cond triple: one cond wakes the player thread, one wakes the
// decoder thread, and one wakes whichever external goroutine is waiting
// on a synchronous command to finish. The decoder's "client" is the
// player, so DecoderWake and the player's own "my command finished"
// signal are deliberately the same Cond as ClientWake when the player is
// the one waiting.
package syncutil

import "sync"

// Hub bundles the lock and condition variables shared by a decoder
// Control and a player Control operating on the same pipe. All three
// Conds share Hub's mutex as their locker.
type Hub struct {
	Mu sync.Mutex

	// PlayerWake wakes the player thread when there is new work for it:
	// a command has been queued, or the decoder/output side changed
	// state it cares about.
	PlayerWake sync.Cond

	// DecoderWake wakes the decoder thread when a command has been
	// queued for it, or a chunk has been freed for it to fill.
	DecoderWake sync.Cond

	// ClientWake wakes any external goroutine blocked inside a
	// synchronous command call, once that command finishes.
	ClientWake sync.Cond
}

// NewHub returns a Hub with all three condition variables wired to its
// own mutex.
func NewHub() *Hub {
	h := &Hub{}
	h.PlayerWake.L = &h.Mu
	h.DecoderWake.L = &h.Mu
	h.ClientWake.L = &h.Mu
	return h
}

// Lock acquires the shared mutex.
func (h *Hub) Lock() { h.Mu.Lock() }

// Unlock releases the shared mutex.
func (h *Hub) Unlock() { h.Mu.Unlock() }
