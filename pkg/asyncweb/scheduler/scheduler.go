// Package scheduler implements the cooperative, round-robin request
// scheduler: an explicitly constructed task object with a Tick method that
// the embedder drives periodically, rather than a hidden package-level
// singleton. It walks a ring of live requests, granting each a fixed
// per-tick send-budget, and keeps its cursor valid across removals that
// happen mid-walk.
package scheduler

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/yourusername/asyncweb/pkg/asyncweb/bufpool"
)

// SchedRes is the timer tick interval: the cadence at which the scheduler
// revisits every live request.
const SchedRes = 10 * time.Millisecond

// SchedShare is the per-tick send-budget granted to each sending request,
// roughly one TCP send buffer's worth.
const SchedShare = bufpool.Size4KB

// SchedMinHeap is the free-heap floor below which the scheduler stops
// walking its ring for the remainder of a tick, leaving some headroom
// above SchedShare for other allocations.
const SchedMinHeap = SchedShare + 6*1024

// idleTicksToDisarm bounds how many consecutive empty ticks the scheduler
// tolerates before disarming its timer.
const idleTicksToDisarm = 1

// Progressable is whatever the scheduler drives each tick: a live request's
// per-tick hook. It mirrors request.Request.MakeProgress without importing
// the request package, so the scheduler stays reusable against any
// budget-driven producer.
type Progressable interface {
	// MakeProgress advances up to budget bytes of work and reports whether
	// the caller should remove this entry from the ring (it has reached a
	// terminal state).
	MakeProgress(budget int) (remove bool)
}

// entry is one slot in the ring; removed entries are tombstoned rather
// than spliced out mid-walk so indices stay stable for the cursor.
type entry struct {
	item Progressable
	live bool
}

// Scheduler is an explicitly constructed round-robin ring, not a package-
// level global. The embedder drives it with a ticker or any periodic
// source at roughly SchedRes.
type Scheduler struct {
	mu      sync.Mutex
	ring    []entry
	cursor  int
	armed   bool
	idle    int
	pool    *bufpool.Pool
	onArm   func()
	onDisarm func()
}

// New creates a Scheduler gating buffer preparation against pool's
// heap-pressure signal. onArm/onDisarm, if non-nil, are called when the
// scheduler transitions between having live work and being empty, letting
// the embedder start/stop its periodic Tick driver.
func New(pool *bufpool.Pool, onArm, onDisarm func()) *Scheduler {
	if pool == nil {
		pool = bufpool.New(SchedMinHeap)
	}
	return &Scheduler{pool: pool, onArm: onArm, onDisarm: onDisarm}
}

// Add enrolls item in the ring, arming the driver if this is the first
// live entry.
func (s *Scheduler) Add(item Progressable) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ring = append(s.ring, entry{item: item, live: true})
	s.idle = 0
	if !s.armed {
		s.armed = true
		if s.onArm != nil {
			s.onArm()
		}
	}
}

// Remove tombstones item's slot. If the cursor currently points at the
// removed slot it is advanced first, preserving the invariant that the
// cursor is never left pointing at a removed entry mid-walk.
func (s *Scheduler) Remove(item Progressable) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.ring {
		if s.ring[i].item == item && s.ring[i].live {
			s.ring[i].live = false
			if s.cursor == i {
				s.advanceCursorLocked()
			}
			s.compactLocked()
			return
		}
	}
}

// Len reports the number of live entries currently enrolled.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, e := range s.ring {
		if e.live {
			n++
		}
	}
	return n
}

func (s *Scheduler) advanceCursorLocked() {
	if len(s.ring) == 0 {
		s.cursor = 0
		return
	}
	s.cursor = (s.cursor + 1) % len(s.ring)
}

// compactLocked drops every tombstone in the ring so the ring doesn't
// grow without bound under churn; it never reorders live entries relative
// to each other and is safe to call with cursor already adjusted.
func (s *Scheduler) compactLocked() {
	out := s.ring[:0]
	oldCursorItem := Progressable(nil)
	if len(s.ring) > 0 && s.cursor < len(s.ring) {
		oldCursorItem = s.ring[s.cursor].item
	}
	for _, e := range s.ring {
		if e.live {
			out = append(out, e)
		}
	}
	s.ring = out
	s.cursor = 0
	if oldCursorItem != nil {
		for i, e := range s.ring {
			if e.item == oldCursorItem {
				s.cursor = i
				break
			}
		}
	}
}

// Tick performs one round-robin pass: starting at the cursor, it calls
// MakeProgress(SchedShare) on each live entry, halting the walk early if
// free heap drops below SchedMinHeap. Entries reporting remove=true are
// tombstoned, with the cursor advanced past them the same way Remove does.
// When the ring goes empty, the driver is disarmed.
func (s *Scheduler) Tick() {
	s.mu.Lock()
	n := len(s.ring)
	if n == 0 {
		s.disarmLocked()
		s.mu.Unlock()
		return
	}

	visited := 0
	for visited < n {
		if s.pool.BelowThreshold() {
			log.Trace().Msg("scheduler: heap below threshold, pausing tick")
			break
		}
		i := s.cursor
		e := s.ring[i]
		s.advanceCursorLocked()
		visited++
		if !e.live {
			continue
		}
		// Item.MakeProgress is called without the scheduler's lock held,
		// since handlers may re-enter Add/Remove (e.g. a response that
		// finishes synchronously removes itself).
		s.mu.Unlock()
		remove := e.item.MakeProgress(SchedShare)
		s.mu.Lock()
		if remove {
			for j := range s.ring {
				if s.ring[j].item == e.item && s.ring[j].live {
					s.ring[j].live = false
					if s.cursor == j {
						s.advanceCursorLocked()
					}
					break
				}
			}
		}
	}
	s.compactLocked()
	if len(s.ring) == 0 {
		s.idle++
		if s.idle >= idleTicksToDisarm {
			s.disarmLocked()
		}
	} else {
		s.idle = 0
	}
	s.mu.Unlock()
}

func (s *Scheduler) disarmLocked() {
	if s.armed {
		s.armed = false
		if s.onDisarm != nil {
			s.onDisarm()
		}
	}
}

// Run drives Tick on a time.Ticker at SchedRes until stop is closed,
// letting an embedder start the scheduler with one call.
func (s *Scheduler) Run(stop <-chan struct{}) {
	t := time.NewTicker(SchedRes)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			s.Tick()
		case <-stop:
			return
		}
	}
}
