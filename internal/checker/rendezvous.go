package checker

import "sync"

// Rendezvous is a barrier where all live workers must arrive before any
// leaves. Workers that finish exploration opt out so survivors can still
// meet.
type Rendezvous struct {
	mu      sync.Mutex
	cond    *sync.Cond
	running int // workers opted in
	pending int // workers opted in and not yet arrived
}

// NewRendezvous creates a rendezvous with a single opted-in worker. The
// count is raised when secondary workers start.
func NewRendezvous() *Rendezvous {
	r := &Rendezvous{running: 1, pending: 1}
	r.cond = sync.NewCond(&r.mu)
	return r
}

// SetRunning raises the participant count before secondary workers start.
// Only safe while execution is still single-threaded.
func (r *Rendezvous) SetRunning(n int) {
	r.running = n
	r.pending = n
}

// arrive takes a token from the down-counter; the caller holding the lock
// that dropped it to zero is the leader. Called with r.mu held.
func (r *Rendezvous) arrive() bool {
	r.pending--
	return r.pending == 0
}

// depart completes a rendezvous: the leader resets the counter and wakes
// the followers, a follower sleeps until woken. Called with r.mu held;
// releases it.
func (r *Rendezvous) depart(leader bool) {
	if leader {
		r.pending = r.running
		r.cond.Broadcast()
	} else {
		r.cond.Wait()
	}
	r.mu.Unlock()
}

// Meet performs one full rendezvous.
func (r *Rendezvous) Meet() {
	r.mu.Lock()
	leader := r.arrive()
	r.depart(leader)
}

// OptOut removes the caller from the participant pool without blocking the
// survivors. If opting out happens to complete a rendezvous others are
// waiting on, the opter briefly plays leader to unblock them and retries.
func (r *Rendezvous) OptOut() {
	for {
		r.mu.Lock()
		leader := r.arrive()

		if leader && r.running > 1 {
			// We completed a rendezvous the remaining workers are sleeping in.
			// Wake them as if we participated, then try opting out again.
			r.depart(true)
			continue
		}

		r.running--
		r.mu.Unlock()
		return
	}
}
