package scheduler

// Guard marks a shared visual resource as in flight so that a second writer
// backs off instead of animating it in another direction at the same time.
// It is owned by a single event loop and needs no locking.
type Guard struct {
	busy bool
}

// TryAcquire takes the guard. It reports false, and changes nothing, when the
// resource is already in flight.
func (g *Guard) TryAcquire() bool {
	if g.busy {
		return false
	}
	g.busy = true
	return true
}

// Release frees the guard.
func (g *Guard) Release() {
	g.busy = false
}

// Busy reports whether the resource is in flight.
func (g *Guard) Busy() bool {
	return g.busy
}
