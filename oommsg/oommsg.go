// Package oommsg gives the frame table a place to announce memory
// pressure without caring whether anyone is listening. The VM subsystem
// itself never waits on these messages -- a page fault that cannot get
// a frame fails the fault synchronously, per the "no guarantee of
// forward progress under total memory pressure" rule -- but a
// diagnostics or metrics goroutine can subscribe to learn when and by
// how much a request overran the pool.
package oommsg

/// OomCh is notified when the frame table cannot satisfy a request,
/// i.e. the physical pool is exhausted and eviction found no victim.
var OomCh chan Oommsg_t = make(chan Oommsg_t, 16)

/// Oommsg_t describes one failed allocation attempt.
type Oommsg_t struct {
	/// Need is the number of frames the caller was short.
	Need int
	/// Resume exists for symmetry with a future admission-control
	/// listener; the VM core never sends on or waits for it.
	Resume chan bool
}

/// Notify posts a non-blocking OOM notice. A full channel (no listener
/// draining it) silently drops the notice rather than stall the
/// faulting thread.
func Notify(need int) {
	select {
	case OomCh <- Oommsg_t{Need: need}:
	default:
	}
}
