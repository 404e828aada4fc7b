package ratelimit

import (
	"time"
)

// window tracks token spends for one rolling window. A spent token returns
// exactly one window length after the spend, which keeps the number of
// admissions inside any rolling window at or below the capacity. Refill is
// computed lazily from elapsed time; no background goroutine runs.
//
// window is not safe for concurrent use; the Limiter serializes access.
type window struct {
	capacity int
	length   time.Duration

	// returns holds the pending token return times, oldest first.
	// len(returns) never exceeds capacity because spend is only called
	// after waitFor reported zero wait.
	returns []time.Time
}

func newWindow(cfg WindowConfig) *window {
	return &window{
		capacity: cfg.Capacity,
		length:   cfg.Length,
		returns:  make([]time.Time, 0, cfg.Capacity),
	}
}

// prune drops tokens whose return time has passed, making them spendable again.
func (w *window) prune(now time.Time) {
	idx := 0
	for idx < len(w.returns) && !w.returns[idx].After(now) {
		idx++
	}
	if idx > 0 {
		w.returns = append(w.returns[:0], w.returns[idx:]...)
	}
}

// available returns the number of tokens spendable at now.
func (w *window) available(now time.Time) int {
	w.prune(now)
	return w.capacity - len(w.returns)
}

// waitFor returns how long until cost tokens are simultaneously spendable.
// Zero means the window admits the cost immediately.
func (w *window) waitFor(now time.Time, cost int) time.Duration {
	w.prune(now)
	free := w.capacity - len(w.returns)
	if free >= cost {
		return 0
	}
	// The (cost-free)-th oldest outstanding token must return first.
	need := cost - free
	return w.returns[need-1].Sub(now)
}

// spend debits cost tokens. Callers must have confirmed capacity via waitFor;
// spending beyond capacity corrupts the window invariant.
func (w *window) spend(now time.Time, cost int) {
	returnAt := now.Add(w.length)
	for i := 0; i < cost; i++ {
		w.returns = append(w.returns, returnAt)
	}
}
