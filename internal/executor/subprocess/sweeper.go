package subprocess

import (
	"log/slog"
	"time"
)

// sweep periodically force-closes sessions whose caller stopped talking to
// them. Runs independently of any request: a UI that crashed or navigated
// away without calling close would otherwise leak an OS process forever.
func (e *Engine) sweep() {
	defer e.wg.Done()

	ticker := time.NewTicker(e.config.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-e.done:
			return
		case <-ticker.C:
			e.evictIdle()
		}
	}
}

// evictIdle closes every session idle past the timeout, using the same path
// as an explicit close so the process is killed and reaped identically.
func (e *Engine) evictIdle() {
	now := time.Now()

	// Snapshot under the registry lock, close outside it — CloseSession
	// takes the lock itself, and killing a process under the map lock would
	// stall every other caller.
	e.mu.Lock()
	stale := make([]string, 0)
	for id, sess := range e.sessions {
		if sess.idleFor(now) > e.config.IdleTimeout {
			stale = append(stale, id)
		}
	}
	e.mu.Unlock()

	for _, id := range stale {
		e.logger.Info("evicting idle session",
			slog.String("sessionID", id),
			slog.Duration("idleTimeout", e.config.IdleTimeout),
		)
		e.CloseSession(id)
	}
}
