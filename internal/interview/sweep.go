package interview

import (
	"log/slog"

	"github.com/interviewpipe/interviewpipe/internal/models"
)

// SweepExpired archives sessions whose owners went quiet and never came
// back. Lazy expiry on next contact handles returning users; the sweep
// catches the rest. It returns the number of sessions archived.
func (o *Orchestrator) SweepExpired() int {
	sessions, err := o.store.ListSessions()
	if err != nil {
		slog.Error("Orchestrator.SweepExpired: failed to list sessions", "error", err)
		return 0
	}

	swept := 0
	for _, session := range sessions {
		if !session.Expired(o.cfg.InactivityTimeout) {
			continue
		}
		lock := o.userLock(session.UserHandle)
		lock.Lock()
		swept += o.sweepOneLocked(session.UserHandle)
		lock.Unlock()
	}
	if swept > 0 {
		slog.Info("Orchestrator.SweepExpired: archived idle sessions", "count", swept)
	}
	return swept
}

// sweepOneLocked re-checks expiry under the user lock; the session may have
// been touched between the list and the lock.
func (o *Orchestrator) sweepOneLocked(userHandle int64) int {
	session, err := o.store.GetSession(userHandle)
	if err != nil {
		return 0
	}
	if !session.Expired(o.cfg.InactivityTimeout) {
		return 0
	}
	archived := models.NewArchivedSession(session, models.CompletionAbandoned)
	if err := o.store.ArchiveSession(&archived); err != nil {
		slog.Warn("Orchestrator.SweepExpired: failed to archive session", "userHandle", userHandle, "error", err)
		return 0
	}
	if err := o.store.DeleteSession(userHandle); err != nil {
		slog.Warn("Orchestrator.SweepExpired: failed to delete archived session", "userHandle", userHandle, "error", err)
		return 0
	}
	o.collector.RecordArchive(models.CompletionAbandoned)
	o.dropPendingVoice(userHandle)
	return 1
}
