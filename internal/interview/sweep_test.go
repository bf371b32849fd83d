package interview

import (
	"testing"
	"time"

	"github.com/interviewpipe/interviewpipe/internal/models"
	"github.com/interviewpipe/interviewpipe/internal/store"
)

func TestSweepExpiredArchivesIdleSessions(t *testing.T) {
	st := store.NewInMemoryStore()
	o := NewOrchestrator(st, &fakeGateway{script: []turnResult{{}}}, nil, DefaultConfig())

	idle := models.NewInterviewSession(1, "Idle", models.DefaultPersona)
	idle.CurrentStage = models.StageProfiling
	idle.LastActivityAt = time.Now().UTC().Add(-5 * time.Hour)
	if err := st.SaveSession(idle); err != nil {
		t.Fatalf("seed save failed: %v", err)
	}
	active := models.NewInterviewSession(2, "Active", models.DefaultPersona)
	if err := st.SaveSession(active); err != nil {
		t.Fatalf("seed save failed: %v", err)
	}

	if got := o.SweepExpired(); got != 1 {
		t.Errorf("SweepExpired archived %d sessions, want 1", got)
	}

	if _, err := st.GetSession(1); err != models.ErrSessionNotFound {
		t.Errorf("idle session still active: %v", err)
	}
	archived, err := st.GetArchived(1)
	if err != nil {
		t.Fatalf("idle session not archived: %v", err)
	}
	if archived.CompletionReason != models.CompletionAbandoned {
		t.Errorf("CompletionReason = %s, want abandoned_timeout", archived.CompletionReason)
	}

	if _, err := st.GetSession(2); err != nil {
		t.Errorf("active session swept: %v", err)
	}

	// A second sweep finds nothing left to do.
	if got := o.SweepExpired(); got != 0 {
		t.Errorf("second SweepExpired archived %d sessions, want 0", got)
	}
}
