package interview

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/interviewpipe/interviewpipe/internal/contract"
	"github.com/interviewpipe/interviewpipe/internal/models"
	"github.com/interviewpipe/interviewpipe/internal/store"
	"github.com/interviewpipe/interviewpipe/internal/voice"
)

type turnResult struct {
	parsed contract.ParsedTurn
	tag    string
	err    error
}

// fakeGateway replays a script of turn results, repeating the last entry.
type fakeGateway struct {
	mu     sync.Mutex
	script []turnResult
	calls  int
	onCall func()
}

func (g *fakeGateway) GenerateTurn(_ context.Context, _ *models.InterviewSession, _ string) (contract.ParsedTurn, string, error) {
	g.mu.Lock()
	i := g.calls
	if i >= len(g.script) {
		i = len(g.script) - 1
	}
	g.calls++
	hook := g.onCall
	result := g.script[i]
	g.mu.Unlock()
	if hook != nil {
		hook()
	}
	return result.parsed, result.tag, result.err
}

func mkTurn(s models.Stage, message string, depth, completeness int) contract.ParsedTurn {
	return contract.ParsedTurn{
		Stage:         s,
		Message:       message,
		QuestionDepth: depth,
		Completeness:  completeness,
		Engagement:    models.EngagementMedium,
	}
}

func newTestOrchestrator(gw TurnGenerator) (*Orchestrator, *store.InMemoryStore) {
	st := store.NewInMemoryStore()
	return NewOrchestrator(st, gw, nil, DefaultConfig()), st
}

func TestFirstTurnCreatesSession(t *testing.T) {
	gw := &fakeGateway{script: []turnResult{
		{parsed: mkTurn(models.StageGreeting, "Nice to meet you! What do you do?", 1, 20)},
	}}
	o, st := newTestOrchestrator(gw)

	turn, err := o.HandleUserTurn(context.Background(), 7, "Sam", "hi, I'm Sam")
	if err != nil {
		t.Fatalf("HandleUserTurn failed: %v", err)
	}
	if turn.Stage != models.StageGreeting {
		t.Errorf("Stage = %s, want greeting", turn.Stage)
	}
	if !turn.DurablyCommitted {
		t.Error("expected turn durably committed")
	}
	if turn.Text != "Nice to meet you! What do you do?" {
		t.Errorf("Text = %q", turn.Text)
	}

	session, err := st.GetSession(7)
	if err != nil {
		t.Fatalf("session not persisted: %v", err)
	}
	if session.DisplayName != "Sam" {
		t.Errorf("DisplayName = %q, want Sam", session.DisplayName)
	}
	if len(session.ConversationHistory) != 2 {
		t.Fatalf("history has %d entries, want 2 (user + assistant)", len(session.ConversationHistory))
	}
	if session.ConversationHistory[0].Role != models.RoleUser || session.ConversationHistory[1].Role != models.RoleAssistant {
		t.Error("history roles out of order")
	}
	if session.StageCompleteness[models.StageGreeting] != 20 {
		t.Errorf("greeting completeness = %d, want 20", session.StageCompleteness[models.StageGreeting])
	}
}

func TestInvalidUserHandle(t *testing.T) {
	o, _ := newTestOrchestrator(&fakeGateway{script: []turnResult{{}}})
	if _, err := o.HandleUserTurn(context.Background(), 0, "", "hi"); err != models.ErrInvalidUserHandle {
		t.Errorf("got %v, want ErrInvalidUserHandle", err)
	}
	if _, err := o.HandleUserTurn(context.Background(), -3, "", "hi"); err != models.ErrInvalidUserHandle {
		t.Errorf("got %v, want ErrInvalidUserHandle", err)
	}
}

func TestStageAdvancesAtThreshold(t *testing.T) {
	gw := &fakeGateway{script: []turnResult{
		{parsed: mkTurn(models.StageGreeting, "Great, that covers the basics. Tell me about your background?", 2, 85)},
	}}
	o, st := newTestOrchestrator(gw)

	turn, err := o.HandleUserTurn(context.Background(), 7, "Sam", "I lead a platform team")
	if err != nil {
		t.Fatalf("HandleUserTurn failed: %v", err)
	}
	if turn.Stage != models.StageProfiling {
		t.Errorf("Stage = %s, want profiling", turn.Stage)
	}
	if !strings.Contains(turn.Text, "Stage complete!") {
		t.Errorf("expected transition announcement in %q", turn.Text)
	}
	if !strings.Contains(turn.Text, "Tell me about your background?") {
		t.Errorf("model reply missing from %q", turn.Text)
	}

	session, _ := st.GetSession(7)
	if session.CurrentStage != models.StageProfiling {
		t.Errorf("persisted stage = %s, want profiling", session.CurrentStage)
	}
	if session.QuestionDepth != 1 {
		t.Errorf("depth after transition = %d, want 1", session.QuestionDepth)
	}
	if session.StageCompleteness[models.StageGreeting] != 85 {
		t.Errorf("finished stage completeness = %d, want 85", session.StageCompleteness[models.StageGreeting])
	}
}

func TestStageHoldsBelowThreshold(t *testing.T) {
	gw := &fakeGateway{script: []turnResult{
		{parsed: mkTurn(models.StageGreeting, "Interesting, say more?", 2, 79)},
	}}
	o, st := newTestOrchestrator(gw)

	turn, err := o.HandleUserTurn(context.Background(), 7, "Sam", "well...")
	if err != nil {
		t.Fatalf("HandleUserTurn failed: %v", err)
	}
	if turn.Stage != models.StageGreeting {
		t.Errorf("Stage = %s, want greeting", turn.Stage)
	}
	session, _ := st.GetSession(7)
	if session.CurrentStage != models.StageGreeting {
		t.Errorf("stage advanced at %d%%", session.StageCompleteness[models.StageGreeting])
	}
}

func TestCompletenessNeverRegresses(t *testing.T) {
	gw := &fakeGateway{script: []turnResult{
		{parsed: mkTurn(models.StageGreeting, "Got it.", 1, 60)},
		{parsed: mkTurn(models.StageGreeting, "And then?", 2, 30)},
	}}
	o, st := newTestOrchestrator(gw)

	ctx := context.Background()
	if _, err := o.HandleUserTurn(ctx, 7, "Sam", "first"); err != nil {
		t.Fatalf("first turn failed: %v", err)
	}
	if _, err := o.HandleUserTurn(ctx, 7, "Sam", "second"); err != nil {
		t.Fatalf("second turn failed: %v", err)
	}
	session, _ := st.GetSession(7)
	if got := session.StageCompleteness[models.StageGreeting]; got != 60 {
		t.Errorf("completeness = %d, want 60 (no regression)", got)
	}
}

func TestDepthCreepsAtMostOnePerTurn(t *testing.T) {
	gw := &fakeGateway{script: []turnResult{
		{parsed: mkTurn(models.StageGreeting, "Deeper!", 4, 30)},
	}}
	o, st := newTestOrchestrator(gw)

	if _, err := o.HandleUserTurn(context.Background(), 7, "Sam", "hi"); err != nil {
		t.Fatalf("HandleUserTurn failed: %v", err)
	}
	session, _ := st.GetSession(7)
	if session.QuestionDepth != 2 {
		t.Errorf("depth = %d, want 2 (started at 1, reported 4)", session.QuestionDepth)
	}
}

func TestGatewayErrorYieldsApologyWithoutMutation(t *testing.T) {
	gw := &fakeGateway{script: []turnResult{
		{err: models.NewGatewayError(models.ErrorTypeAuth, "bad key", nil)},
	}}
	o, st := newTestOrchestrator(gw)

	turn, err := o.HandleUserTurn(context.Background(), 7, "Sam", "hi")
	if err != nil {
		t.Fatalf("HandleUserTurn returned hard error: %v", err)
	}
	if turn.Text != apologyMessage {
		t.Errorf("Text = %q, want apology", turn.Text)
	}
	if turn.ErrorKind != "auth" {
		t.Errorf("ErrorKind = %q, want auth", turn.ErrorKind)
	}
	if _, err := st.GetSession(7); err != models.ErrSessionNotFound {
		t.Errorf("session persisted despite gateway failure: %v", err)
	}
}

func TestFallbackTurnCarriesSoftTag(t *testing.T) {
	gw := &fakeGateway{script: []turnResult{
		{
			parsed: contract.ParsedTurn{
				Stage:         models.StageGreeting,
				Message:       "plain prose reply",
				QuestionDepth: 1,
				Engagement:    models.EngagementMedium,
				Fallback:      true,
			},
			tag: models.TagResponseParseFailed,
		},
	}}
	o, _ := newTestOrchestrator(gw)

	turn, err := o.HandleUserTurn(context.Background(), 7, "Sam", "hi")
	if err != nil {
		t.Fatalf("HandleUserTurn failed: %v", err)
	}
	if turn.ErrorKind != models.TagResponseParseFailed {
		t.Errorf("ErrorKind = %q, want %q", turn.ErrorKind, models.TagResponseParseFailed)
	}
	if turn.Text != "plain prose reply" {
		t.Errorf("Text = %q", turn.Text)
	}
}

// failingStore wraps the in-memory store and fails writes on demand.
type failingStore struct {
	*store.InMemoryStore
	failSaves atomic.Bool
}

func (s *failingStore) SaveSession(session *models.InterviewSession) error {
	if s.failSaves.Load() {
		return fmt.Errorf("disk full")
	}
	return s.InMemoryStore.SaveSession(session)
}

func TestStoreFailureServesNonDurableTurn(t *testing.T) {
	gw := &fakeGateway{script: []turnResult{
		{parsed: mkTurn(models.StageGreeting, "Noted.", 1, 40)},
		{parsed: mkTurn(models.StageGreeting, "Noted again.", 1, 40)},
	}}
	st := &failingStore{InMemoryStore: store.NewInMemoryStore()}
	o := NewOrchestrator(st, gw, nil, DefaultConfig())

	st.failSaves.Store(true)
	turn, err := o.HandleUserTurn(context.Background(), 7, "Sam", "hi")
	if err != nil {
		t.Fatalf("HandleUserTurn returned hard error: %v", err)
	}
	if turn.DurablyCommitted {
		t.Error("turn marked durable despite save failure")
	}
	if turn.ErrorKind != models.TagSessionStoreError {
		t.Errorf("ErrorKind = %q, want %q", turn.ErrorKind, models.TagSessionStoreError)
	}
	if turn.Text != "Noted." {
		t.Errorf("Text = %q, want reply served anyway", turn.Text)
	}

	// The failed write left no trace; the next turn starts from the last
	// durable state, which is no session at all.
	st.failSaves.Store(false)
	if _, err := st.GetSession(7); err != models.ErrSessionNotFound {
		t.Fatalf("expected no durable session, got %v", err)
	}
	if _, err := o.HandleUserTurn(context.Background(), 7, "Sam", "hi again"); err != nil {
		t.Fatalf("recovery turn failed: %v", err)
	}
	session, err := st.GetSession(7)
	if err != nil {
		t.Fatalf("recovery turn not persisted: %v", err)
	}
	if len(session.ConversationHistory) != 2 {
		t.Errorf("history has %d entries, want 2 (failed turn not replayed)", len(session.ConversationHistory))
	}
}

func TestHistoryBounded(t *testing.T) {
	gw := &fakeGateway{script: []turnResult{
		{parsed: mkTurn(models.StageGreeting, "ok", 1, 10)},
	}}
	st := store.NewInMemoryStore()
	cfg := DefaultConfig()
	cfg.MaxHistoryEntries = 6
	o := NewOrchestrator(st, gw, nil, cfg)

	ctx := context.Background()
	for i := 0; i < 10; i++ {
		if _, err := o.HandleUserTurn(ctx, 7, "Sam", fmt.Sprintf("message %d", i)); err != nil {
			t.Fatalf("turn %d failed: %v", i, err)
		}
	}
	session, _ := st.GetSession(7)
	if len(session.ConversationHistory) != 6 {
		t.Fatalf("history has %d entries, want 6", len(session.ConversationHistory))
	}
	// Oldest entries evicted first.
	if session.ConversationHistory[0].Text != "message 7" {
		t.Errorf("oldest surviving entry = %q, want \"message 7\"", session.ConversationHistory[0].Text)
	}
}

func TestExpiredSessionArchivedAsAbandoned(t *testing.T) {
	gw := &fakeGateway{script: []turnResult{
		{parsed: mkTurn(models.StageGreeting, "Welcome back, let's start over.", 1, 10)},
	}}
	o, st := newTestOrchestrator(gw)

	stale := models.NewInterviewSession(7, "Sam", models.DefaultPersona)
	stale.CurrentStage = models.StageOperations
	stale.StageCompleteness[models.StageOperations] = 40
	stale.LastActivityAt = time.Now().UTC().Add(-4 * time.Hour)
	if err := st.SaveSession(stale); err != nil {
		t.Fatalf("seed save failed: %v", err)
	}

	turn, err := o.HandleUserTurn(context.Background(), 7, "Sam", "hello again")
	if err != nil {
		t.Fatalf("HandleUserTurn failed: %v", err)
	}
	if turn.Stage != models.StageGreeting {
		t.Errorf("Stage = %s, want greeting (fresh session)", turn.Stage)
	}

	archived, err := st.GetArchived(7)
	if err != nil {
		t.Fatalf("expired session not archived: %v", err)
	}
	if archived.CompletionReason != models.CompletionAbandoned {
		t.Errorf("CompletionReason = %s, want abandoned_timeout", archived.CompletionReason)
	}
	if archived.Session.CurrentStage != models.StageOperations {
		t.Errorf("archive snapshot stage = %s, want operations", archived.Session.CurrentStage)
	}

	session, _ := st.GetSession(7)
	if session.CurrentStage != models.StageGreeting {
		t.Errorf("fresh session stage = %s, want greeting", session.CurrentStage)
	}
}

func TestWrapUpCompletionArchivesNaturally(t *testing.T) {
	gw := &fakeGateway{script: []turnResult{
		{parsed: mkTurn(models.StageWrapUp, "That confirms everything. Thank you!", 2, 90)},
	}}
	o, st := newTestOrchestrator(gw)

	session := models.NewInterviewSession(7, "Sam", models.DefaultPersona)
	session.CurrentStage = models.StageWrapUp
	for _, s := range models.StageOrder[:len(models.StageOrder)-1] {
		session.StageCompleteness[s] = 85
	}
	if err := st.SaveSession(session); err != nil {
		t.Fatalf("seed save failed: %v", err)
	}

	turn, err := o.HandleUserTurn(context.Background(), 7, "Sam", "yes, that's accurate")
	if err != nil {
		t.Fatalf("HandleUserTurn failed: %v", err)
	}
	if !turn.Archived {
		t.Fatal("expected archived turn")
	}
	if !strings.Contains(turn.Text, "Interview complete!") {
		t.Errorf("summary missing from %q", turn.Text)
	}
	if !strings.Contains(turn.Text, "That confirms everything. Thank you!") {
		t.Errorf("final reply missing from %q", turn.Text)
	}

	archived, err := st.GetArchived(7)
	if err != nil {
		t.Fatalf("session not archived: %v", err)
	}
	if archived.CompletionReason != models.CompletionNatural {
		t.Errorf("CompletionReason = %s, want natural_completion", archived.CompletionReason)
	}
	if _, err := st.GetSession(7); err != models.ErrSessionNotFound {
		t.Errorf("active session still present after archive: %v", err)
	}
}

func TestNaturalArchiveDropsPendingTranscript(t *testing.T) {
	gw := &fakeGateway{script: []turnResult{
		{parsed: mkTurn(models.StageWrapUp, "That confirms everything. Thank you!", 2, 90)},
	}}
	o, st := newTestOrchestrator(gw)

	session := models.NewInterviewSession(7, "Sam", models.DefaultPersona)
	session.CurrentStage = models.StageWrapUp
	for _, s := range models.StageOrder[:len(models.StageOrder)-1] {
		session.StageCompleteness[s] = 85
	}
	if err := st.SaveSession(session); err != nil {
		t.Fatalf("seed save failed: %v", err)
	}
	o.holdPendingVoice(7, "stale transcript")

	turn, err := o.HandleUserTurn(context.Background(), 7, "Sam", "yes, that's accurate")
	if err != nil {
		t.Fatalf("HandleUserTurn failed: %v", err)
	}
	if !turn.Archived {
		t.Fatal("expected archived turn")
	}
	if _, ok := o.takePendingVoice(7); ok {
		t.Error("pending transcript survived natural archive")
	}
}

func TestCompleteArchivesExplicitly(t *testing.T) {
	o, st := newTestOrchestrator(&fakeGateway{script: []turnResult{{}}})

	session := models.NewInterviewSession(7, "Sam", models.DefaultPersona)
	session.CurrentStage = models.StageEssence
	if err := st.SaveSession(session); err != nil {
		t.Fatalf("seed save failed: %v", err)
	}

	turn, err := o.Complete(context.Background(), 7)
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if !turn.Archived {
		t.Error("expected archived turn")
	}
	archived, err := st.GetArchived(7)
	if err != nil {
		t.Fatalf("not archived: %v", err)
	}
	if archived.CompletionReason != models.CompletionExplicit {
		t.Errorf("CompletionReason = %s, want explicit_complete", archived.CompletionReason)
	}
	if _, err := st.GetSession(7); err != models.ErrSessionNotFound {
		t.Error("active session survived Complete")
	}

	if _, err := o.Complete(context.Background(), 7); err != models.ErrSessionNotFound {
		t.Errorf("Complete with no session: got %v, want ErrSessionNotFound", err)
	}
}

func TestResetStartsFreshKeepingIdentity(t *testing.T) {
	o, st := newTestOrchestrator(&fakeGateway{script: []turnResult{{}}})

	session := models.NewInterviewSession(7, "Sam", models.PersonaMaster)
	session.CurrentStage = models.StageMastery
	session.StageCompleteness[models.StageMastery] = 50
	if err := st.SaveSession(session); err != nil {
		t.Fatalf("seed save failed: %v", err)
	}

	turn, err := o.Reset(context.Background(), 7)
	if err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	if turn.Stage != models.StageGreeting {
		t.Errorf("Stage = %s, want greeting", turn.Stage)
	}
	if !strings.Contains(turn.Text, "Welcome, Sam!") {
		t.Errorf("welcome text = %q", turn.Text)
	}

	fresh, err := st.GetSession(7)
	if err != nil {
		t.Fatalf("fresh session not persisted: %v", err)
	}
	if fresh.CurrentStage != models.StageGreeting || fresh.Persona != models.PersonaMaster || fresh.DisplayName != "Sam" {
		t.Errorf("fresh session = stage %s persona %s name %q", fresh.CurrentStage, fresh.Persona, fresh.DisplayName)
	}
	if len(fresh.ConversationHistory) != 0 {
		t.Error("fresh session carried history over")
	}
}

func TestStatusReport(t *testing.T) {
	o, st := newTestOrchestrator(&fakeGateway{script: []turnResult{{}}})

	if _, err := o.Status(context.Background(), 7); err != models.ErrSessionNotFound {
		t.Errorf("Status with no session: got %v, want ErrSessionNotFound", err)
	}

	session := models.NewInterviewSession(7, "Sam", models.DefaultPersona)
	session.CurrentStage = models.StageEssence
	session.StageCompleteness[models.StageGreeting] = 85
	session.StageCompleteness[models.StageProfiling] = 82
	session.StageCompleteness[models.StageEssence] = 30
	session.QuestionDepth = 2
	session.ExamplesCollected = 4
	session.AddMessage(models.RoleUser, "a", 100)
	session.AddMessage(models.RoleAssistant, "b", 100)
	if err := st.SaveSession(session); err != nil {
		t.Fatalf("seed save failed: %v", err)
	}

	report, err := o.Status(context.Background(), 7)
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if report.Stage != models.StageEssence {
		t.Errorf("Stage = %s, want essence", report.Stage)
	}
	if report.MessageCount != 2 || report.Examples != 4 || report.QuestionDepth != 2 {
		t.Errorf("counters = %d/%d/%d", report.MessageCount, report.Examples, report.QuestionDepth)
	}
	if len(report.Progress) != len(models.StageOrder) {
		t.Fatalf("progress rows = %d, want %d", len(report.Progress), len(models.StageOrder))
	}
	for _, row := range report.Progress {
		if row.Active != (row.Stage == models.StageEssence) {
			t.Errorf("row %s Active = %v", row.Stage, row.Active)
		}
	}
	if report.Progress[2].Completeness != 30 {
		t.Errorf("essence completeness = %d, want 30", report.Progress[2].Completeness)
	}
}

func TestSameUserTurnsSerialized(t *testing.T) {
	var active, maxActive int32
	gw := &fakeGateway{
		script: []turnResult{{parsed: mkTurn(models.StageGreeting, "ok", 1, 10)}},
	}
	gw.onCall = func() {
		cur := atomic.AddInt32(&active, 1)
		for {
			prev := atomic.LoadInt32(&maxActive)
			if cur <= prev || atomic.CompareAndSwapInt32(&maxActive, prev, cur) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		atomic.AddInt32(&active, -1)
	}
	o, _ := newTestOrchestrator(gw)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := o.HandleUserTurn(context.Background(), 7, "Sam", "hi"); err != nil {
				t.Errorf("turn failed: %v", err)
			}
		}()
	}
	wg.Wait()
	if got := atomic.LoadInt32(&maxActive); got != 1 {
		t.Errorf("max concurrent gateway calls for one user = %d, want 1", got)
	}
}

func TestDifferentUsersRunInParallel(t *testing.T) {
	release := make(chan struct{})
	var entered sync.WaitGroup
	entered.Add(2)
	gw := &fakeGateway{
		script: []turnResult{{parsed: mkTurn(models.StageGreeting, "ok", 1, 10)}},
	}
	gw.onCall = func() {
		entered.Done()
		<-release
	}
	o, _ := newTestOrchestrator(gw)

	var wg sync.WaitGroup
	for _, handle := range []int64{1, 2} {
		wg.Add(1)
		go func(h int64) {
			defer wg.Done()
			if _, err := o.HandleUserTurn(context.Background(), h, "", "hi"); err != nil {
				t.Errorf("turn for %d failed: %v", h, err)
			}
		}(handle)
	}

	done := make(chan struct{})
	go func() { entered.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("two users did not reach the gateway concurrently")
	}
	close(release)
	wg.Wait()
}

func TestVoiceTurnHighConfidencePassesThrough(t *testing.T) {
	gw := &fakeGateway{script: []turnResult{
		{parsed: mkTurn(models.StageGreeting, "Heard you loud and clear.", 1, 15)},
	}}
	o, st := newTestOrchestrator(gw)

	turn, err := o.HandleVoiceTurn(context.Background(), 7, "Sam", voice.Transcription{Text: "I build compilers", Confidence: 0.92})
	if err != nil {
		t.Fatalf("HandleVoiceTurn failed: %v", err)
	}
	if turn.Text != "Heard you loud and clear." {
		t.Errorf("Text = %q", turn.Text)
	}
	session, err := st.GetSession(7)
	if err != nil {
		t.Fatalf("session not created: %v", err)
	}
	if session.ConversationHistory[0].Text != "I build compilers" {
		t.Errorf("transcript not recorded as user turn: %q", session.ConversationHistory[0].Text)
	}
}

func TestVoiceTurnLowConfidenceHeldForConfirmation(t *testing.T) {
	gw := &fakeGateway{script: []turnResult{
		{parsed: mkTurn(models.StageGreeting, "Understood.", 1, 15)},
	}}
	o, st := newTestOrchestrator(gw)

	turn, err := o.HandleVoiceTurn(context.Background(), 7, "Sam", voice.Transcription{Text: "I build compliers", Confidence: 0.4})
	if err != nil {
		t.Fatalf("HandleVoiceTurn failed: %v", err)
	}
	if !strings.Contains(turn.Text, "I build compliers") {
		t.Errorf("confirmation prompt missing transcript: %q", turn.Text)
	}
	if len(turn.SuggestedActions) != 2 {
		t.Errorf("SuggestedActions = %v", turn.SuggestedActions)
	}
	if _, err := st.GetSession(7); err != models.ErrSessionNotFound {
		t.Error("low-confidence transcript reached the interview before confirmation")
	}

	confirmed, err := o.ConfirmVoiceTurn(context.Background(), 7, "Sam")
	if err != nil {
		t.Fatalf("ConfirmVoiceTurn failed: %v", err)
	}
	if confirmed.Text != "Understood." {
		t.Errorf("Text = %q", confirmed.Text)
	}
	session, err := st.GetSession(7)
	if err != nil {
		t.Fatalf("session not created after confirmation: %v", err)
	}
	if session.ConversationHistory[0].Text != "I build compliers" {
		t.Errorf("held transcript not replayed: %q", session.ConversationHistory[0].Text)
	}

	// Confirming twice finds nothing pending.
	again, err := o.ConfirmVoiceTurn(context.Background(), 7, "Sam")
	if err != nil {
		t.Fatalf("second ConfirmVoiceTurn failed: %v", err)
	}
	if again.Text != voiceNothingPendingMessage {
		t.Errorf("Text = %q, want nothing-pending notice", again.Text)
	}
}

func TestVoiceTurnRaisedThresholdHoldsMediumConfidence(t *testing.T) {
	gw := &fakeGateway{script: []turnResult{
		{parsed: mkTurn(models.StageGreeting, "Tell me more about your role?", 1, 15)},
	}}
	st := store.NewInMemoryStore()
	cfg := DefaultConfig()
	cfg.TranscriptConfidenceThreshold = 0.8
	o := NewOrchestrator(st, gw, nil, cfg)

	turn, err := o.HandleVoiceTurn(context.Background(), 7, "Sam", voice.Transcription{Text: "I run the ops team", Confidence: 0.7})
	if err != nil {
		t.Fatalf("HandleVoiceTurn failed: %v", err)
	}
	if len(turn.SuggestedActions) == 0 {
		t.Fatalf("confidence 0.7 under threshold 0.8 was not held for confirmation: %q", turn.Text)
	}
	if gw.calls != 0 {
		t.Errorf("gateway called %d times before confirmation", gw.calls)
	}
	if _, err := st.GetSession(7); err != models.ErrSessionNotFound {
		t.Error("transcript reached the interview before confirmation")
	}

	if _, err := o.ConfirmVoiceTurn(context.Background(), 7, "Sam"); err != nil {
		t.Fatalf("ConfirmVoiceTurn failed: %v", err)
	}
	if gw.calls != 1 {
		t.Errorf("gateway calls after confirmation = %d", gw.calls)
	}
}

func TestVoiceTurnFailedTranscription(t *testing.T) {
	o, st := newTestOrchestrator(&fakeGateway{script: []turnResult{{}}})

	turn, err := o.HandleVoiceTurn(context.Background(), 7, "Sam", voice.Transcription{Text: "", Confidence: 0.9})
	if err != nil {
		t.Fatalf("HandleVoiceTurn failed: %v", err)
	}
	if turn.Text != voiceFailedMessage {
		t.Errorf("Text = %q, want failure notice", turn.Text)
	}
	if _, err := st.GetSession(7); err != models.ErrSessionNotFound {
		t.Error("failed transcription touched session state")
	}
}
