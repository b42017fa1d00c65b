// ABOUTME: Tests for the unified SQLite storage layer
// ABOUTME: Verifies transcript persistence, session listing and passage search
package sqlite

import (
	"strings"
	"testing"
	"time"

	"github.com/harper/tutor/internal/models"
)

func newTestStorage(t *testing.T) *Storage {
	t.Helper()
	store, err := NewStorageInMemory()
	if err != nil {
		t.Fatalf("NewStorageInMemory() error = %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func testTurn(t *testing.T, sessionID string, userTurn, cycle int, agent models.Agent, artifact string) models.Turn {
	t.Helper()
	turn, err := models.NewTurn("¿Cuál es la derivada de x^2?", agent, "test rationale")
	if err != nil {
		t.Fatalf("NewTurn() error = %v", err)
	}
	turn.SessionID = sessionID
	turn.UserTurn = userTurn
	turn.Cycle = cycle
	turn.Artifact = artifact
	return *turn
}

func TestStorage_SaveAndLoadSession(t *testing.T) {
	store := newTestStorage(t)

	turns := []models.Turn{
		testTurn(t, "sess_a", 1, 1, models.MathExpert, "La derivada es 2x."),
		testTurn(t, "sess_a", 1, 2, models.Finish, ""),
	}
	turns[0].Topic = "derivadas"
	turns[0].Summary = "Derivada de una potencia"
	turns[0].Satisfied = true
	turns[0].Annotations = []string{models.AnnotationTieBreak}

	if err := store.SaveTurns("sess_a", turns); err != nil {
		t.Fatalf("SaveTurns() error = %v", err)
	}

	rec, err := store.LoadSession("sess_a")
	if err != nil {
		t.Fatalf("LoadSession() error = %v", err)
	}
	if rec == nil {
		t.Fatal("LoadSession() returned nil")
	}
	if rec.TurnCount != 2 {
		t.Errorf("TurnCount = %d, want 2", rec.TurnCount)
	}
	if rec.UserTurns != 1 {
		t.Errorf("UserTurns = %d, want 1", rec.UserTurns)
	}
	if rec.LastTopic != "derivadas" {
		t.Errorf("LastTopic = %q, want derivadas", rec.LastTopic)
	}
	if rec.Status != models.SessionActive {
		t.Errorf("Status = %q, want ACTIVE", rec.Status)
	}
	if rec.Title != "¿Cuál es la derivada de x^2?" {
		t.Errorf("Title = %q", rec.Title)
	}
	if len(rec.Turns) != 2 {
		t.Fatalf("len(Turns) = %d, want 2", len(rec.Turns))
	}

	first := rec.Turns[0]
	if first.Agent != models.MathExpert {
		t.Errorf("Turns[0].Agent = %q, want math_expert", first.Agent)
	}
	if first.Artifact != "La derivada es 2x." {
		t.Errorf("Turns[0].Artifact = %q", first.Artifact)
	}
	if !first.Satisfied {
		t.Error("Turns[0].Satisfied should be true")
	}
	if first.Summary != "Derivada de una potencia" {
		t.Errorf("Turns[0].Summary = %q", first.Summary)
	}
	if !first.HasAnnotation(models.AnnotationTieBreak) {
		t.Errorf("Turns[0].Annotations = %v, want tie_break", first.Annotations)
	}
	if rec.Turns[1].Agent != models.Finish {
		t.Errorf("Turns[1].Agent = %q, want FINISH", rec.Turns[1].Agent)
	}
}

func TestStorage_SaveTurnsAppendsUserTurns(t *testing.T) {
	store := newTestStorage(t)

	if err := store.SaveTurns("sess_b", []models.Turn{testTurn(t, "sess_b", 1, 1, models.Planning, "plan")}); err != nil {
		t.Fatalf("SaveTurns(1) error = %v", err)
	}
	if err := store.SaveTurns("sess_b", []models.Turn{
		testTurn(t, "sess_b", 2, 1, models.MathExpert, "resp"),
		testTurn(t, "sess_b", 2, 2, models.Evaluator, "ok"),
	}); err != nil {
		t.Fatalf("SaveTurns(2) error = %v", err)
	}

	rec, err := store.LoadSession("sess_b")
	if err != nil {
		t.Fatalf("LoadSession() error = %v", err)
	}
	if rec.TurnCount != 3 || rec.UserTurns != 2 {
		t.Errorf("TurnCount = %d, UserTurns = %d, want 3 and 2", rec.TurnCount, rec.UserTurns)
	}

	wantOrder := []models.Agent{models.Planning, models.MathExpert, models.Evaluator}
	for i, want := range wantOrder {
		if rec.Turns[i].Agent != want {
			t.Errorf("Turns[%d].Agent = %q, want %q", i, rec.Turns[i].Agent, want)
		}
	}
}

func TestStorage_SaveTurnsIgnoresFailedDispatchTopic(t *testing.T) {
	store := newTestStorage(t)

	ok := testTurn(t, "sess_f", 1, 1, models.MathExpert, "resp")
	ok.Topic = "límites"
	failed := testTurn(t, "sess_f", 2, 1, models.ExamCreator, "")
	failed.Topic = "fracciones"
	failed.Annotations = []string{models.AnnotationResponderFailure}
	finish := testTurn(t, "sess_f", 2, 2, models.Finish, "")
	finish.Topic = "fracciones"

	if err := store.SaveTurns("sess_f", []models.Turn{ok}); err != nil {
		t.Fatalf("SaveTurns(1) error = %v", err)
	}
	if err := store.SaveTurns("sess_f", []models.Turn{failed, finish}); err != nil {
		t.Fatalf("SaveTurns(2) error = %v", err)
	}

	rec, err := store.LoadSession("sess_f")
	if err != nil {
		t.Fatalf("LoadSession() error = %v", err)
	}
	if rec.LastTopic != "límites" {
		t.Errorf("LastTopic = %q, want the topic of the last successful dispatch", rec.LastTopic)
	}
}

func TestStorage_SaveTurnsRejectsForeignTurn(t *testing.T) {
	store := newTestStorage(t)

	err := store.SaveTurns("sess_c", []models.Turn{testTurn(t, "sess_other", 1, 1, models.MathExpert, "x")})
	if err == nil {
		t.Fatal("SaveTurns() should reject a turn from another session")
	}

	rec, err := store.LoadSession("sess_c")
	if err != nil {
		t.Fatalf("LoadSession() error = %v", err)
	}
	if rec != nil {
		t.Error("failed SaveTurns should not leave a session behind")
	}
}

func TestStorage_LoadUnknownSession(t *testing.T) {
	store := newTestStorage(t)

	rec, err := store.LoadSession("nope")
	if err != nil {
		t.Fatalf("LoadSession() error = %v", err)
	}
	if rec != nil {
		t.Errorf("LoadSession() = %+v, want nil", rec)
	}
}

func TestStorage_ListSessionsNewestFirst(t *testing.T) {
	store := newTestStorage(t)

	base := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	for i, id := range []string{"sess_old", "sess_mid", "sess_new"} {
		rec := &models.SessionRecord{
			SessionID: id,
			Title:     id,
			Status:    models.SessionActive,
			CreatedAt: base,
			UpdatedAt: base.Add(time.Duration(i) * time.Hour),
		}
		if err := store.sessions.Save(rec); err != nil {
			t.Fatalf("Save(%s) error = %v", id, err)
		}
	}

	all, err := store.ListSessions(0)
	if err != nil {
		t.Fatalf("ListSessions() error = %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("len = %d, want 3", len(all))
	}
	if all[0].SessionID != "sess_new" || all[2].SessionID != "sess_old" {
		t.Errorf("order = %s, %s, %s", all[0].SessionID, all[1].SessionID, all[2].SessionID)
	}

	limited, err := store.ListSessions(2)
	if err != nil {
		t.Fatalf("ListSessions(2) error = %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("len = %d, want 2", len(limited))
	}
}

func TestStorage_CloseAndDeleteSession(t *testing.T) {
	store := newTestStorage(t)

	if err := store.SaveTurns("sess_d", []models.Turn{testTurn(t, "sess_d", 1, 1, models.MathExpert, "x")}); err != nil {
		t.Fatalf("SaveTurns() error = %v", err)
	}

	if err := store.CloseSession("sess_d"); err != nil {
		t.Fatalf("CloseSession() error = %v", err)
	}
	rec, _ := store.LoadSession("sess_d")
	if rec.Status != models.SessionClosed {
		t.Errorf("Status = %q, want CLOSED", rec.Status)
	}

	if err := store.DeleteSession("sess_d"); err != nil {
		t.Fatalf("DeleteSession() error = %v", err)
	}
	n, err := store.turns.CountBySession("sess_d")
	if err != nil {
		t.Fatalf("CountBySession() error = %v", err)
	}
	if n != 0 {
		t.Errorf("turns after delete = %d, want 0 (cascade)", n)
	}
}

func TestDeriveTitle(t *testing.T) {
	long := strings.Repeat("a", titleMaxRunes+10)

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"collapses whitespace", "  hola \n mundo ", "hola mundo"},
		{"truncates long", long, strings.Repeat("a", titleMaxRunes) + "..."},
		{"keeps accents", "límite", "límite"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := deriveTitle(tt.in); got != tt.want {
				t.Errorf("deriveTitle() = %q, want %q", got, tt.want)
			}
		})
	}
}
