// ABOUTME: Tests for the tutor engine wiring
// ABOUTME: Uses in-memory SQLite with stub classifier, responders and embedder
package engine

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/harper/tutor/internal/config"
	"github.com/harper/tutor/internal/core"
	"github.com/harper/tutor/internal/models"
	"github.com/harper/tutor/internal/storage/sqlite"
)

func testConfig() *config.Config {
	return &config.Config{
		Backend:       "sqlite",
		MaxCycles:     6,
		TieMargin:     0.1,
		Timeout:       time.Second,
		RetrievalTopK: 3,
		LogLevel:      "warn",
	}
}

type memProfiles struct {
	mu      sync.Mutex
	profile *models.StudentProfile
}

func (m *memProfiles) Load() (*models.StudentProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.profile == nil {
		return nil, nil
	}
	cp := *m.profile
	return &cp, nil
}

func (m *memProfiles) Save(p *models.StudentProfile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.profile = &cp
	return nil
}

type extractorFunc func(ctx context.Context, msg string) (map[string]interface{}, error)

func (f extractorFunc) ExtractStudentInfo(ctx context.Context, msg string) (map[string]interface{}, error) {
	return f(ctx, msg)
}

type countingEmbedder struct {
	calls atomic.Int32
	err   error
}

func (c *countingEmbedder) GenerateEmbedding(ctx context.Context, text string) ([]float64, error) {
	c.calls.Add(1)
	if c.err != nil {
		return nil, c.err
	}
	return []float64{float64(len(text)), 1}, nil
}

func answeringResponders() map[models.Agent]core.Responder {
	out := make(map[models.Agent]core.Responder)
	for _, agent := range models.Responders {
		out[agent] = core.ResponderFunc(func(ctx context.Context, utterance string, snap models.Snapshot) (models.Response, error) {
			return models.Response{Artifact: string(agent) + " responde: " + utterance, Satisfied: true}, nil
		})
	}
	return out
}

func newStore(t *testing.T) *sqlite.Storage {
	t.Helper()
	store, err := sqlite.NewStorageInMemory()
	if err != nil {
		t.Fatalf("NewStorageInMemory() error = %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func newTestEngine(t *testing.T, store *sqlite.Storage, tune func(*Options)) *Engine {
	t.Helper()
	opts := Options{
		Store:      store,
		Responders: answeringResponders(),
		Profiles:   &memProfiles{},
	}
	if tune != nil {
		tune(&opts)
	}
	e, err := NewWithOptions(testConfig(), opts)
	if err != nil {
		t.Fatalf("NewWithOptions() error = %v", err)
	}
	return e
}

func TestNewWithOptions_RequiresStore(t *testing.T) {
	if _, err := NewWithOptions(testConfig(), Options{}); err == nil {
		t.Error("NewWithOptions() should fail without a store")
	}
}

func TestEngine_AskPersistsAndResumes(t *testing.T) {
	store := newStore(t)
	e := newTestEngine(t, store, nil)
	ctx := context.Background()

	reply, err := e.Ask(ctx, "", "Explícame el teorema de Pitágoras")
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if reply.SessionID == "" || reply.UserTurn != 1 {
		t.Errorf("reply = %s turn %d, want a new session at turn 1", reply.SessionID, reply.UserTurn)
	}
	if !strings.Contains(reply.Text, "math_expert responde") {
		t.Errorf("Text = %q, want the math_expert artifact", reply.Text)
	}

	rec, err := e.Transcript(reply.SessionID)
	if err != nil {
		t.Fatalf("Transcript() error = %v", err)
	}
	if rec == nil || len(rec.Turns) != 2 {
		t.Fatalf("Transcript() = %+v, want 2 turns", rec)
	}

	// A fresh engine over the same store restores the session from the transcript
	resumed := newTestEngine(t, store, nil)
	flags, err := resumed.Flags(ctx, reply.SessionID)
	if err != nil {
		t.Fatalf("Flags() error = %v", err)
	}
	if flags.LastAgent != models.MathExpert {
		t.Errorf("restored LastAgent = %q, want math_expert", flags.LastAgent)
	}

	next, err := resumed.Ask(ctx, reply.SessionID, "¿Y cómo se demuestra?")
	if err != nil {
		t.Fatalf("Ask() resumed error = %v", err)
	}
	if next.UserTurn != 2 {
		t.Errorf("UserTurn = %d, want 2", next.UserTurn)
	}

	sessions, err := resumed.Sessions(10)
	if err != nil {
		t.Fatalf("Sessions() error = %v", err)
	}
	if len(sessions) != 1 || sessions[0].TurnCount != 4 {
		t.Errorf("Sessions() = %+v, want one session with 4 turns", sessions)
	}
}

func TestEngine_Offline(t *testing.T) {
	store := newStore(t)
	e := newTestEngine(t, store, func(o *Options) { o.Responders = nil })

	if e.Online() {
		t.Error("Online() = true without responders")
	}
	if _, err := e.Ask(context.Background(), "", "Explica las derivadas"); !errors.Is(err, ErrModelUnavailable) {
		t.Errorf("Ask() error = %v, want ErrModelUnavailable", err)
	}

	d, err := e.Route(context.Background(), "", "Crea un examen de álgebra")
	if err != nil {
		t.Fatalf("Route() error = %v", err)
	}
	if d.Target != models.ExamCreator {
		t.Errorf("Route() = %q, want exam_creator", d.Target)
	}
}

func TestEngine_RouteDoesNotMutate(t *testing.T) {
	store := newStore(t)
	e := newTestEngine(t, store, nil)
	ctx := context.Background()

	reply, err := e.Ask(ctx, "", "Explica qué es un límite")
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}

	d, err := e.Route(ctx, reply.SessionID, "¿Está bien?")
	if err != nil {
		t.Fatalf("Route() error = %v", err)
	}
	if d.Target != models.Evaluator || !d.Override {
		t.Errorf("Route() = %+v, want evaluator override", d)
	}

	rec, err := e.Transcript(reply.SessionID)
	if err != nil {
		t.Fatalf("Transcript() error = %v", err)
	}
	if len(rec.Turns) != 2 {
		t.Errorf("Route() changed the transcript: %d turns", len(rec.Turns))
	}
}

func TestEngine_EmptyMessage(t *testing.T) {
	e := newTestEngine(t, newStore(t), nil)
	if _, err := e.Ask(context.Background(), "", "  "); !errors.Is(err, core.ErrEmptyUtterance) {
		t.Errorf("Ask() error = %v, want ErrEmptyUtterance", err)
	}
	if _, err := e.Route(context.Background(), "", ""); !errors.Is(err, core.ErrEmptyUtterance) {
		t.Errorf("Route() error = %v, want ErrEmptyUtterance", err)
	}
}

func TestEngine_Ingest(t *testing.T) {
	store := newStore(t)
	embedder := &countingEmbedder{}
	e := newTestEngine(t, store, func(o *Options) { o.Embedder = embedder })

	doc, err := models.NewDocument("apuntes.md", "Apuntes", "La derivada mide el cambio.\n\nLa integral acumula áreas.")
	if err != nil {
		t.Fatalf("NewDocument() error = %v", err)
	}

	res, err := e.Ingest(context.Background(), doc)
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	if res.DocumentID != doc.DocumentID || res.Chunks != 5 {
		t.Errorf("Ingest() = %+v, want 5 chunks", res)
	}
	if res.Embedded != 2 || embedder.calls.Load() != 2 {
		t.Errorf("Embedded = %d (calls %d), want 2 paragraphs", res.Embedded, embedder.calls.Load())
	}

	passages, err := store.SearchKeyword("integral", 3)
	if err != nil {
		t.Fatalf("SearchKeyword() error = %v", err)
	}
	if len(passages) != 1 || !strings.Contains(passages[0].Content, "integral") {
		t.Errorf("SearchKeyword() = %+v", passages)
	}

	found, err := e.Search(context.Background(), "La integral acumula áreas.", 1)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(found) != 1 {
		t.Errorf("Search() = %+v, want one passage", found)
	}
}

func TestEngine_IngestEmbeddingFailure(t *testing.T) {
	embedder := &countingEmbedder{err: errors.New("rate limited")}
	e := newTestEngine(t, newStore(t), func(o *Options) { o.Embedder = embedder })

	doc, _ := models.NewDocument("notas.txt", "Notas", "Un párrafo.")
	res, err := e.Ingest(context.Background(), doc)
	if err == nil {
		t.Fatal("Ingest() should report the embedding failure")
	}
	if res == nil || res.Chunks == 0 || res.Embedded != 0 {
		t.Errorf("Ingest() = %+v, want chunks saved without embeddings", res)
	}
}

func TestEngine_Profile(t *testing.T) {
	store := newStore(t)
	profiles := &memProfiles{}
	e := newTestEngine(t, store, func(o *Options) {
		o.Profiles = profiles
		o.Extractor = extractorFunc(func(ctx context.Context, msg string) (map[string]interface{}, error) {
			return map[string]interface{}{"difficulty_areas": []interface{}{"integrales"}}, nil
		})
	})

	p, err := e.Profile()
	if err != nil {
		t.Fatalf("Profile() error = %v", err)
	}
	if p.Level != models.DefaultStudentProfile().Level {
		t.Errorf("Level = %q, want the default", p.Level)
	}

	if _, err := e.UpdateProfile(map[string]interface{}{"name": "Ana", "level": "avanzado"}); err != nil {
		t.Fatalf("UpdateProfile() error = %v", err)
	}

	if _, err := e.Ask(context.Background(), "", "Me cuestan las integrales, explícamelas"); err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	e.Wait()

	p, err = e.Profile()
	if err != nil {
		t.Fatalf("Profile() error = %v", err)
	}
	if p.Name != "Ana" || p.Level != "avanzado" {
		t.Errorf("profile = %+v, want Ana avanzado", p)
	}
	if len(p.DifficultyAreas) != 1 || p.DifficultyAreas[0] != "integrales" {
		t.Errorf("DifficultyAreas = %v, want [integrales]", p.DifficultyAreas)
	}
}
