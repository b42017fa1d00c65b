// ABOUTME: Engine assembles the tutor from configuration: storage, LLM collaborators and the Supervisor
// ABOUTME: Shared by the CLI, the MCP tools and the standalone server
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/harper/tutor/internal/charm"
	"github.com/harper/tutor/internal/config"
	"github.com/harper/tutor/internal/core"
	"github.com/harper/tutor/internal/llm"
	"github.com/harper/tutor/internal/logging"
	"github.com/harper/tutor/internal/models"
	"github.com/harper/tutor/internal/session"
	"github.com/harper/tutor/internal/storage"
	"github.com/sashabaranov/go-openai"
	"golang.org/x/sync/errgroup"
)

// ErrModelUnavailable is returned by Ask when no language model is configured
var ErrModelUnavailable = errors.New("OPENAI_API_KEY is required to answer questions")

// embedWorkers bounds concurrent embedding requests during ingestion
const embedWorkers = 4

// Options overrides the collaborators New would build from configuration
type Options struct {
	Store      storage.Store
	Classifier core.Classifier
	Responders map[models.Agent]core.Responder
	Embedder   core.Embedder
	Extractor  core.ProfileExtractor
	Profiles   core.ProfileRepository
	Logger     *slog.Logger
}

// Engine is a ready-to-use tutor
type Engine struct {
	cfg        *config.Config
	store      storage.Store
	supervisor *core.Supervisor
	sessions   *session.Registry
	scribe     *core.Scribe
	chunker    *core.PassageChunker
	embedder   core.Embedder
	profiles   core.ProfileRepository
	online     bool
	logger     *slog.Logger
}

// New opens the configured storage backend and builds the tutor. Without an
// OpenAI key the engine routes with the keyword classifier and cannot answer.
func New(cfg *config.Config, logger *slog.Logger) (*Engine, error) {
	store, err := storage.Open(storage.Config{
		Backend: cfg.Backend,
		DBPath:  cfg.DBPath,
		Charm: &charm.Config{
			Host:     cfg.CharmHost,
			DBName:   cfg.CharmDBName,
			AutoSync: cfg.AutoSync,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}

	opts := Options{Store: store, Logger: logger}
	if cfg.HasOpenAI() {
		client, err := llm.NewOpenAIClientWithConfig(&llm.ClientConfig{
			APIKey:         cfg.OpenAIKey,
			ChatModel:      cfg.ChatModel,
			EmbeddingModel: openai.EmbeddingModel(cfg.EmbeddingModel),
			MaxRetries:     cfg.MaxRetries,
			RetryDelay:     cfg.RetryDelay,
			CallTimeout:    cfg.Timeout,
			RateLimit:      cfg.RateLimit,
			Burst:          llm.DefaultBurst,
		})
		if err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("failed to create OpenAI client: %w", err)
		}
		opts.Classifier = llm.NewClassifier(client)
		opts.Responders = llm.NewResponders(client, core.NewContextHydrator())
		opts.Embedder = client
		opts.Extractor = client
	}

	e, err := NewWithOptions(cfg, opts)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	return e, nil
}

// NewWithOptions builds the tutor from explicit collaborators. A nil classifier
// selects the keyword classifier; nil responders leave the engine route-only.
func NewWithOptions(cfg *config.Config, opts Options) (*Engine, error) {
	if opts.Store == nil {
		return nil, errors.New("store is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	classifier := opts.Classifier
	if classifier == nil {
		classifier = core.NewKeywordClassifier()
	}

	responders := opts.Responders
	online := responders != nil
	if !online {
		responders = make(map[models.Agent]core.Responder, len(models.Responders))
		for _, agent := range models.Responders {
			responders[agent] = unavailableResponder
		}
	}

	profiles := opts.Profiles
	if profiles == nil {
		profiles = core.FileProfileRepository{}
	}

	var retriever core.PassageFetcher
	if cfg.RetrievalTopK > 0 {
		retriever = core.NewRetriever(opts.Embedder, opts.Store, cfg.RetrievalTopK, logger)
	}

	sup, err := core.NewSupervisor(core.SupervisorConfig{
		Classifier: classifier,
		Responders: responders,
		Retriever:  retriever,
		Sink:       opts.Store,
		Profile: func() *models.StudentProfile {
			p, err := profiles.Load()
			if err != nil {
				logger.Warn("failed to load student profile", "error", err)
				return nil
			}
			return p
		},
		Policy: core.Policy{
			MaxCycles:       cfg.MaxCycles,
			TieMargin:       cfg.TieMargin,
			EvaluateAnswers: cfg.EvaluateAnswers,
			CallTimeout:     cfg.Timeout,
		},
		Logger: logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create supervisor: %w", err)
	}

	store := opts.Store
	return &Engine{
		cfg:        cfg,
		store:      store,
		supervisor: sup,
		sessions: session.NewRegistry(func(ctx context.Context, id string) (*session.State, error) {
			rec, err := store.LoadSession(id)
			if err != nil {
				return nil, fmt.Errorf("failed to load session %s: %w", id, err)
			}
			return session.FromRecord(rec)
		}),
		scribe:   core.NewScribe(opts.Extractor, profiles, logger),
		chunker:  core.NewPassageChunker(),
		embedder: opts.Embedder,
		profiles: profiles,
		online:   online,
		logger:   logger,
	}, nil
}

var unavailableResponder = core.ResponderFunc(func(context.Context, string, models.Snapshot) (models.Response, error) {
	return models.Response{}, ErrModelUnavailable
})

// Online reports whether the engine can answer questions
func (e *Engine) Online() bool {
	return e.online
}

// Store returns the storage backend
func (e *Engine) Store() storage.Store {
	return e.store
}

// Policy returns the routing policy in effect
func (e *Engine) Policy() core.Policy {
	return e.supervisor.Policy()
}

// Ask runs one user turn in a session. An empty sessionID starts a new session.
// The student profile is updated in the background from the message.
func (e *Engine) Ask(ctx context.Context, sessionID, message string) (*core.Reply, error) {
	if !e.online {
		return nil, ErrModelUnavailable
	}
	if strings.TrimSpace(message) == "" {
		return nil, core.ErrEmptyUtterance
	}
	if sessionID == "" {
		sessionID = models.NewSessionID()
	}

	st, release, err := e.sessions.Acquire(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	defer release()

	reply, err := e.supervisor.Handle(ctx, st, message)
	if err != nil {
		if errors.Is(err, models.ErrInvalidState) {
			e.sessions.Drop(sessionID)
		}
		return nil, err
	}

	e.scribe.UpdateProfileAsync(context.WithoutCancel(ctx), message)
	return reply, nil
}

// Route returns the decision the supervisor would take for message without
// dispatching it or changing the session
func (e *Engine) Route(ctx context.Context, sessionID, message string) (models.RoutingDecision, error) {
	if strings.TrimSpace(message) == "" {
		return models.RoutingDecision{}, core.ErrEmptyUtterance
	}
	if sessionID == "" {
		return e.supervisor.Decide(ctx, message, session.New(""))
	}

	st, release, err := e.sessions.Acquire(ctx, sessionID)
	if err != nil {
		return models.RoutingDecision{}, err
	}
	defer release()
	return e.supervisor.Decide(ctx, message, st)
}

// Decide returns the decision for message against an explicit session state
func (e *Engine) Decide(ctx context.Context, message string, st *session.State) (models.RoutingDecision, error) {
	return e.supervisor.Decide(ctx, message, st)
}

// Flags returns the current flags of a session
func (e *Engine) Flags(ctx context.Context, sessionID string) (models.Flags, error) {
	st, release, err := e.sessions.Acquire(ctx, sessionID)
	if err != nil {
		return models.Flags{}, err
	}
	defer release()
	return st.Flags(), nil
}

// Sessions lists persisted sessions, most recent first
func (e *Engine) Sessions(limit int) ([]models.SessionRecord, error) {
	return e.store.ListSessions(limit)
}

// Transcript returns a persisted session with its turns, or nil when unknown
func (e *Engine) Transcript(sessionID string) (*models.SessionRecord, error) {
	return e.store.LoadSession(sessionID)
}

// IngestResult reports what Ingest stored
type IngestResult struct {
	DocumentID string `json:"document_id"`
	Title      string `json:"title"`
	Chunks     int    `json:"chunks"`
	Embedded   int    `json:"embedded"`
}

// Ingest chunks a document into the passage store. Paragraph chunks are
// embedded when an embedder is configured.
func (e *Engine) Ingest(ctx context.Context, doc *models.Document) (*IngestResult, error) {
	chunks, err := e.chunker.ChunkDocument(doc)
	if err != nil {
		return nil, err
	}
	if err := e.store.SaveDocument(doc, chunks); err != nil {
		return nil, fmt.Errorf("failed to save document: %w", err)
	}

	result := &IngestResult{DocumentID: doc.DocumentID, Title: doc.Title, Chunks: len(chunks)}
	if e.embedder == nil {
		return result, nil
	}

	var paragraphs []models.Chunk
	for _, c := range chunks {
		if c.ChunkType == models.ChunkTypeParagraph {
			paragraphs = append(paragraphs, c)
		}
	}

	vectors := make([][]float64, len(paragraphs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(embedWorkers)
	for i, c := range paragraphs {
		g.Go(func() error {
			vec, err := e.embedder.GenerateEmbedding(gctx, c.Content)
			if err != nil {
				return fmt.Errorf("failed to embed chunk %s: %w", c.ChunkID, err)
			}
			vectors[i] = vec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return result, err
	}

	for i, c := range paragraphs {
		if err := e.store.SaveEmbedding(c.ChunkID, doc.DocumentID, vectors[i]); err != nil {
			return result, fmt.Errorf("failed to save embedding: %w", err)
		}
		result.Embedded++
	}

	e.logger.Info("document ingested", "document", doc.DocumentID, "chunks", result.Chunks, "embedded", result.Embedded)
	return result, nil
}

// Search returns up to limit passages of the ingested material for query
func (e *Engine) Search(ctx context.Context, query string, limit int) ([]models.Passage, error) {
	return core.NewRetriever(e.embedder, e.store, limit, e.logger).Fetch(ctx, query, "")
}

// Profile returns the stored student profile
func (e *Engine) Profile() (*models.StudentProfile, error) {
	p, err := e.profiles.Load()
	if err != nil {
		return nil, err
	}
	if p == nil {
		p = models.DefaultStudentProfile()
	}
	return p, nil
}

// UpdateProfile merges fields into the stored student profile
func (e *Engine) UpdateProfile(fields map[string]interface{}) (*models.StudentProfile, error) {
	p, err := e.Profile()
	if err != nil {
		return nil, err
	}
	p.Merge(fields)
	if err := e.profiles.Save(p); err != nil {
		return nil, fmt.Errorf("failed to save profile: %w", err)
	}
	return p, nil
}

// Wait blocks until background profile updates have finished
func (e *Engine) Wait() {
	e.scribe.Wait()
}

// Close waits for background profile updates and closes storage
func (e *Engine) Close() error {
	e.Wait()
	return e.store.Close()
}
