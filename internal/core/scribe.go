// ABOUTME: Scribe agent for async student profile learning
// ABOUTME: Runs in background to extract level, topics and difficulties from student messages
package core

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/harper/tutor/internal/models"
)

// ProfileExtractor pulls learner information out of a student message
type ProfileExtractor interface {
	ExtractStudentInfo(ctx context.Context, message string) (map[string]interface{}, error)
}

// ProfileRepository loads and stores the student profile
type ProfileRepository interface {
	Load() (*models.StudentProfile, error)
	Save(profile *models.StudentProfile) error
}

// FileProfileRepository keeps the profile as JSON in the XDG data directory
type FileProfileRepository struct{}

// Load reads the profile, returning the default profile when none exists
func (FileProfileRepository) Load() (*models.StudentProfile, error) {
	return models.LoadStudentProfile()
}

// Save writes the profile
func (FileProfileRepository) Save(profile *models.StudentProfile) error {
	return profile.Save()
}

// Scribe is an async background agent that learns about the student
type Scribe struct {
	extractor ProfileExtractor
	repo      ProfileRepository
	logger    *slog.Logger
	mu        sync.Mutex
	wg        sync.WaitGroup
}

// NewScribe creates a new Scribe agent
func NewScribe(extractor ProfileExtractor, repo ProfileRepository, logger *slog.Logger) *Scribe {
	if repo == nil {
		repo = FileProfileRepository{}
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Scribe{
		extractor: extractor,
		repo:      repo,
		logger:    logger,
	}
}

// UpdateProfileAsync runs the update in a goroutine (fire-and-forget).
// Errors are logged; Wait blocks until pending updates finish.
func (s *Scribe) UpdateProfileAsync(ctx context.Context, message string) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.UpdateProfile(ctx, message); err != nil {
			s.logger.Warn("scribe: profile update failed", "error", err)
		}
	}()
}

// Wait blocks until all background updates have finished
func (s *Scribe) Wait() {
	s.wg.Wait()
}

// UpdateProfile extracts learner info from message and merges it into the stored profile
func (s *Scribe) UpdateProfile(ctx context.Context, message string) error {
	if strings.TrimSpace(message) == "" || s.extractor == nil {
		return nil
	}

	info, err := s.extractor.ExtractStudentInfo(ctx, message)
	if err != nil {
		return fmt.Errorf("failed to extract student info: %w", err)
	}
	if len(info) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Reload so concurrent updates merge instead of overwrite
	profile, err := s.repo.Load()
	if err != nil {
		return fmt.Errorf("failed to load current profile: %w", err)
	}
	if profile == nil {
		profile = models.DefaultStudentProfile()
	}

	profile.Merge(info)

	if err := s.repo.Save(profile); err != nil {
		return fmt.Errorf("failed to save profile: %w", err)
	}

	s.logger.Debug("scribe: profile updated", "level", profile.Level)
	return nil
}
