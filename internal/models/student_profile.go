// ABOUTME: StudentProfile holds the learner context used to personalize responses
// ABOUTME: Stored as JSON under the XDG data directory
package models

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

// Comprehension levels
const (
	LevelBeginner     = "principiante"
	LevelIntermediate = "intermedio"
	LevelAdvanced     = "avanzado"
)

// StudentProfile represents the learner's level and study history
type StudentProfile struct {
	Name            string    `json:"name,omitempty"`
	Level           string    `json:"level"`
	MasteredTopics  []string  `json:"mastered_topics,omitempty"`
	DifficultyAreas []string  `json:"difficulty_areas,omitempty"`
	Preferences     []string  `json:"preferences,omitempty"`
	LastUpdated     time.Time `json:"last_updated"`
}

// DefaultStudentProfile returns a beginner profile
func DefaultStudentProfile() *StudentProfile {
	return &StudentProfile{Level: LevelBeginner}
}

// StudentProfilePath returns the profile location, honoring XDG_DATA_HOME
func StudentProfilePath() string {
	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		dataHome = xdg.DataHome
	}
	return filepath.Join(dataHome, "tutor", "student_profile.json")
}

// LoadStudentProfile loads the profile from the XDG data directory.
// A missing file yields the default profile.
func LoadStudentProfile() (*StudentProfile, error) {
	data, err := os.ReadFile(StudentProfilePath())
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultStudentProfile(), nil
		}
		return nil, err
	}

	var profile StudentProfile
	if err := json.Unmarshal(data, &profile); err != nil {
		return nil, fmt.Errorf("failed to parse student profile: %w", err)
	}
	if profile.Level == "" {
		profile.Level = LevelBeginner
	}
	return &profile, nil
}

// Save writes the profile to the XDG data directory
func (p *StudentProfile) Save() error {
	path := StudentProfilePath()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	p.LastUpdated = time.Now()
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Merge folds new learner info into the profile without duplicating list entries
func (p *StudentProfile) Merge(newInfo map[string]interface{}) {
	if name, ok := newInfo["name"].(string); ok && name != "" {
		p.Name = name
	}
	if level, ok := newInfo["level"].(string); ok && ValidLevel(level) {
		p.Level = level
	}
	p.MasteredTopics = mergeStrings(p.MasteredTopics, newInfo["mastered_topics"])
	p.DifficultyAreas = mergeStrings(p.DifficultyAreas, newInfo["difficulty_areas"])
	p.Preferences = mergeStrings(p.Preferences, newInfo["preferences"])
	p.LastUpdated = time.Now()
}

// ValidLevel reports whether level is one of the known proficiency levels
func ValidLevel(level string) bool {
	return level == LevelBeginner || level == LevelIntermediate || level == LevelAdvanced
}

func mergeStrings(existing []string, raw interface{}) []string {
	items, ok := raw.([]interface{})
	if !ok {
		return existing
	}
	for _, item := range items {
		s, ok := item.(string)
		if !ok || s == "" || contains(existing, s) {
			continue
		}
		existing = append(existing, s)
	}
	return existing
}

// contains checks if a string slice contains a specific string
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
