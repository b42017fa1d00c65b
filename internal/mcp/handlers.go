// ABOUTME: MCP tool handler implementations for the tutor server
// ABOUTME: Tool failures are reported as error results; only protocol problems return Go errors
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/harper/tutor/internal/core"
	"github.com/harper/tutor/internal/engine"
	"github.com/harper/tutor/internal/logging"
	"github.com/harper/tutor/internal/models"
	"github.com/mark3labs/mcp-go/mcp"
)

// Handlers contains the handler functions for all MCP tools
type Handlers struct {
	tutor  *engine.Engine
	logger *slog.Logger
}

// NewHandlers creates handlers over a tutor engine
func NewHandlers(tutor *engine.Engine, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Handlers{tutor: tutor, logger: logger}
}

// AskTutor handles the ask_tutor tool
func (h *Handlers) AskTutor(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	message, err := request.RequireString("message")
	if err != nil {
		return mcp.NewToolResultError("message argument is required and must be a string"), nil
	}
	sessionID := request.GetString("session_id", "")

	reply, err := h.tutor.Ask(ctx, sessionID, message)
	if err != nil {
		if errors.Is(err, core.ErrEmptyUtterance) || errors.Is(err, engine.ErrModelUnavailable) {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultError(fmt.Sprintf("tutor failed: %v", err)), nil
	}

	agents := make([]string, 0, len(reply.Decisions))
	for _, d := range reply.Decisions {
		agents = append(agents, string(d.Target))
	}

	response := map[string]interface{}{
		"session_id":      reply.SessionID,
		"user_turn":       reply.UserTurn,
		"reply":           reply.Text,
		"agents":          agents,
		"guard_triggered": reply.GuardTriggered,
		"passages":        len(reply.Passages),
	}
	return jsonResult(response)
}

// RouteMessage handles the route_message tool
func (h *Handlers) RouteMessage(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	message, err := request.RequireString("message")
	if err != nil {
		return mcp.NewToolResultError("message argument is required and must be a string"), nil
	}
	sessionID := request.GetString("session_id", "")

	decision, err := h.tutor.Route(ctx, sessionID, message)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("routing failed: %v", err)), nil
	}

	return jsonResult(map[string]interface{}{
		"decision": decision,
	})
}

// ListSessions handles the list_sessions tool
func (h *Handlers) ListSessions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := request.GetInt("limit", 20)

	records, err := h.tutor.Sessions(limit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list sessions: %v", err)), nil
	}

	sessions := make([]map[string]interface{}, 0, len(records))
	for _, rec := range records {
		sessions = append(sessions, map[string]interface{}{
			"session_id": rec.SessionID,
			"title":      rec.Title,
			"last_topic": rec.LastTopic,
			"status":     string(rec.Status),
			"user_turns": rec.UserTurns,
			"turn_count": rec.TurnCount,
			"updated_at": rec.UpdatedAt.Format(time.RFC3339),
		})
	}

	return jsonResult(map[string]interface{}{
		"sessions": sessions,
	})
}

// GetSessionHistory handles the get_session_history tool
func (h *Handlers) GetSessionHistory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, err := request.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError("session_id argument is required and must be a string"), nil
	}

	rec, err := h.tutor.Transcript(sessionID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to get session: %v", err)), nil
	}
	if rec == nil {
		return mcp.NewToolResultError(fmt.Sprintf("session %s not found", sessionID)), nil
	}

	turns := make([]map[string]interface{}, 0, len(rec.Turns))
	for _, turn := range rec.Turns {
		turns = append(turns, map[string]interface{}{
			"turn_id":     turn.TurnID,
			"user_turn":   turn.UserTurn,
			"cycle":       turn.Cycle,
			"timestamp":   turn.Timestamp.Format(time.RFC3339),
			"utterance":   turn.Utterance,
			"agent":       string(turn.Agent),
			"rationale":   turn.Rationale,
			"artifact":    turn.Artifact,
			"satisfied":   turn.Satisfied,
			"annotations": turn.Annotations,
		})
	}

	return jsonResult(map[string]interface{}{
		"session_id": rec.SessionID,
		"title":      rec.Title,
		"last_topic": rec.LastTopic,
		"turns":      turns,
	})
}

// SearchMaterials handles the search_materials tool
func (h *Handlers) SearchMaterials(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := request.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError("query argument is required and must be a string"), nil
	}
	maxResults := request.GetInt("max_results", 5)

	passages, err := h.tutor.Search(ctx, query, maxResults)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
	}
	if passages == nil {
		passages = []models.Passage{}
	}

	return jsonResult(map[string]interface{}{
		"passages": passages,
	})
}

// GetStudentProfile handles the get_student_profile tool
func (h *Handlers) GetStudentProfile(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	profile, err := h.tutor.Profile()
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to load profile: %v", err)), nil
	}

	return jsonResult(map[string]interface{}{
		"profile": profileView(profile),
	})
}

// UpdateStudentProfile handles the update_student_profile tool
func (h *Handlers) UpdateStudentProfile(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	updateInfo := make(map[string]interface{})

	if name := request.GetString("name", ""); name != "" {
		updateInfo["name"] = name
	}
	if level := request.GetString("level", ""); level != "" {
		if !models.ValidLevel(level) {
			return mcp.NewToolResultError(fmt.Sprintf("invalid level %q", level)), nil
		}
		updateInfo["level"] = level
	}

	// Type assert Arguments to map for array access
	if args, ok := request.Params.Arguments.(map[string]any); ok {
		for _, key := range []string{"mastered_topics", "difficulty_areas", "preferences"} {
			if raw, exists := args[key]; exists {
				if items, ok := raw.([]interface{}); ok {
					updateInfo[key] = items
				}
			}
		}
	}

	profile, err := h.tutor.UpdateProfile(updateInfo)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to update profile: %v", err)), nil
	}

	return jsonResult(map[string]interface{}{
		"success": true,
		"profile": profileView(profile),
	})
}

// Shutdown waits for all pending background profile updates to complete
func (h *Handlers) Shutdown() {
	h.logger.Info("waiting for pending profile updates")
	h.tutor.Wait()
	h.logger.Info("profile updates completed")
}

func profileView(p *models.StudentProfile) map[string]interface{} {
	view := map[string]interface{}{
		"name":             p.Name,
		"level":            p.Level,
		"mastered_topics":  nonNil(p.MasteredTopics),
		"difficulty_areas": nonNil(p.DifficultyAreas),
		"preferences":      nonNil(p.Preferences),
	}
	if !p.LastUpdated.IsZero() {
		view["last_updated"] = p.LastUpdated.Format(time.RFC3339)
	}
	return view
}

func nonNil(items []string) []string {
	if items == nil {
		return []string{}
	}
	return items
}

func jsonResult(response map[string]interface{}) (*mcp.CallToolResult, error) {
	responseJSON, err := json.Marshal(response)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal response: %v", err)), nil
	}
	return mcp.NewToolResultText(string(responseJSON)), nil
}
