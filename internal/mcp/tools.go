// ABOUTME: MCP tool definitions and registration for the tutor server
// ABOUTME: Exposes asking, routing, session history, material search and the student profile
package mcp

import (
	"log/slog"

	"github.com/harper/tutor/internal/engine"
	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
)

// RegisterTools registers all MCP tools with the server
func RegisterTools(server *mcpserver.MCPServer, tutor *engine.Engine, logger *slog.Logger) *Handlers {
	handlers := NewHandlers(tutor, logger)

	// 1. ask_tutor - Run a full user turn through the supervisor
	server.AddTool(mcp.Tool{
		Name:        "ask_tutor",
		Description: "Ask the math tutor a question. The supervisor routes it to the math expert, exam creator, evaluator or study planner and returns the consolidated reply.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"message": map[string]interface{}{
					"type":        "string",
					"description": "Student message",
				},
				"session_id": map[string]interface{}{
					"type":        "string",
					"description": "Session to continue; omit to start a new session",
				},
			},
			Required: []string{"message"},
		},
	}, handlers.AskTutor)

	// 2. route_message - Show the routing decision without answering
	server.AddTool(mcp.Tool{
		Name:        "route_message",
		Description: "Show which responder the supervisor would pick for a message, with its rationale, without answering or changing the session.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"message": map[string]interface{}{
					"type":        "string",
					"description": "Student message to route",
				},
				"session_id": map[string]interface{}{
					"type":        "string",
					"description": "Session whose context (last agent, last topic) applies",
				},
			},
			Required: []string{"message"},
		},
	}, handlers.RouteMessage)

	// 3. list_sessions - List persisted tutoring sessions
	server.AddTool(mcp.Tool{
		Name:        "list_sessions",
		Description: "List tutoring sessions, most recent first.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"limit": map[string]interface{}{
					"type":        "number",
					"description": "Maximum number of sessions to return (default: 20)",
					"default":     20,
				},
			},
		},
	}, handlers.ListSessions)

	// 4. get_session_history - Get every recorded dispatch of a session
	server.AddTool(mcp.Tool{
		Name:        "get_session_history",
		Description: "Get the recorded turns of a session, including the routing rationale of each dispatch.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": map[string]interface{}{
					"type":        "string",
					"description": "Session ID to retrieve history for",
				},
			},
			Required: []string{"session_id"},
		},
	}, handlers.GetSessionHistory)

	// 5. search_materials - Search ingested study material
	server.AddTool(mcp.Tool{
		Name:        "search_materials",
		Description: "Search the ingested study material for passages relevant to a query.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Search query",
				},
				"max_results": map[string]interface{}{
					"type":        "number",
					"description": "Maximum number of passages to return (default: 5)",
					"default":     5,
				},
			},
			Required: []string{"query"},
		},
	}, handlers.SearchMaterials)

	// 6. get_student_profile - Get the learner profile
	server.AddTool(mcp.Tool{
		Name:        "get_student_profile",
		Description: "Get the student profile: level, mastered topics, difficulty areas and preferences.",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, handlers.GetStudentProfile)

	// 7. update_student_profile - Update the learner profile directly
	server.AddTool(mcp.Tool{
		Name:        "update_student_profile",
		Description: "Update the student profile. All fields are optional - only provided fields will be updated; list entries are added.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"name": map[string]interface{}{
					"type":        "string",
					"description": "Student's name",
				},
				"level": map[string]interface{}{
					"type":        "string",
					"enum":        []string{"principiante", "intermedio", "avanzado"},
					"description": "Overall level",
				},
				"mastered_topics": map[string]interface{}{
					"type":        "array",
					"items":       map[string]interface{}{"type": "string"},
					"description": "Topics the student has mastered (e.g., 'ecuaciones lineales')",
				},
				"difficulty_areas": map[string]interface{}{
					"type":        "array",
					"items":       map[string]interface{}{"type": "string"},
					"description": "Topics the student struggles with (e.g., 'integrales por partes')",
				},
				"preferences": map[string]interface{}{
					"type":        "array",
					"items":       map[string]interface{}{"type": "string"},
					"description": "Learning preferences (e.g., 'ejemplos paso a paso')",
				},
			},
		},
	}, handlers.UpdateStudentProfile)

	return handlers
}
