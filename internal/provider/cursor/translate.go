package cursor

import (
	"encoding/json"
	"strings"

	"github.com/google/uuid"

	cursorapi "github.com/jmswain/switchboard/internal/api/cursor"
	"github.com/jmswain/switchboard/internal/domain"
)

// buildTurns maps the external message list 1:1 onto wire turns, preserving
// order. A tool-result message rides as a user-role turn carrying the result
// struct; its function name and index are recovered from the assistant turn
// that issued the call. The final turn is marked last.
func buildTurns(messages []domain.ChatMessage) []cursorapi.Turn {
	type callOrigin struct {
		name  string
		index int
	}
	calls := make(map[string]callOrigin)

	turns := make([]cursorapi.Turn, 0, len(messages))
	for _, msg := range messages {
		turn := cursorapi.Turn{
			Content:   msg.Content.String(),
			Role:      wireRole(msg.Role),
			MessageID: uuid.NewString(),
		}

		switch msg.Role {
		case "assistant":
			for i, tc := range msg.ToolCalls {
				calls[tc.ID] = callOrigin{name: tc.Function.Name, index: i}
			}
		case "tool":
			origin := calls[msg.ToolCallID]
			turn.ToolResults = []cursorapi.ToolResult{{
				CallID:    msg.ToolCallID,
				Name:      origin.name,
				Index:     origin.index,
				Arguments: msg.Content.String(),
			}}
		}

		turns = append(turns, turn)
	}

	if len(turns) > 0 {
		turns[len(turns)-1].IsLast = true
	}
	return turns
}

func wireRole(role string) cursorapi.TurnRole {
	switch role {
	case "assistant":
		return cursorapi.RoleAssistant
	case "system", "developer":
		return cursorapi.RoleSystem
	default:
		// user, tool, and anything unrecognized present as the user
		return cursorapi.RoleUser
	}
}

// buildTools serializes normalized declarations into wire declarations. A
// missing parameter schema becomes the empty object; the upstream rejects
// declarations without one.
func buildTools(tools []domain.ToolDeclaration) []cursorapi.ToolDecl {
	if len(tools) == 0 {
		return nil
	}
	out := make([]cursorapi.ToolDecl, 0, len(tools))
	for _, tool := range tools {
		schema := "{}"
		if tool.ParameterSchema != nil {
			if raw, err := json.Marshal(tool.ParameterSchema); err == nil {
				schema = string(raw)
			}
		}
		out = append(out, cursorapi.ToolDecl{
			Name:        tool.Name,
			Description: tool.Description,
			Schema:      schema,
		})
	}
	return out
}

// effortModel folds the requested reasoning effort into the model name. The
// upstream has no request field for effort; it serves effort levels as
// model-name variants.
func effortModel(model, effort string) string {
	if effort == "" {
		return model
	}
	suffix := "-" + effort
	if strings.HasSuffix(model, suffix) {
		return model
	}
	return model + suffix
}
