package codec

import (
	"encoding/json"

	"github.com/jmswain/switchboard/internal/domain"
)

// StreamMetadata carries the per-stream constants stamped onto every chunk.
type StreamMetadata struct {
	ID      string
	Model   string
	Created int64
}

type chunkDelta struct {
	Role      string                 `json:"role,omitempty"`
	Content   string                 `json:"content,omitempty"`
	Reasoning string                 `json:"reasoning_content,omitempty"`
	ToolCalls []domain.ToolCallChunk `json:"tool_calls,omitempty"`
}

type chunkChoice struct {
	Index        int        `json:"index"`
	Delta        chunkDelta `json:"delta"`
	FinishReason *string    `json:"finish_reason"`
}

type streamChunk struct {
	ID      string        `json:"id"`
	Object  string        `json:"object"`
	Created int64         `json:"created"`
	Model   string        `json:"model"`
	Choices []chunkChoice `json:"choices"`
	Usage   *domain.Usage `json:"usage,omitempty"`
}

// EncodeStreamChunk renders one canonical event as an OpenAI
// chat.completion.chunk. The terminal event carries finish_reason and the
// usage estimate; every other event leaves finish_reason null.
func EncodeStreamChunk(event *domain.CanonicalEvent, meta *StreamMetadata) ([]byte, error) {
	delta := chunkDelta{
		Role:      event.Role,
		Content:   event.ContentDelta,
		Reasoning: event.ThinkingDelta,
	}
	if event.ToolCall != nil {
		delta.ToolCalls = []domain.ToolCallChunk{*event.ToolCall}
	}

	choice := chunkChoice{Index: 0, Delta: delta}
	if event.FinishReason != "" {
		reason := event.FinishReason
		choice.FinishReason = &reason
	}

	chunk := streamChunk{
		ID:      meta.ID,
		Object:  "chat.completion.chunk",
		Created: meta.Created,
		Model:   meta.Model,
		Choices: []chunkChoice{choice},
		Usage:   event.Usage,
	}

	return json.Marshal(chunk)
}
