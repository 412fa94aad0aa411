// Package tokens estimates token usage for chat calls. The upstream protocol
// reports no usage figures at all, so every count the switchboard emits is an
// estimate computed here.
package tokens

import (
	"encoding/json"
	"strings"
	"sync"

	"github.com/tiktoken-go/tokenizer"

	"github.com/jmswain/switchboard/internal/domain"
)

// Message overheads follow OpenAI's published chat format accounting:
// 3 tokens per message plus 1 for the role, 3 tokens priming the reply.
const (
	tokensPerMessage = 3
	tokensPerRole    = 1
	tokensPerTool    = 7
	replyPriming     = 3
	charsPerToken    = 4
)

// Counter estimates token counts with tiktoken where an encoding fits the
// model and a chars/4 heuristic otherwise. Safe for concurrent use.
type Counter struct {
	mu     sync.RWMutex
	codecs map[tokenizer.Encoding]tokenizer.Codec
}

// NewCounter creates a counter with an empty codec cache.
func NewCounter() *Counter {
	return &Counter{codecs: make(map[tokenizer.Encoding]tokenizer.Codec)}
}

// CountText counts tokens in a plain string.
func (c *Counter) CountText(model, text string) int {
	if text == "" {
		return 0
	}
	codec, err := c.codec(model)
	if err != nil {
		return len(text) / charsPerToken
	}
	ids, _, err := codec.Encode(text)
	if err != nil {
		return len(text) / charsPerToken
	}
	return len(ids)
}

// CountRequest estimates the prompt-side token count for one call: all
// messages, prior tool calls, and tool declarations.
func (c *Counter) CountRequest(req *domain.CanonicalRequest) int {
	total := 0
	for _, msg := range req.Messages {
		total += tokensPerMessage + tokensPerRole
		total += c.CountText(req.Model, msg.Content.String())
		for _, tc := range msg.ToolCalls {
			total += c.CountText(req.Model, tc.Function.Name)
			total += c.CountText(req.Model, tc.Function.Arguments)
			total += tokensPerMessage
		}
	}
	for _, tool := range req.Tools {
		total += c.CountText(req.Model, tool.Name)
		total += c.CountText(req.Model, tool.Description)
		if tool.ParameterSchema != nil {
			if raw, err := json.Marshal(tool.ParameterSchema); err == nil {
				total += c.CountText(req.Model, string(raw))
			}
		}
		total += tokensPerTool
	}
	return total + replyPriming
}

// CountCompletion estimates the completion-side token count for an assembled
// assistant message.
func (c *Counter) CountCompletion(model string, msg domain.AssistantMessage) int {
	total := c.CountText(model, msg.Content)
	total += c.CountText(model, msg.Reasoning)
	for _, tc := range msg.ToolCalls {
		total += c.CountText(model, tc.Function.Name)
		total += c.CountText(model, tc.Function.Arguments)
		total += tokensPerMessage
	}
	return total
}

func (c *Counter) codec(model string) (tokenizer.Codec, error) {
	encoding := modelEncoding(model)

	c.mu.RLock()
	cached, ok := c.codecs[encoding]
	c.mu.RUnlock()
	if ok {
		return cached, nil
	}

	codec, err := tokenizer.Get(encoding)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.codecs[encoding] = codec
	c.mu.Unlock()
	return codec, nil
}

// modelEncoding maps model names onto tiktoken encodings. The upstream serves
// Anthropic and Google models under their public names too; their
// vocabularies aren't published, so o200k_base stands in for those.
func modelEncoding(model string) tokenizer.Encoding {
	model = strings.ToLower(model)
	switch {
	case strings.HasPrefix(model, "gpt-4.1"),
		strings.HasPrefix(model, "gpt-4o"),
		strings.HasPrefix(model, "gpt-5"),
		strings.HasPrefix(model, "o1"),
		strings.HasPrefix(model, "o3"),
		strings.HasPrefix(model, "o4"):
		return tokenizer.O200kBase
	case strings.HasPrefix(model, "gpt-4"), strings.HasPrefix(model, "gpt-3.5"):
		return tokenizer.Cl100kBase
	default:
		return tokenizer.O200kBase
	}
}
