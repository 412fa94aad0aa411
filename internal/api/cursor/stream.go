package cursor

import (
	"encoding/json"
	"log/slog"
	"strings"

	"google.golang.org/protobuf/encoding/protowire"
)

// Response message field numbers. A frame payload is one message carrying at
// least one of these; unknown fields are skipped.
const (
	fieldResponseText     protowire.Number = 1
	fieldResponseToolCall protowire.Number = 13
	fieldResponseThinking protowire.Number = 22
)

// Tool-call fragment field numbers.
const (
	fieldFragmentCallID protowire.Number = 1
	fieldFragmentName   protowire.Number = 2
	fieldFragmentArgs   protowire.Number = 3
	fieldFragmentIsLast protowire.Number = 4
)

// Thinking message field numbers.
const (
	fieldThinkingText protowire.Number = 1
)

// StreamParser reassembles frames from arbitrary transport chunks and
// decodes them into logical events. One parser serves exactly one call; it
// is not safe for concurrent use and does not need to be.
type StreamParser struct {
	buf    []byte
	done   bool
	logger *slog.Logger
}

// NewStreamParser returns a parser ready to accept the first chunk.
func NewStreamParser(logger *slog.Logger) *StreamParser {
	if logger == nil {
		logger = slog.Default()
	}
	return &StreamParser{logger: logger}
}

// Terminated reports whether the parser has seen a terminal error event.
// Once terminated, Push consumes nothing.
func (p *StreamParser) Terminated() bool {
	return p.done
}

// Push appends chunk to the parse buffer and drains every complete frame
// from it. Partial frames stay buffered byte-for-byte until the next Push.
// A JSON error frame is terminal: it yields exactly one error event and no
// frame after it is parsed. A frame that fails message-level decode is
// logged and skipped; the stream continues.
func (p *StreamParser) Push(chunk []byte) []ParsedEvent {
	if p.done {
		return nil
	}
	p.buf = append(p.buf, chunk...)

	var events []ParsedEvent
	for {
		flag, payload, rest, ok, err := SplitFrame(p.buf)
		if err != nil {
			p.terminate()
			return append(events, ParsedEvent{
				Kind: EventError,
				Err:  &StreamError{Message: err.Error(), Transport: true},
			})
		}
		if !ok {
			break
		}
		p.buf = rest

		body, err := Decompress(payload, flag)
		if err != nil {
			p.logger.Warn("skipping undecodable frame",
				slog.Int("flag", int(flag)),
				slog.Int("size", len(payload)),
				slog.String("error", err.Error()))
			continue
		}

		if isJSONObject(body) {
			p.terminate()
			return append(events, decodeErrorBody(body))
		}

		frameEvents, err := decodeResponseMessage(body)
		if err != nil {
			p.logger.Warn("skipping undecodable frame",
				slog.Int("flag", int(flag)),
				slog.Int("size", len(body)),
				slog.String("error", err.Error()))
			continue
		}
		events = append(events, frameEvents...)
	}
	return events
}

func (p *StreamParser) terminate() {
	p.done = true
	p.buf = nil
}

// decodeErrorBody turns an upstream JSON error object into a terminal error
// event. The error value may be a bare string or a nested object; rate-limit
// classification is by message content since the upstream reports no
// structured code for it.
func decodeErrorBody(body []byte) ParsedEvent {
	message := extractErrorMessage(body)
	return ParsedEvent{
		Kind: EventError,
		Err: &StreamError{
			Message:     message,
			IsRateLimit: looksRateLimited(message),
		},
	}
}

func extractErrorMessage(body []byte) string {
	var envelope struct {
		Error json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil || len(envelope.Error) == 0 {
		return strings.TrimSpace(string(body))
	}

	var asString string
	if err := json.Unmarshal(envelope.Error, &asString); err == nil {
		return asString
	}

	var asObject struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(envelope.Error, &asObject); err == nil {
		switch {
		case asObject.Message != "" && asObject.Code != "":
			return asObject.Code + ": " + asObject.Message
		case asObject.Message != "":
			return asObject.Message
		case asObject.Code != "":
			return asObject.Code
		}
	}
	return strings.TrimSpace(string(envelope.Error))
}

func looksRateLimited(message string) bool {
	m := strings.ToLower(message)
	return strings.Contains(m, "rate limit") ||
		strings.Contains(m, "rate_limit") ||
		strings.Contains(m, "resource_exhausted") ||
		strings.Contains(m, "quota") ||
		strings.Contains(m, "too many requests")
}

// decodeResponseMessage walks the fields of one decompressed frame payload.
// An empty payload is a keepalive and yields no events.
func decodeResponseMessage(body []byte) ([]ParsedEvent, error) {
	var events []ParsedEvent
	rest := body
	for len(rest) > 0 {
		num, typ, n := protowire.ConsumeTag(rest)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		rest = rest[n:]

		switch {
		case num == fieldResponseText && typ == protowire.BytesType:
			text, n := protowire.ConsumeString(rest)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			rest = rest[n:]
			events = append(events, ParsedEvent{Kind: EventText, Text: text})

		case num == fieldResponseToolCall && typ == protowire.BytesType:
			raw, n := protowire.ConsumeBytes(rest)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			rest = rest[n:]
			frag, err := decodeToolCallFragment(raw)
			if err != nil {
				return nil, err
			}
			events = append(events, ParsedEvent{Kind: EventToolCall, ToolCall: frag})

		case num == fieldResponseThinking && typ == protowire.BytesType:
			raw, n := protowire.ConsumeBytes(rest)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			rest = rest[n:]
			text, err := decodeThinking(raw)
			if err != nil {
				return nil, err
			}
			events = append(events, ParsedEvent{Kind: EventThinking, Text: text})

		default:
			n := protowire.ConsumeFieldValue(num, typ, rest)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			rest = rest[n:]
		}
	}
	return events, nil
}

func decodeToolCallFragment(raw []byte) (*ToolCallFragment, error) {
	frag := &ToolCallFragment{}
	rest := raw
	for len(rest) > 0 {
		num, typ, n := protowire.ConsumeTag(rest)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		rest = rest[n:]

		switch {
		case num == fieldFragmentCallID && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(rest)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			rest = rest[n:]
			frag.ID = v
		case num == fieldFragmentName && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(rest)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			rest = rest[n:]
			frag.FunctionName = v
		case num == fieldFragmentArgs && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(rest)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			rest = rest[n:]
			frag.ArgumentsChunk = v
		case num == fieldFragmentIsLast && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(rest)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			rest = rest[n:]
			frag.IsLast = v != 0
		default:
			n := protowire.ConsumeFieldValue(num, typ, rest)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			rest = rest[n:]
		}
	}
	return frag, nil
}

func decodeThinking(raw []byte) (string, error) {
	var text string
	rest := raw
	for len(rest) > 0 {
		num, typ, n := protowire.ConsumeTag(rest)
		if n < 0 {
			return "", protowire.ParseError(n)
		}
		rest = rest[n:]

		if num == fieldThinkingText && typ == protowire.BytesType {
			v, n := protowire.ConsumeString(rest)
			if n < 0 {
				return "", protowire.ParseError(n)
			}
			rest = rest[n:]
			text += v
			continue
		}

		n = protowire.ConsumeFieldValue(num, typ, rest)
		if n < 0 {
			return "", protowire.ParseError(n)
		}
		rest = rest[n:]
	}
	return text, nil
}

// EncodeResponseText builds a response frame payload carrying a text delta.
// The client only decodes responses in production; the encoder halves exist
// for the test harnesses that stand in for the upstream.
func EncodeResponseText(text string) []byte {
	return AppendStringField(nil, fieldResponseText, text)
}

// EncodeResponseThinking builds a response frame payload carrying a thinking
// delta.
func EncodeResponseThinking(text string) []byte {
	inner := AppendStringField(nil, fieldThinkingText, text)
	return AppendBytesField(nil, fieldResponseThinking, inner)
}

// EncodeResponseToolCall builds a response frame payload carrying one
// tool-call fragment.
func EncodeResponseToolCall(frag ToolCallFragment) []byte {
	var inner []byte
	if frag.ID != "" {
		inner = AppendStringField(inner, fieldFragmentCallID, frag.ID)
	}
	if frag.FunctionName != "" {
		inner = AppendStringField(inner, fieldFragmentName, frag.FunctionName)
	}
	inner = AppendStringField(inner, fieldFragmentArgs, frag.ArgumentsChunk)
	if frag.IsLast {
		inner = AppendVarintField(inner, fieldFragmentIsLast, 1)
	}
	return AppendBytesField(nil, fieldResponseToolCall, inner)
}
