// Package cursor implements the upstream protocol bridge: identity headers,
// the hand-rolled binary envelope, 5-byte response framing, and the streaming
// parser that turns wire frames back into chat events. The field layout was
// reverse-engineered from the desktop client's traffic; nothing here is
// covered by a published schema.
package cursor

// Credentials is the per-account material the vendor requires on every call.
type Credentials struct {
	// AccessToken may carry a "::"-delimited prefix from the desktop
	// client's session blob; the identity layer strips it.
	AccessToken string
	MachineID   string
	GhostMode   bool
}

// Compression flag byte values observed on the wire. The three gzip variants
// are treated identically on receive; outbound frames use FlagNone or
// FlagGzip only.
const (
	FlagNone     byte = 0x00
	FlagGzip     byte = 0x01
	FlagGzipAlt  byte = 0x02
	FlagGzipBoth byte = 0x03
)

// EventKind discriminates ParsedEvent.
type EventKind int

const (
	// EventText is a plain text delta.
	EventText EventKind = iota
	// EventThinking is a reasoning delta.
	EventThinking
	// EventToolCall is a tool invocation fragment.
	EventToolCall
	// EventError is a terminal upstream or transport error.
	EventError
)

// ToolCallFragment is one incremental piece of a tool invocation. Fragments
// arrive repeatedly for the same ID as arguments stream in; IsLast marks the
// final piece.
type ToolCallFragment struct {
	ID             string
	FunctionName   string
	ArgumentsChunk string
	IsLast         bool
}

// StreamError is a terminal error for one call. Transport marks connection
// level failures as opposed to errors the upstream reported in-band.
// StatusCode is set when the failure came from a non-200 HTTP response and
// zero otherwise.
type StreamError struct {
	Message     string
	StatusCode  int
	IsRateLimit bool
	Transport   bool
}

// ParsedEvent is one logical event decoded from the response stream. Kind
// selects which payload field is meaningful: Text for EventText and
// EventThinking, ToolCall for EventToolCall, Err for EventError.
type ParsedEvent struct {
	Kind     EventKind
	Text     string
	ToolCall *ToolCallFragment
	Err      *StreamError
}
