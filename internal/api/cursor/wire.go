package cursor

import (
	"runtime"
	"time"

	"google.golang.org/protobuf/encoding/protowire"
)

// Envelope field numbers. The upstream decoder is order-sensitive, so every
// builder emits its fields in exactly the order listed here; gaps are fields
// the desktop client sends that the bridge has no use for.
const (
	fieldEnvelopeTurn     protowire.Number = 2
	fieldEnvelopeSettings protowire.Number = 5
	fieldEnvelopeModel    protowire.Number = 7
	fieldEnvelopeTool     protowire.Number = 16
	fieldEnvelopeMetadata protowire.Number = 26
)

// Conversation turn field numbers.
const (
	fieldTurnContent        protowire.Number = 1
	fieldTurnRole           protowire.Number = 2
	fieldTurnMessageID      protowire.Number = 13
	fieldTurnToolResult     protowire.Number = 18
	fieldTurnAgentic        protowire.Number = 29
	fieldTurnMode           protowire.Number = 31
	fieldTurnSupportedTools protowire.Number = 46
)

// Tool result field numbers.
const (
	fieldToolResultCallID protowire.Number = 1
	fieldToolResultName   protowire.Number = 2
	fieldToolResultIndex  protowire.Number = 3
	fieldToolResultArgs   protowire.Number = 4
)

// Tool declaration field numbers.
const (
	fieldToolDeclName        protowire.Number = 1
	fieldToolDeclDescription protowire.Number = 2
	fieldToolDeclSchema      protowire.Number = 3
	fieldToolDeclServerTag   protowire.Number = 4
)

// Model selector field numbers. Field 4 is a deliberate empty marker the
// upstream rejects requests without.
const (
	fieldModelName        protowire.Number = 1
	fieldModelEmptyMarker protowire.Number = 4
)

// Client metadata field numbers.
const (
	fieldMetaPlatform  protowire.Number = 1
	fieldMetaArch      protowire.Number = 2
	fieldMetaRuntime   protowire.Number = 3
	fieldMetaWorkdir   protowire.Number = 4
	fieldMetaTimestamp protowire.Number = 5
)

// Settings block field numbers. The path literal and the two flag values are
// fixed; the upstream checks them but ignores their content.
const (
	fieldSettingsPath    protowire.Number = 1
	fieldSettingsMarkerA protowire.Number = 2
	fieldSettingsMarkerB protowire.Number = 3
	fieldSettingsFlagA   protowire.Number = 8
	fieldSettingsFlagB   protowire.Number = 9
)

const (
	settingsPathLiteral = "/"
	toolServerTag       = "local"

	modeChat  uint64 = 1
	modeAgent uint64 = 2
)

// TurnRole is the wire value for a conversation role.
type TurnRole uint64

const (
	RoleUser      TurnRole = 1
	RoleAssistant TurnRole = 2
	RoleSystem    TurnRole = 3
)

// Turn is one conversation turn as the encoder consumes it. The translator
// in the provider layer produces these from external chat messages.
type Turn struct {
	Content     string
	Role        TurnRole
	MessageID   string
	ToolResults []ToolResult
	IsLast      bool
}

// ToolResult is a completed tool invocation echoed back to the upstream.
type ToolResult struct {
	CallID    string
	Name      string
	Index     int
	Arguments string // raw JSON
}

// ToolDecl is a tool declaration in the single normalized shape the wire
// layer accepts.
type ToolDecl struct {
	Name        string
	Description string
	Schema      string // JSON-serialized parameter schema
}

// ChatRequest is the full outbound envelope before framing.
type ChatRequest struct {
	Turns   []Turn
	Model   string
	Tools   []ToolDecl
	Workdir string

	// Timestamp stamps the client metadata block; the zero value means now.
	Timestamp time.Time
}

// AppendVarint appends v as a base-128 little-endian varint.
func AppendVarint(dst []byte, v uint64) []byte {
	return protowire.AppendVarint(dst, v)
}

// ConsumeVarint decodes a varint from the front of b, returning the value and
// the number of bytes read. n < 0 marks malformed input.
func ConsumeVarint(b []byte) (uint64, int) {
	return protowire.ConsumeVarint(b)
}

// AppendVarintField appends tag (fieldNumber<<3 | VARINT) then the value.
func AppendVarintField(dst []byte, num protowire.Number, v uint64) []byte {
	dst = protowire.AppendTag(dst, num, protowire.VarintType)
	return protowire.AppendVarint(dst, v)
}

// AppendBytesField appends tag (fieldNumber<<3 | LENGTH_DELIMITED), a varint
// byte length, then the raw bytes.
func AppendBytesField(dst []byte, num protowire.Number, v []byte) []byte {
	dst = protowire.AppendTag(dst, num, protowire.BytesType)
	return protowire.AppendBytes(dst, v)
}

// AppendStringField appends a length-delimited UTF-8 string field.
func AppendStringField(dst []byte, num protowire.Number, s string) []byte {
	dst = protowire.AppendTag(dst, num, protowire.BytesType)
	return protowire.AppendString(dst, s)
}

// EncodeChatRequest assembles the outbound envelope: turns, the fixed
// settings block, the model selector, tool declarations, and client
// metadata, in that order.
func EncodeChatRequest(req ChatRequest) []byte {
	hasTools := len(req.Tools) > 0

	var out []byte
	for _, turn := range req.Turns {
		out = AppendBytesField(out, fieldEnvelopeTurn, encodeTurn(turn, hasTools))
	}
	out = AppendBytesField(out, fieldEnvelopeSettings, encodeSettings())
	out = AppendBytesField(out, fieldEnvelopeModel, encodeModelSelector(req.Model))
	for _, tool := range req.Tools {
		out = AppendBytesField(out, fieldEnvelopeTool, encodeToolDecl(tool))
	}
	out = AppendBytesField(out, fieldEnvelopeMetadata, encodeMetadata(req.Workdir, req.Timestamp))
	return out
}

func encodeTurn(turn Turn, hasTools bool) []byte {
	var out []byte
	out = AppendStringField(out, fieldTurnContent, turn.Content)
	out = AppendVarintField(out, fieldTurnRole, uint64(turn.Role))
	if turn.MessageID != "" {
		out = AppendStringField(out, fieldTurnMessageID, turn.MessageID)
	}
	for _, tr := range turn.ToolResults {
		out = AppendBytesField(out, fieldTurnToolResult, encodeToolResult(tr))
	}
	if hasTools {
		out = AppendVarintField(out, fieldTurnAgentic, 1)
		out = AppendVarintField(out, fieldTurnMode, modeAgent)
	} else {
		out = AppendVarintField(out, fieldTurnMode, modeChat)
	}
	if turn.IsLast && hasTools {
		out = AppendVarintField(out, fieldTurnSupportedTools, 1)
	}
	return out
}

func encodeToolResult(tr ToolResult) []byte {
	var out []byte
	out = AppendStringField(out, fieldToolResultCallID, tr.CallID)
	out = AppendStringField(out, fieldToolResultName, tr.Name)
	out = AppendVarintField(out, fieldToolResultIndex, uint64(tr.Index))
	out = AppendStringField(out, fieldToolResultArgs, tr.Arguments)
	return out
}

func encodeToolDecl(tool ToolDecl) []byte {
	var out []byte
	out = AppendStringField(out, fieldToolDeclName, tool.Name)
	if tool.Description != "" {
		out = AppendStringField(out, fieldToolDeclDescription, tool.Description)
	}
	out = AppendStringField(out, fieldToolDeclSchema, tool.Schema)
	out = AppendStringField(out, fieldToolDeclServerTag, toolServerTag)
	return out
}

func encodeModelSelector(name string) []byte {
	var out []byte
	out = AppendStringField(out, fieldModelName, name)
	// deliberate empty marker, not an omitted optional
	out = AppendBytesField(out, fieldModelEmptyMarker, nil)
	return out
}

func encodeMetadata(workdir string, ts time.Time) []byte {
	if ts.IsZero() {
		ts = time.Now()
	}
	var out []byte
	out = AppendStringField(out, fieldMetaPlatform, platformName())
	out = AppendStringField(out, fieldMetaArch, archName())
	out = AppendStringField(out, fieldMetaRuntime, runtime.Version())
	if workdir != "" {
		out = AppendStringField(out, fieldMetaWorkdir, workdir)
	}
	out = AppendStringField(out, fieldMetaTimestamp, ts.UTC().Format(time.RFC3339))
	return out
}

func encodeSettings() []byte {
	var out []byte
	out = AppendStringField(out, fieldSettingsPath, settingsPathLiteral)
	out = AppendBytesField(out, fieldSettingsMarkerA, nil)
	out = AppendBytesField(out, fieldSettingsMarkerB, nil)
	out = AppendVarintField(out, fieldSettingsFlagA, 1)
	out = AppendVarintField(out, fieldSettingsFlagB, 1)
	return out
}
