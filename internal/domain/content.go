package domain

import "encoding/json"

// ContentType represents the type of content in a message part.
type ContentType string

const (
	ContentTypeText ContentType = "text"
)

// ContentPart represents a single part of message content. The upstream wire
// format carries plain text only, so non-text parts are accepted on the JSON
// edge but contribute nothing to the translated turn.
type ContentPart struct {
	Type ContentType `json:"type"`
	Text string      `json:"text,omitempty"`
}

// MessageContent can be a simple string or an array of ContentParts. This
// keeps compatibility with clients that send either shape.
type MessageContent struct {
	Text  string        // simple text content
	Parts []ContentPart // structured content
}

// IsSimpleText returns true if the content is just plain text.
func (mc *MessageContent) IsSimpleText() bool {
	return len(mc.Parts) == 0
}

// String returns the text content, concatenating all text parts if structured.
func (mc *MessageContent) String() string {
	if mc.IsSimpleText() {
		return mc.Text
	}
	var result string
	for _, part := range mc.Parts {
		if part.Type == ContentTypeText {
			result += part.Text
		}
	}
	return result
}

// MarshalJSON implements json.Marshaler.
func (mc MessageContent) MarshalJSON() ([]byte, error) {
	if mc.IsSimpleText() {
		return json.Marshal(mc.Text)
	}
	return json.Marshal(mc.Parts)
}

// UnmarshalJSON implements json.Unmarshaler.
func (mc *MessageContent) UnmarshalJSON(data []byte) error {
	// Try string first
	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		mc.Text = str
		mc.Parts = nil
		return nil
	}

	// Try array of content parts
	var parts []ContentPart
	if err := json.Unmarshal(data, &parts); err != nil {
		return err
	}
	mc.Parts = parts
	mc.Text = ""
	return nil
}

// NewTextContent creates a simple text content.
func NewTextContent(text string) MessageContent {
	return MessageContent{Text: text}
}
