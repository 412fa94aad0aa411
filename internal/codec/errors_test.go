package codec

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jmswain/switchboard/internal/domain"
)

func TestToCanonicalError(t *testing.T) {
	tests := []struct {
		name         string
		err          error
		expectedType domain.ErrorType
		expectedMsg  string
	}{
		{
			name:         "domain APIError passes through",
			err:          domain.ErrInvalidRequest("bad request"),
			expectedType: domain.ErrorTypeInvalidRequest,
			expectedMsg:  "bad request",
		},
		{
			name:         "regular error becomes server error",
			err:          errors.New("something went wrong"),
			expectedType: domain.ErrorTypeServer,
			expectedMsg:  "something went wrong",
		},
		{
			name:         "rate limit error passes through",
			err:          domain.ErrUpstreamRateLimited("too many requests"),
			expectedType: domain.ErrorTypeRateLimit,
			expectedMsg:  "too many requests",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ToCanonicalError(tt.err)
			if result.Type != tt.expectedType {
				t.Errorf("Type = %v, want %v", result.Type, tt.expectedType)
			}
			if result.Message != tt.expectedMsg {
				t.Errorf("Message = %v, want %v", result.Message, tt.expectedMsg)
			}
		})
	}
}

func TestWriteError(t *testing.T) {
	tests := []struct {
		name           string
		err            error
		expectedStatus int
		expectedType   string
		expectedCode   string
	}{
		{
			name:           "invalid credential",
			err:            domain.ErrInvalidCredential("empty access token"),
			expectedStatus: http.StatusUnauthorized,
			expectedType:   "authentication_error",
			expectedCode:   "invalid_credential",
		},
		{
			name:           "upstream rate limited",
			err:            domain.ErrUpstreamRateLimited("resource_exhausted"),
			expectedStatus: http.StatusTooManyRequests,
			expectedType:   "rate_limit_error",
			expectedCode:   "upstream_rate_limited",
		},
		{
			name:           "upstream rejected carries vendor message",
			err:            domain.ErrUpstreamRejected("model is not supported"),
			expectedStatus: http.StatusBadRequest,
			expectedType:   "invalid_request_error",
			expectedCode:   "upstream_rejected",
		},
		{
			name:           "transport failure",
			err:            domain.ErrTransportFailure("connection reset"),
			expectedStatus: http.StatusInternalServerError,
			expectedType:   "server_error",
			expectedCode:   "transport_failure",
		},
		{
			name:           "no accounts",
			err:            domain.ErrNoAccounts("every account is cooling down"),
			expectedStatus: http.StatusTooManyRequests,
			expectedType:   "rate_limit_error",
			expectedCode:   "no_accounts_available",
		},
		{
			name:           "plain error",
			err:            errors.New("boom"),
			expectedStatus: http.StatusInternalServerError,
			expectedType:   "server_error",
			expectedCode:   "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			WriteError(w, tt.err)

			if w.Code != tt.expectedStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.expectedStatus)
			}
			if ct := w.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("content-type = %q, want application/json", ct)
			}

			var envelope struct {
				Error struct {
					Message string `json:"message"`
					Type    string `json:"type"`
					Code    string `json:"code"`
				} `json:"error"`
			}
			if err := json.Unmarshal(w.Body.Bytes(), &envelope); err != nil {
				t.Fatalf("unmarshal body: %v", err)
			}
			if envelope.Error.Type != tt.expectedType {
				t.Errorf("error.type = %q, want %q", envelope.Error.Type, tt.expectedType)
			}
			if envelope.Error.Code != tt.expectedCode {
				t.Errorf("error.code = %q, want %q", envelope.Error.Code, tt.expectedCode)
			}
			if envelope.Error.Message == "" {
				t.Error("error.message is empty")
			}
		})
	}
}

func TestEncodeStreamChunk(t *testing.T) {
	meta := &StreamMetadata{ID: "chatcmpl-test", Model: "gpt-5", Created: 1700000000}

	t.Run("content delta", func(t *testing.T) {
		data, err := EncodeStreamChunk(&domain.CanonicalEvent{ContentDelta: "Hello"}, meta)
		if err != nil {
			t.Fatalf("EncodeStreamChunk() error = %v", err)
		}

		var chunk map[string]any
		if err := json.Unmarshal(data, &chunk); err != nil {
			t.Fatalf("unmarshal chunk: %v", err)
		}
		if chunk["object"] != "chat.completion.chunk" {
			t.Errorf("object = %v", chunk["object"])
		}
		if chunk["id"] != "chatcmpl-test" || chunk["model"] != "gpt-5" {
			t.Errorf("metadata not stamped: %v", chunk)
		}

		choices := chunk["choices"].([]any)
		choice := choices[0].(map[string]any)
		delta := choice["delta"].(map[string]any)
		if delta["content"] != "Hello" {
			t.Errorf("delta.content = %v, want Hello", delta["content"])
		}
		if choice["finish_reason"] != nil {
			t.Errorf("finish_reason = %v, want null", choice["finish_reason"])
		}
	})

	t.Run("tool call delta", func(t *testing.T) {
		tc := &domain.ToolCallChunk{Index: 0, ID: "call_1", Type: "function"}
		tc.Function.Name = "read_file"
		tc.Function.Arguments = `{"path":`

		data, err := EncodeStreamChunk(&domain.CanonicalEvent{ToolCall: tc}, meta)
		if err != nil {
			t.Fatalf("EncodeStreamChunk() error = %v", err)
		}

		var chunk struct {
			Choices []struct {
				Delta struct {
					ToolCalls []domain.ToolCallChunk `json:"tool_calls"`
				} `json:"delta"`
			} `json:"choices"`
		}
		if err := json.Unmarshal(data, &chunk); err != nil {
			t.Fatalf("unmarshal chunk: %v", err)
		}
		calls := chunk.Choices[0].Delta.ToolCalls
		if len(calls) != 1 {
			t.Fatalf("tool_calls len = %d, want 1", len(calls))
		}
		if calls[0].ID != "call_1" || calls[0].Function.Arguments != `{"path":` {
			t.Errorf("tool call = %+v", calls[0])
		}
	})

	t.Run("terminal chunk", func(t *testing.T) {
		event := &domain.CanonicalEvent{
			FinishReason: "stop",
			Usage:        &domain.Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
		}
		data, err := EncodeStreamChunk(event, meta)
		if err != nil {
			t.Fatalf("EncodeStreamChunk() error = %v", err)
		}

		var chunk struct {
			Choices []struct {
				FinishReason *string `json:"finish_reason"`
			} `json:"choices"`
			Usage *domain.Usage `json:"usage"`
		}
		if err := json.Unmarshal(data, &chunk); err != nil {
			t.Fatalf("unmarshal chunk: %v", err)
		}
		if chunk.Choices[0].FinishReason == nil || *chunk.Choices[0].FinishReason != "stop" {
			t.Errorf("finish_reason = %v, want stop", chunk.Choices[0].FinishReason)
		}
		if chunk.Usage == nil || chunk.Usage.TotalTokens != 15 {
			t.Errorf("usage = %+v, want total 15", chunk.Usage)
		}
	})
}
