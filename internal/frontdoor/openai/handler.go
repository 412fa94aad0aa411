// Package openai serves the switchboard's HTTP surface in the OpenAI chat
// completion dialect. The handler picks an account per call, binds its
// credentials to the request, drives the provider, and writes either a single
// JSON body or a flushed SSE stream back to the client.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/jmswain/switchboard/internal/accounts"
	"github.com/jmswain/switchboard/internal/codec"
	"github.com/jmswain/switchboard/internal/domain"
	"github.com/jmswain/switchboard/internal/server"
	"github.com/jmswain/switchboard/internal/usage"
)

// defaultModels is served from /v1/models when the upstream listing cannot be
// reached. The ids mirror what the vendor exposes to its own client.
var defaultModels = []domain.Model{
	{ID: "claude-4-sonnet", Object: "model", OwnedBy: "cursor"},
	{ID: "claude-4.5-sonnet", Object: "model", OwnedBy: "cursor"},
	{ID: "claude-4.5-haiku", Object: "model", OwnedBy: "cursor"},
	{ID: "gpt-5", Object: "model", OwnedBy: "cursor"},
	{ID: "o3", Object: "model", OwnedBy: "cursor"},
	{ID: "gemini-2.5-pro", Object: "model", OwnedBy: "cursor"},
	{ID: "deepseek-v3.1", Object: "model", OwnedBy: "cursor"},
}

// Handler serves the OpenAI-dialect endpoints.
type Handler struct {
	provider domain.Provider
	accounts *accounts.Registry
	recorder usage.Recorder
	fallback []domain.Model
	logger   *slog.Logger
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithRecorder sets the usage ledger. Defaults to a no-op recorder.
func WithRecorder(rec usage.Recorder) HandlerOption {
	return func(h *Handler) {
		h.recorder = rec
	}
}

// WithFallbackModels overrides the static model list served when the
// upstream listing fails.
func WithFallbackModels(models []domain.Model) HandlerOption {
	return func(h *Handler) {
		h.fallback = models
	}
}

// WithLogger sets the handler's logger.
func WithLogger(logger *slog.Logger) HandlerOption {
	return func(h *Handler) {
		h.logger = logger
	}
}

// NewHandler creates the front door over a provider and an account registry.
func NewHandler(provider domain.Provider, registry *accounts.Registry, opts ...HandlerOption) *Handler {
	h := &Handler{
		provider: provider,
		accounts: registry,
		recorder: usage.NopRecorder{},
		fallback: defaultModels,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Mount registers the handler's routes on a router.
func (h *Handler) Mount(r chi.Router) {
	r.Post("/v1/chat/completions", h.HandleChatCompletion)
	r.Get("/v1/models", h.HandleListModels)
	r.Get("/healthz", h.HandleHealthz)
}

// HandleChatCompletion processes POST /v1/chat/completions.
func (h *Handler) HandleChatCompletion(w http.ResponseWriter, r *http.Request) {
	startTime := time.Now()
	requestID := server.GetRequestID(r.Context())

	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.logger.Error("failed to read request body",
			slog.String("request_id", requestID),
			slog.String("error", err.Error()),
		)
		codec.WriteError(w, domain.ErrInvalidRequest("failed to read request body"))
		return
	}

	var req domain.CanonicalRequest
	if err := json.Unmarshal(body, &req); err != nil {
		h.logger.Error("failed to decode chat completion request",
			slog.String("request_id", requestID),
			slog.String("error", err.Error()),
		)
		codec.WriteError(w, domain.ErrInvalidRequest("invalid request body: "+err.Error()))
		return
	}
	if req.Model == "" {
		codec.WriteError(w, domain.ErrInvalidRequest("model is required"))
		return
	}
	if len(req.Messages) == 0 {
		codec.WriteError(w, domain.ErrInvalidRequest("messages must not be empty"))
		return
	}
	req.UserAgent = r.UserAgent()

	acct, err := h.accounts.Pick()
	if err != nil {
		server.AddError(r.Context(), err)
		codec.WriteError(w, err)
		return
	}
	req.Account = acct.Name
	req.Credentials = acct.Credentials
	server.SetAccount(r.Context(), acct.Name)
	server.AddLogField(r.Context(), "account", acct.Name)
	server.AddLogField(r.Context(), "model", req.Model)

	if req.Stream {
		h.handleStream(w, r, &req, startTime)
		return
	}

	resp, err := h.provider.Complete(r.Context(), &req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			h.logger.Info("chat completion canceled by client",
				slog.String("request_id", requestID),
				slog.String("account", acct.Name),
			)
			h.record(r.Context(), &usage.Record{
				Account:  acct.Name,
				Model:    req.Model,
				Status:   usage.StatusCancelled,
				Duration: time.Since(startTime),
			})
			return
		}

		h.logger.Error("chat completion failed",
			slog.String("request_id", requestID),
			slog.String("error", err.Error()),
			slog.String("account", acct.Name),
			slog.String("model", req.Model),
		)
		server.AddError(r.Context(), err)
		h.noteFailure(acct.Name, err)
		h.record(r.Context(), &usage.Record{
			Account:  acct.Name,
			Model:    req.Model,
			Status:   failureStatus(err),
			Duration: time.Since(startTime),
		})
		codec.WriteError(w, err)
		return
	}

	h.record(r.Context(), &usage.Record{
		Account:          acct.Name,
		Model:            req.Model,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		Status:           usage.StatusCompleted,
		Duration:         time.Since(startTime),
	})

	h.logger.Info("chat completion",
		slog.String("request_id", requestID),
		slog.String("account", acct.Name),
		slog.String("model", req.Model),
		slog.Int("prompt_tokens", resp.Usage.PromptTokens),
		slog.Int("completion_tokens", resp.Usage.CompletionTokens),
	)

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.logger.Error("failed to encode response",
			slog.String("request_id", requestID),
			slog.String("error", err.Error()),
		)
	}
}

// handleStream writes the call as server-sent events. Each provider event
// becomes one data line, flushed immediately. In-stream failures surface as a
// terminal data line carrying the error envelope, then the stream closes with
// [DONE] either way.
func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request, req *domain.CanonicalRequest, startTime time.Time) {
	requestID := server.GetRequestID(r.Context())

	events, err := h.provider.Stream(r.Context(), req)
	if err != nil {
		h.logger.Error("failed to start chat stream",
			slog.String("request_id", requestID),
			slog.String("error", err.Error()),
			slog.String("account", req.Account),
			slog.String("model", req.Model),
		)
		server.AddError(r.Context(), err)
		h.noteFailure(req.Account, err)
		h.record(r.Context(), &usage.Record{
			Account:   req.Account,
			Model:     req.Model,
			Streaming: true,
			Status:    failureStatus(err),
			Duration:  time.Since(startTime),
		})
		codec.WriteError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	var totals *domain.Usage
	var streamErr error
	eventCount := 0
	meta := &codec.StreamMetadata{
		ID:      "chatcmpl-" + uuid.New().String(),
		Model:   req.Model,
		Created: time.Now().Unix(),
	}

	for event := range events {
		if event.Error != nil {
			// Cancellation is expected when the client disconnects.
			if errors.Is(event.Error, context.Canceled) {
				h.logger.Info("stream canceled by client",
					slog.String("request_id", requestID),
					slog.String("account", req.Account),
				)
				break
			}
			h.logger.Error("stream event error",
				slog.String("request_id", requestID),
				slog.String("error", event.Error.Error()),
				slog.String("account", req.Account),
			)
			server.AddError(r.Context(), event.Error)
			streamErr = event.Error
			fmt.Fprintf(w, "data: %s\n\n", codec.ErrorBody(event.Error))
			flusher.Flush()
			break
		}

		if event.Usage != nil {
			totals = event.Usage
		}
		eventCount++

		data, err := codec.EncodeStreamChunk(&event, meta)
		if err != nil {
			h.logger.Error("failed to encode stream chunk",
				slog.String("request_id", requestID),
				slog.String("error", err.Error()),
			)
			break
		}
		fmt.Fprintf(w, "data: %s\n\n", data)
		flusher.Flush()
	}

	fmt.Fprintf(w, "data: [DONE]\n\n")
	flusher.Flush()

	rec := &usage.Record{
		Account:   req.Account,
		Model:     req.Model,
		Streaming: true,
		Status:    usage.StatusCompleted,
		Duration:  time.Since(startTime),
	}
	if totals != nil {
		rec.PromptTokens = totals.PromptTokens
		rec.CompletionTokens = totals.CompletionTokens
	}
	switch {
	case streamErr != nil:
		h.noteFailure(req.Account, streamErr)
		rec.Status = failureStatus(streamErr)
	case r.Context().Err() != nil:
		rec.Status = usage.StatusCancelled
	}
	h.record(r.Context(), rec)

	h.logger.Info("chat stream completed",
		slog.String("request_id", requestID),
		slog.String("account", req.Account),
		slog.String("model", req.Model),
		slog.String("status", rec.Status),
		slog.Int("events", eventCount),
	)
}

// HandleListModels processes GET /v1/models. The upstream listing needs
// account credentials; when no account is eligible or the upstream call
// fails, a static default list is served instead.
func (h *Handler) HandleListModels(w http.ResponseWriter, r *http.Request) {
	requestID := server.GetRequestID(r.Context())

	list := &domain.ModelList{Object: "list", Data: h.fallback}
	acct, err := h.accounts.Pick()
	if err == nil {
		server.SetAccount(r.Context(), acct.Name)
		upstream, lerr := h.provider.ListModels(r.Context(), acct.Credentials)
		if lerr != nil {
			h.logger.Warn("model listing failed, serving default list",
				slog.String("request_id", requestID),
				slog.String("error", lerr.Error()),
				slog.String("account", acct.Name),
			)
			h.noteFailure(acct.Name, lerr)
		} else {
			list = upstream
		}
	} else {
		h.logger.Warn("no account available for model listing, serving default list",
			slog.String("request_id", requestID),
		)
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(list); err != nil {
		h.logger.Error("failed to encode model list",
			slog.String("request_id", requestID),
			slog.String("error", err.Error()),
		)
	}
}

type healthResponse struct {
	Status    string            `json:"status"`
	Available int               `json:"available"`
	Accounts  []accounts.Status `json:"accounts"`
	Usage     usage.Totals      `json:"usage"`
}

// HandleHealthz processes GET /healthz. Reports degraded when every account
// is disabled or cooling down.
func (h *Handler) HandleHealthz(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:    "ok",
		Available: h.accounts.Available(),
		Accounts:  h.accounts.Statuses(),
	}
	if resp.Available == 0 {
		resp.Status = "degraded"
	}
	totals, err := h.recorder.Totals(r.Context(), "")
	if err != nil {
		h.logger.Warn("usage totals unavailable", slog.String("error", err.Error()))
	} else {
		resp.Usage = totals
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.logger.Error("failed to encode health response", slog.String("error", err.Error()))
	}
}

// noteFailure feeds call outcomes back into the account pool. Rate limits
// start a cooldown; credential failures disable the account until restart.
func (h *Handler) noteFailure(account string, err error) {
	apiErr, ok := domain.AsAPIError(err)
	if !ok {
		return
	}
	switch apiErr.Code {
	case domain.ErrorCodeUpstreamRateLimited:
		h.accounts.MarkRateLimited(account)
	case domain.ErrorCodeInvalidCredential:
		h.accounts.MarkInvalid(account)
	}
}

// record writes one ledger row. The write is detached from request
// cancellation so aborted calls still land in the ledger.
func (h *Handler) record(ctx context.Context, rec *usage.Record) {
	if err := h.recorder.Record(context.WithoutCancel(ctx), rec); err != nil {
		h.logger.Warn("usage record failed", slog.String("error", err.Error()))
	}
}

func failureStatus(err error) string {
	if apiErr, ok := domain.AsAPIError(err); ok && apiErr.Code != "" {
		return string(apiErr.Code)
	}
	return "failed"
}
