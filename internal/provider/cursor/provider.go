package cursor

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	cursorapi "github.com/jmswain/switchboard/internal/api/cursor"
	"github.com/jmswain/switchboard/internal/domain"
	"github.com/jmswain/switchboard/internal/tokens"
)

// ProviderOption configures the provider.
type ProviderOption func(*Provider)

// WithClient replaces the wire client. Tests use this to point the provider
// at a local stand-in for the upstream.
func WithClient(client *cursorapi.Client) ProviderOption {
	return func(p *Provider) {
		p.client = client
	}
}

// WithTokenCounter replaces the usage estimator.
func WithTokenCounter(counter *tokens.Counter) ProviderOption {
	return func(p *Provider) {
		p.counter = counter
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ProviderOption {
	return func(p *Provider) {
		p.logger = logger
	}
}

// Provider implements domain.Provider over the vendor's binary RPC bridge.
// Each call owns its own parser state and fold state; one Provider serves
// any number of concurrent calls.
type Provider struct {
	client  *cursorapi.Client
	counter *tokens.Counter
	logger  *slog.Logger
}

// New creates the provider. With no options it targets the production
// endpoint.
func New(opts ...ProviderOption) *Provider {
	p := &Provider{}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	if p.client == nil {
		p.client = cursorapi.NewClient(cursorapi.WithLogger(p.logger))
	}
	if p.counter == nil {
		p.counter = tokens.NewCounter()
	}
	return p
}

func (p *Provider) Name() string {
	return "cursor"
}

// Complete drives one buffered call: every event is accumulated, tool-call
// fragments are folded by id, and still-open calls are finalized at end of
// stream even when their closing fragment never arrived.
func (p *Provider) Complete(ctx context.Context, req *domain.CanonicalRequest) (*domain.CanonicalResponse, error) {
	result, err := p.execute(ctx, req)
	if err != nil {
		return nil, err
	}

	folder := newCallFolder()
	var content, reasoning strings.Builder
	for ev := range result.Events {
		switch ev.Kind {
		case cursorapi.EventText:
			content.WriteString(ev.Text)
		case cursorapi.EventThinking:
			reasoning.WriteString(ev.Text)
		case cursorapi.EventToolCall:
			folder.apply(ev.ToolCall)
		case cursorapi.EventError:
			return nil, mapStreamError(ev.Err)
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	msg := domain.AssistantMessage{
		Role:      "assistant",
		Content:   content.String(),
		Reasoning: reasoning.String(),
		ToolCalls: folder.finalize(),
	}
	finish := "stop"
	if len(msg.ToolCalls) > 0 {
		finish = "tool_calls"
	}

	prompt := p.counter.CountRequest(req)
	completion := p.counter.CountCompletion(req.Model, msg)

	return &domain.CanonicalResponse{
		ID:      "chatcmpl-" + uuid.NewString(),
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   req.Model,
		Choices: []domain.Choice{{Index: 0, Message: msg, FinishReason: finish}},
		Usage: domain.Usage{
			PromptTokens:     prompt,
			CompletionTokens: completion,
			TotalTokens:      prompt + completion,
		},
	}, nil
}

// Stream drives one incremental call. Deltas go out as frames arrive; a
// role preamble precedes the first content of any kind; tool-call fragments
// keep a stable index per call id assigned on first sight. Cancellation
// closes the channel with no trailing events.
func (p *Provider) Stream(ctx context.Context, req *domain.CanonicalRequest) (<-chan domain.CanonicalEvent, error) {
	result, err := p.execute(ctx, req)
	if err != nil {
		return nil, err
	}

	out := make(chan domain.CanonicalEvent)
	go func() {
		defer close(out)

		send := func(ev domain.CanonicalEvent) bool {
			select {
			case out <- ev:
				return true
			case <-ctx.Done():
				return false
			}
		}

		folder := newCallFolder()
		var content, reasoning strings.Builder
		roleSent := false
		preamble := func() bool {
			if roleSent {
				return true
			}
			roleSent = true
			return send(domain.CanonicalEvent{Role: "assistant"})
		}

		for ev := range result.Events {
			switch ev.Kind {
			case cursorapi.EventText:
				if !preamble() || !send(domain.CanonicalEvent{ContentDelta: ev.Text}) {
					return
				}
				content.WriteString(ev.Text)

			case cursorapi.EventThinking:
				if !preamble() || !send(domain.CanonicalEvent{ThinkingDelta: ev.Text}) {
					return
				}
				reasoning.WriteString(ev.Text)

			case cursorapi.EventToolCall:
				chunk := folder.chunk(ev.ToolCall)
				if chunk == nil {
					continue
				}
				if !preamble() || !send(domain.CanonicalEvent{ToolCall: chunk}) {
					return
				}

			case cursorapi.EventError:
				send(domain.CanonicalEvent{Error: mapStreamError(ev.Err)})
				return
			}
		}
		if ctx.Err() != nil {
			return
		}

		msg := domain.AssistantMessage{
			Content:   content.String(),
			Reasoning: reasoning.String(),
			ToolCalls: folder.finalize(),
		}
		finish := "stop"
		if len(msg.ToolCalls) > 0 {
			finish = "tool_calls"
		}
		prompt := p.counter.CountRequest(req)
		completion := p.counter.CountCompletion(req.Model, msg)
		send(domain.CanonicalEvent{
			FinishReason: finish,
			Usage: &domain.Usage{
				PromptTokens:     prompt,
				CompletionTokens: completion,
				TotalTokens:      prompt + completion,
			},
		})
	}()

	return out, nil
}

// ListModels fetches the account's model listing from the upstream.
func (p *Provider) ListModels(ctx context.Context, creds domain.Credentials) (*domain.ModelList, error) {
	models, err := p.client.ListModels(ctx, wireCredentials(creds))
	if err != nil {
		return nil, mapListError(err)
	}

	data := make([]domain.Model, len(models))
	for i, m := range models {
		data[i] = domain.Model{ID: m.Name, Object: "model", OwnedBy: "cursor"}
	}
	return &domain.ModelList{Object: "list", Data: data}, nil
}

func (p *Provider) execute(ctx context.Context, req *domain.CanonicalRequest) (*cursorapi.ExecuteResult, error) {
	result, err := p.client.Execute(ctx, cursorapi.ExecuteRequest{
		Model:       effortModel(req.Model, req.ReasoningEffort),
		Turns:       buildTurns(req.Messages),
		Tools:       buildTools(req.Tools),
		Stream:      req.Stream,
		Credentials: wireCredentials(req.Credentials),
	})
	if err != nil {
		return nil, mapExecuteError(err)
	}
	return result, nil
}

func wireCredentials(creds domain.Credentials) cursorapi.Credentials {
	return cursorapi.Credentials{
		AccessToken: creds.AccessToken,
		MachineID:   creds.MachineID,
		GhostMode:   creds.GhostMode,
	}
}

// mapExecuteError classifies errors raised before any network activity.
func mapExecuteError(err error) error {
	if errors.Is(err, cursorapi.ErrEmptyAccessToken) || errors.Is(err, cursorapi.ErrMissingMachineID) {
		return domain.ErrInvalidCredential(err.Error())
	}
	return domain.ErrTransportFailure(err.Error())
}

// mapStreamError classifies a terminal stream error into the domain
// taxonomy: 401/403 invalidate the account's credentials, rate limiting maps
// to 429, connection-level failures to 500, and everything else the upstream
// rejected to 400 with the vendor's message carried verbatim.
func mapStreamError(se *cursorapi.StreamError) error {
	if se == nil {
		return domain.ErrTransportFailure("stream closed unexpectedly")
	}
	switch {
	case se.StatusCode == http.StatusUnauthorized || se.StatusCode == http.StatusForbidden:
		return domain.ErrInvalidCredential(se.Message)
	case se.IsRateLimit:
		return domain.ErrUpstreamRateLimited(se.Message)
	case se.Transport:
		return domain.ErrTransportFailure(se.Message)
	default:
		return domain.ErrUpstreamRejected(se.Message)
	}
}

func mapListError(err error) error {
	if errors.Is(err, cursorapi.ErrEmptyAccessToken) || errors.Is(err, cursorapi.ErrMissingMachineID) {
		return domain.ErrInvalidCredential(err.Error())
	}
	var statusErr *cursorapi.StatusError
	if !errors.As(err, &statusErr) {
		return domain.ErrTransportFailure(err.Error())
	}
	switch {
	case statusErr.Code == http.StatusUnauthorized || statusErr.Code == http.StatusForbidden:
		return domain.ErrInvalidCredential(statusErr.Error())
	case statusErr.Code == http.StatusTooManyRequests:
		return domain.ErrUpstreamRateLimited(statusErr.Error())
	case statusErr.Code >= 500:
		return domain.ErrTransportFailure(statusErr.Error())
	default:
		return domain.ErrUpstreamRejected(statusErr.Error())
	}
}
