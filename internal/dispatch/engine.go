package dispatch

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/relaykit/aigateway/internal/apierror"
	"github.com/relaykit/aigateway/internal/cloak"
	"github.com/relaykit/aigateway/internal/config"
	"github.com/relaykit/aigateway/internal/executor"
	"github.com/relaykit/aigateway/internal/router"
	"github.com/relaykit/aigateway/internal/translator"
)

// Engine wires the credential router, translator registry, and executor
// registry together to carry one client request through the full
// translate/payload-rule/cloak/execute pipeline described in §4.9.
type Engine struct {
	Router      *router.Router
	Translators *translator.Registry
	Executors   *executor.Registry
	Logger      *slog.Logger
}

func New(r *router.Router, translators *translator.Registry, executors *executor.Registry, logger *slog.Logger) *Engine {
	return &Engine{Router: r, Translators: translators, Executors: executors, Logger: logger}
}

var allFormats = []router.Format{
	router.FormatOpenAI,
	router.FormatClaude,
	router.FormatGemini,
	router.FormatOpenAICompat,
}

type attemptFunc[T any] func(ctx context.Context, auth *router.AuthRecord, target router.Format, resolvedModel string, body []byte, extraHeaders map[string]string) (T, *apierror.Error)

// dispatchGeneric implements the model-chain/credential/retry loop shared
// by DispatchNonStream and DispatchStream. For each model in the fallback
// chain it picks an untried credential among allowedTargets, builds the
// outbound body, and hands it to attempt; a retryable failure cools the
// credential down and moves on to the next one, up to cfg.Retry.MaxRetries
// attempts across the whole chain.
func dispatchGeneric[T any](ctx context.Context, e *Engine, desc *RequestDescriptor, cfg *config.Config, allowedTargets []router.Format, attempt attemptFunc[T]) (T, *DebugInfo, error) {
	var zero T

	models := desc.Models
	if len(models) == 0 {
		models = []string{desc.Model}
	}
	if len(allowedTargets) == 0 {
		allowedTargets = allFormats
	}

	debug := &DebugInfo{}
	tried := make(map[string]struct{})
	attempts := 0
	var lastErr *apierror.Error

	for _, model := range models {
		if cfg.ForceModelPrefix && !e.Router.ModelHasPrefix(model) {
			return zero, debug, apierror.ModelNotFound(model)
		}

		attemptedThisModel := false

		for {
			auth, target, ok := e.pickCredential(model, allowedTargets, tried)
			if !ok {
				if !attemptedThisModel && desc.Debug {
					debug.Attempts = append(debug.Attempts, model+"@")
				}
				break
			}
			tried[auth.ID] = struct{}{}
			attemptedThisModel = true

			resolvedModel := auth.ResolveModelID(model)
			body, extraHeaders, aerr := e.prepareBody(desc, cfg, auth, target, resolvedModel)
			if aerr != nil {
				return zero, debug, aerr
			}

			if desc.Debug {
				debug.Provider = string(target)
				debug.Model = resolvedModel
				debug.Credential = auth.Name()
				debug.Attempts = append(debug.Attempts, resolvedModel+"@"+string(target))
			}

			value, aerr := attempt(ctx, auth, target, resolvedModel, body, extraHeaders)
			if aerr == nil {
				return value, debug, nil
			}

			e.handleRetryError(auth.ID, aerr, cfg)
			lastErr = aerr

			attempts++
			if !aerr.Retryable() || attempts >= cfg.Retry.MaxRetries {
				return zero, debug, aerr
			}

			select {
			case <-ctx.Done():
				return zero, debug, apierror.Network(ctx.Err())
			case <-time.After(randomBackoff(attempts, cfg.Retry.MaxBackoffSecs)):
			}
		}
	}

	if lastErr != nil {
		return zero, debug, lastErr
	}
	return zero, debug, apierror.NoCredentials("", desc.Model)
}

// pickCredential tries each allowed target format in order, returning the
// first credential the router offers that hasn't already been tried.
func (e *Engine) pickCredential(model string, allowedTargets []router.Format, tried map[string]struct{}) (*router.AuthRecord, router.Format, bool) {
	triedList := triedKeys(tried)
	for _, target := range allowedTargets {
		if auth := e.Router.Pick(target, model, triedList); auth != nil {
			return auth, target, true
		}
	}
	return nil, "", false
}

// prepareBody runs the translate → payload-rule → cloak pipeline for one
// attempt, producing the exact bytes to send upstream. When cloaking is
// active for this request it also returns the configured
// claude-header-defaults to merge onto the outbound request, per §4.6.
func (e *Engine) prepareBody(desc *RequestDescriptor, cfg *config.Config, auth *router.AuthRecord, target router.Format, resolvedModel string) ([]byte, map[string]string, *apierror.Error) {
	translated, err := e.Translators.TranslateRequest(desc.SourceFormat, target, resolvedModel, desc.Raw, desc.Stream)
	if err != nil {
		if aerr, ok := apierror.As(err); ok {
			return nil, nil, aerr
		}
		return nil, nil, apierror.Translation("request translation failed", err)
	}

	body, err := applyPayloadRules(translated, &cfg.Payload, resolvedModel, string(target))
	if err != nil {
		return nil, nil, apierror.Internal("payload rule application failed", err)
	}

	var extraHeaders map[string]string
	if target == router.FormatClaude && auth.Cloak != nil && cloak.ShouldCloak(auth.Cloak, desc.UserAgent) {
		cloaked, err := applyCloak(body, auth.Cloak, auth.APIKey)
		if err != nil {
			return nil, nil, apierror.Internal("cloak application failed", err)
		}
		body = cloaked
		extraHeaders = cfg.ClaudeHeaderDefaults
	}

	return body, extraHeaders, nil
}

// handleRetryError records a cooldown against the credential, if the error
// kind and configured retry parameters call for one.
func (e *Engine) handleRetryError(authID string, err *apierror.Error, cfg *config.Config) {
	duration, ok := err.Cooldown(
		time.Duration(cfg.Retry.Cooldown429Secs)*time.Second,
		time.Duration(cfg.Retry.Cooldown5xxSecs)*time.Second,
		time.Duration(cfg.Retry.CooldownNetworkSecs)*time.Second,
	)
	if !ok {
		return
	}
	e.Router.MarkUnavailable(authID, duration)
	if e.Logger != nil {
		e.Logger.Warn("credential cooled down", "credential", authID, "duration", duration, "error", err)
	}
}

// formatsForSource returns the target formats desc is eligible to be
// dispatched to: the handler-specified restriction if any, else every
// registered format.
func formatsForSource(desc *RequestDescriptor) []router.Format {
	if len(desc.AllowedTargets) > 0 {
		return desc.AllowedTargets
	}
	return allFormats
}

// DispatchNonStream runs the full pipeline for a buffered request and
// returns the client-formatted response body.
func DispatchNonStream(ctx context.Context, e *Engine, desc *RequestDescriptor, cfg *config.Config, opts executor.Options) (*NonStreamResult, error) {
	allowed := formatsForSource(desc)

	value, debug, err := dispatchGeneric(ctx, e, desc, cfg, allowed, func(ctx context.Context, auth *router.AuthRecord, target router.Format, resolvedModel string, body []byte, extraHeaders map[string]string) (*NonStreamResult, *apierror.Error) {
		exec, ok := e.Executors.Get(target)
		if !ok {
			return nil, apierror.Internal("no executor registered for "+string(target), nil)
		}

		resp, err := exec.Execute(ctx, auth, &executor.Request{
			Model:           resolvedModel,
			Payload:         body,
			SourceFormat:    desc.SourceFormat,
			Stream:          false,
			Headers:         extraHeaders,
			OriginalRequest: desc.Raw,
		}, opts)
		if err != nil {
			aerr, ok := apierror.As(err)
			if !ok {
				aerr = apierror.Internal("executor error", err)
			}
			return nil, aerr
		}

		translated, terr := e.Translators.TranslateNonStream(desc.SourceFormat, target, resolvedModel, desc.Raw, resp.Payload)
		if terr != nil {
			aerr, ok := apierror.As(terr)
			if !ok {
				aerr = apierror.Translation("response translation failed", terr)
			}
			return nil, aerr
		}

		return &NonStreamResult{
			Payload:            translated,
			PassthroughHeaders: filterPassthrough(resp.Headers, cfg.PassthroughHeaders),
		}, nil
	})
	if err != nil {
		return nil, err
	}
	if desc.Debug {
		value.Debug = debug
	}
	return value, nil
}

// DispatchStream runs the full pipeline for a streaming request, retrying
// the upstream connection itself (bootstrap retry, §5) up to
// cfg.Streaming.BootstrapRetries times if the very first event fails to
// arrive or translate, before falling through to the outer credential
// retry loop.
func DispatchStream(ctx context.Context, e *Engine, desc *RequestDescriptor, cfg *config.Config, opts executor.Options) (*StreamStart, error) {
	allowed := formatsForSource(desc)
	bootstrapRetries := cfg.Streaming.BootstrapRetries

	value, debug, err := dispatchGeneric(ctx, e, desc, cfg, allowed, func(ctx context.Context, auth *router.AuthRecord, target router.Format, resolvedModel string, body []byte, extraHeaders map[string]string) (*StreamStart, *apierror.Error) {
		exec, ok := e.Executors.Get(target)
		if !ok {
			return nil, apierror.Internal("no executor registered for "+string(target), nil)
		}

		var lastErr *apierror.Error
		for n := 0; n <= bootstrapRetries; n++ {
			start, aerr := bootstrapStream(ctx, e, exec, auth, desc, cfg, target, resolvedModel, body, extraHeaders, opts)
			if aerr == nil {
				return start, nil
			}
			lastErr = aerr
		}

		if lastErr == nil {
			lastErr = apierror.Internal("stream bootstrap exhausted with no error recorded", nil)
		}
		return nil, lastErr
	})
	if err != nil {
		return nil, err
	}
	if desc.Debug {
		value.Debug = debug
	}
	return value, nil
}

// bootstrapStream opens one upstream connection and reads+translates
// exactly the first SSE event, closing the connection and reporting
// failure if either step fails. A clean result means the connection and
// its first translated lines are ready to hand to the caller.
func bootstrapStream(ctx context.Context, e *Engine, exec executor.ProviderExecutor, auth *router.AuthRecord, desc *RequestDescriptor, cfg *config.Config, target router.Format, resolvedModel string, body []byte, extraHeaders map[string]string, opts executor.Options) (*StreamStart, *apierror.Error) {
	stream, err := exec.ExecuteStream(ctx, auth, &executor.Request{
		Model:           resolvedModel,
		Payload:         body,
		SourceFormat:    desc.SourceFormat,
		Stream:          true,
		Headers:         extraHeaders,
		OriginalRequest: desc.Raw,
	}, opts)
	if err != nil {
		aerr, ok := apierror.As(err)
		if !ok {
			aerr = apierror.Internal("executor error", err)
		}
		return nil, aerr
	}

	state := translator.NewState()
	event, perr := stream.Parser.Next()
	if perr != nil && perr != io.EOF {
		stream.Close()
		return nil, apierror.Network(perr)
	}
	if perr == io.EOF {
		stream.Close()
		return nil, apierror.Network(io.ErrUnexpectedEOF)
	}

	lines, terr := e.Translators.TranslateStream(desc.SourceFormat, target, resolvedModel, desc.Raw, event.EventType, event.Data, state)
	if terr != nil {
		stream.Close()
		aerr, ok := apierror.As(terr)
		if !ok {
			aerr = apierror.Translation("stream translation failed", terr)
		}
		return nil, aerr
	}

	return &StreamStart{
		Stream:             stream,
		Target:             target,
		ResolvedModel:      resolvedModel,
		State:              state,
		FirstLines:         lines,
		PassthroughHeaders: filterPassthrough(stream.Headers, cfg.PassthroughHeaders),
	}, nil
}
