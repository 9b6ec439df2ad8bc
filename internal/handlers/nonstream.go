package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/relaykit/aigateway/internal/config"
	"github.com/relaykit/aigateway/internal/dispatch"
)

// serveNonStream runs a buffered dispatch and writes the result, racing the
// configured non-stream keepalive timer against the dispatch goroutine per
// §4.9/§5: once the timer wins, the response is committed to 200 and
// chunked, with whitespace bytes flushed to hold the connection open until
// the real body is ready.
func serveNonStream(w http.ResponseWriter, r *http.Request, logger *slog.Logger, engine *dispatch.Engine, cfg *config.Config, desc *dispatch.RequestDescriptor) {
	ctx := r.Context()

	resultCh := make(chan *dispatch.NonStreamResult, 1)
	errCh := make(chan error, 1)
	go func() {
		res, err := dispatch.DispatchNonStream(ctx, engine, desc, cfg, executorOptions(cfg))
		if err != nil {
			errCh <- err
			return
		}
		resultCh <- res
	}()

	keepalive := time.Duration(cfg.NonStreamKeepaliveSecs) * time.Second
	if keepalive <= 0 {
		select {
		case res := <-resultCh:
			writeNonStreamResult(w, res)
		case err := <-errCh:
			writeAPIError(w, logger, err)
		case <-ctx.Done():
		}
		return
	}

	timer := time.NewTimer(keepalive)
	defer timer.Stop()
	flusher, _ := w.(http.Flusher)
	headerSent := false

	for {
		select {
		case res := <-resultCh:
			if headerSent {
				w.Write(res.Payload)
			} else {
				writeNonStreamResult(w, res)
			}
			return

		case err := <-errCh:
			if headerSent {
				aerr := normalizeAPIError(err)
				logger.Error("request failed after keepalive committed the response", "kind", aerr.Kind.String(), "message", aerr.Message, "error", aerr.Wrapped)
				w.Write(apiErrorBody(aerr))
			} else {
				writeAPIError(w, logger, err)
			}
			return

		case <-timer.C:
			if !headerSent {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusOK)
				headerSent = true
			}
			w.Write([]byte(" "))
			if flusher != nil {
				flusher.Flush()
			}
			timer.Reset(keepalive)

		case <-ctx.Done():
			return
		}
	}
}

func writeNonStreamResult(w http.ResponseWriter, res *dispatch.NonStreamResult) {
	writeDebugHeaders(w, res.Debug)
	copyPassthroughHeaders(w.Header(), res.PassthroughHeaders)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(res.Payload)
}
