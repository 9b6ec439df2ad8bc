package handlers

import (
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/relaykit/aigateway/internal/config"
	"github.com/relaykit/aigateway/internal/dispatch"
	"github.com/relaykit/aigateway/internal/sse"
)

// serveStream runs a streaming dispatch (which has already bootstrapped the
// first event, per §4.9) and drains the rest of the upstream SSE stream,
// translating and writing each event as it arrives. Mid-stream failures are
// written as a terminal error event; they are never retried.
func serveStream(w http.ResponseWriter, r *http.Request, logger *slog.Logger, engine *dispatch.Engine, cfg *config.Config, desc *dispatch.RequestDescriptor) {
	ctx := r.Context()

	start, err := dispatch.DispatchStream(ctx, engine, desc, cfg, executorOptions(cfg))
	if err != nil {
		writeAPIError(w, logger, err)
		return
	}
	defer start.Stream.Close()

	writeDebugHeaders(w, start.Debug)
	copyPassthroughHeaders(w.Header(), start.PassthroughHeaders)

	keepalive := time.Duration(cfg.Streaming.KeepaliveSeconds) * time.Second
	sw := sse.NewWriter(w, keepalive)
	defer sw.Close()

	for _, line := range start.FirstLines {
		sw.WriteLine(line)
	}

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		event, err := start.Stream.Parser.Next()
		if err != nil {
			if err != io.EOF {
				logger.Warn("stream read failed mid-stream", "error", err)
				sw.WriteError(err.Error())
			}
			return
		}

		lines, terr := engine.Translators.TranslateStream(desc.SourceFormat, start.Target, start.ResolvedModel, desc.Raw, event.EventType, event.Data, start.State)
		if terr != nil {
			logger.Warn("stream translation failed mid-stream", "error", terr)
			sw.WriteError(terr.Error())
			return
		}
		for _, line := range lines {
			sw.WriteLine(line)
		}
		if event.Data == "[DONE]" {
			return
		}
	}
}
