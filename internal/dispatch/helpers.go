package dispatch

import (
	"encoding/json"
	"math/rand"
	"net/http"
	"time"

	"github.com/relaykit/aigateway/internal/cloak"
	"github.com/relaykit/aigateway/internal/payload"
)

func applyPayloadRules(raw []byte, cfg *payload.Config, model, protocol string) ([]byte, error) {
	var body map[string]any
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, err
	}
	payload.Apply(body, cfg, model, protocol)
	return json.Marshal(body)
}

func applyCloak(raw []byte, cfg *cloak.Config, apiKey string) ([]byte, error) {
	var body map[string]any
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, err
	}
	cloak.Apply(body, cfg, apiKey)
	return json.Marshal(body)
}

// triedKeys flattens the tried-credential-ID set into a slice for
// router.Pick's exclusion list. Order is irrelevant here: this only
// filters which credentials pickCredential is allowed to return next, it
// is never used to build the debug attempt log.
func triedKeys(tried map[string]struct{}) []string {
	out := make([]string, 0, len(tried))
	for k := range tried {
		out = append(out, k)
	}
	return out
}

// randomBackoff computes random(0, min(2^attempt, max_backoff_secs)) per
// §4.9's retry loop.
func randomBackoff(attempt int, maxBackoffSecs int) time.Duration {
	if maxBackoffSecs <= 0 {
		return 0
	}
	capSecs := maxBackoffSecs
	if attempt < 31 {
		if pow := 1 << attempt; pow < capSecs {
			capSecs = pow
		}
	}
	return time.Duration(rand.Intn(capSecs+1)) * time.Second
}

func filterPassthrough(h http.Header, names []string) http.Header {
	out := http.Header{}
	for _, name := range names {
		if v := h.Get(name); v != "" {
			out.Set(name, v)
		}
	}
	return out
}
