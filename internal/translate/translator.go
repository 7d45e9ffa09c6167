// Package translate calls the translation API, one text layer at a time,
// under a fixed rate budget.
package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/psdglot/psdglot/internal/log"
)

const requestTimeout = 30 * time.Second

// Unit is one translatable text layer. TranslatedText is filled in by the
// batcher; order is the layer discovery order and must be preserved.
type Unit struct {
	LayerName      string
	OriginalText   string
	TranslatedText string
}

// APIError reports a failed translation request. Any transport-level failure
// is fatal to the whole pipeline; a partially translated document is worse
// than none.
type APIError struct {
	Status int
	Body   string
	Err    error
}

func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("translation request failed: %v", e.Err)
	}
	return fmt.Sprintf("translation request failed: status=%d body=%s", e.Status, e.Body)
}

func (e *APIError) Unwrap() error { return e.Err }

type translateRequest struct {
	Text       []string `json:"text"`
	TargetLang string   `json:"target_lang"`
}

type translateResponse struct {
	Translations []struct {
		Text string `json:"text"`
	} `json:"translations"`
}

// Batcher translates units sequentially against a DeepL-shaped API.
type Batcher struct {
	baseURL string
	authKey string
	http    *http.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewBatcher creates a Batcher. callDelay is the minimum spacing between
// consecutive API calls; zero disables throttling (tests).
func NewBatcher(baseURL, authKey string, callDelay time.Duration) *Batcher {
	limit := rate.Inf
	if callDelay > 0 {
		limit = rate.Every(callDelay)
	}
	return &Batcher{
		baseURL: baseURL,
		authKey: authKey,
		http:    &http.Client{Timeout: requestTimeout},
		limiter: rate.NewLimiter(limit, 1),
		logger:  log.WithComponent("translate"),
	}
}

// TranslateAll translates every unit in order. Sequential by design: the
// rate budget forbids parallel calls, and position i of the result must
// correspond to position i of the input. A 2xx response with no translation
// for a unit falls back to the original text; a non-2xx response aborts.
func (b *Batcher) TranslateAll(ctx context.Context, units []Unit, targetLang string) ([]Unit, error) {
	out := make([]Unit, len(units))
	for i, unit := range units {
		if err := b.limiter.Wait(ctx); err != nil {
			return nil, &APIError{Err: err}
		}

		translated, err := b.translateOne(ctx, unit.OriginalText, targetLang)
		if err != nil {
			return nil, err
		}

		out[i] = unit
		out[i].TranslatedText = translated
		b.logger.Debug("layer translated", "layer", unit.LayerName, "target_lang", targetLang)
	}
	return out, nil
}

func (b *Batcher) translateOne(ctx context.Context, text, targetLang string) (string, error) {
	body, err := json.Marshal(translateRequest{
		Text:       []string{text},
		TargetLang: targetLang,
	})
	if err != nil {
		return "", &APIError{Err: fmt.Errorf("encode request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/v2/translate", bytes.NewReader(body))
	if err != nil {
		return "", &APIError{Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "DeepL-Auth-Key "+b.authKey)

	resp, err := b.http.Do(req)
	if err != nil {
		return "", &APIError{Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", &APIError{Err: fmt.Errorf("read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &APIError{Status: resp.StatusCode, Body: string(respBody)}
	}

	var parsed translateResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", &APIError{Err: fmt.Errorf("decode response: %w", err)}
	}

	// Missing translation is not fatal: keep the original text unchanged.
	if len(parsed.Translations) == 0 {
		b.logger.Warn("no translation returned, keeping original text")
		return text, nil
	}
	return parsed.Translations[0].Text, nil
}
