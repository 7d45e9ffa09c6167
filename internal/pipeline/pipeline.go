// Package pipeline orchestrates one document-translation run end to end:
// authenticate, stage, extract the layer manifest, translate text layers,
// apply the edits, and hand back a time-limited download URL.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/psdglot/psdglot/internal/auth"
	"github.com/psdglot/psdglot/internal/imagejob"
	"github.com/psdglot/psdglot/internal/log"
	"github.com/psdglot/psdglot/internal/manifest"
	"github.com/psdglot/psdglot/internal/stage"
	"github.com/psdglot/psdglot/internal/state"
	"github.com/psdglot/psdglot/internal/translate"
)

const documentContentType = "image/vnd.adobe.photoshop"

// ErrNoTranslatableContent is returned when the manifest holds no text
// layers. No edit job is submitted in that case.
var ErrNoTranslatableContent = errors.New("document contains no text layers")

// TokenProvider acquires a bearer token for one run.
type TokenProvider interface {
	AcquireToken(ctx context.Context) (auth.Token, error)
}

// Stager is the staging surface the pipeline needs.
type Stager interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) error
	SignedReadURL(ctx context.Context, key string, ttl time.Duration) (string, error)
	SignedWriteURL(ctx context.Context, key string, ttl time.Duration, contentType string) (string, error)
	ScheduleDelete(key string, after time.Duration)
}

// JobClient issues authenticated requests to the image-editing API.
type JobClient interface {
	Submit(ctx context.Context, endpoint string, body any) (*imagejob.Submission, error)
	imagejob.StatusFetcher
}

// Translator translates text units in order.
type Translator interface {
	TranslateAll(ctx context.Context, units []translate.Unit, targetLang string) ([]translate.Unit, error)
}

// RunRecorder persists run records. Satisfied by *state.Store.
type RunRecorder interface {
	CreateRun(ctx context.Context, id, targetLang string) error
	SetRunKeys(ctx context.Context, id, inputKey, outputKey string) error
	CompleteRun(ctx context.Context, id string, status state.RunStatus, lastError string) error
}

// Config holds per-run orchestration settings.
type Config struct {
	URLTTL       time.Duration
	DeleteAfter  time.Duration
	PollInterval time.Duration
	PollAttempts int
}

// Result is a successful run's outcome.
type Result struct {
	RunID       string
	DownloadURL string
}

// Orchestrator composes the pipeline steps. Each run is strictly
// sequential: every step consumes its predecessor's output, so there is
// nothing to parallelize inside a run. Concurrent runs are independent;
// run-unique object keys keep them from colliding in the shared store.
type Orchestrator struct {
	tokens     TokenProvider
	stager     Stager
	translator Translator
	runs       RunRecorder
	newClient  func(token string) JobClient
	cfg        Config
	logger     *slog.Logger
}

// New creates an Orchestrator. newClient builds a job client around a run's
// bearer token.
func New(tokens TokenProvider, stager Stager, translator Translator, runs RunRecorder, newClient func(token string) JobClient, cfg Config) *Orchestrator {
	return &Orchestrator{
		tokens:     tokens,
		stager:     stager,
		translator: translator,
		runs:       runs,
		newClient:  newClient,
		cfg:        cfg,
		logger:     log.WithComponent("pipeline"),
	}
}

// Run executes one translation run. The returned error carries full internal
// detail for logging; callers must not expose it externally.
func (o *Orchestrator) Run(ctx context.Context, document []byte, targetLang string) (*Result, error) {
	runID := uuid.NewString()
	logger := log.WithRun(runID).With("target_lang", targetLang)
	logger.Info("run started", "document_bytes", len(document))

	if err := o.runs.CreateRun(ctx, runID, targetLang); err != nil {
		return nil, fmt.Errorf("record run: %w", err)
	}

	result, err := o.execute(ctx, runID, document, targetLang, logger)
	if err != nil {
		logger.Error("run failed", "error", err)
		o.completeRun(runID, state.RunFailed, err.Error())
		return nil, err
	}

	o.completeRun(runID, state.RunSucceeded, "")
	logger.Info("run succeeded")
	return result, nil
}

func (o *Orchestrator) execute(ctx context.Context, runID string, document []byte, targetLang string, logger *slog.Logger) (result *Result, err error) {
	// Authenticate. Single attempt; a failed run is resubmitted whole.
	token, err := o.tokens.AcquireToken(ctx)
	if err != nil {
		return nil, err
	}

	inputKey := stage.ObjectKey(runID, document, "input.psd")
	outputKey := stage.RunKey(runID, "output.psd")
	if err := o.runs.SetRunKeys(ctx, runID, inputKey, outputKey); err != nil {
		return nil, fmt.Errorf("record run keys: %w", err)
	}

	// Stage the document so the image API can read it by URL.
	if err := o.stager.Upload(ctx, inputKey, document, documentContentType); err != nil {
		return nil, err
	}
	// From here the bucket holds run objects. A failed run must not strand
	// them: schedule cleanup on every error path so the ledger always knows
	// about both keys. The success path schedules the same deletions below.
	defer func() {
		if err != nil {
			o.stager.ScheduleDelete(inputKey, o.cfg.DeleteAfter)
			o.stager.ScheduleDelete(outputKey, o.cfg.DeleteAfter)
		}
	}()
	inputURL, err := o.stager.SignedReadURL(ctx, inputKey, o.cfg.URLTTL)
	if err != nil {
		return nil, err
	}

	client := o.newClient(token.AccessToken)
	poller := imagejob.NewPoller(client, o.cfg.PollInterval, o.cfg.PollAttempts)

	// Manifest: submit, then poll until the layer tree is available.
	manifestStatus, err := o.submitAndAwait(ctx, client, poller, imagejob.EndpointManifest, manifestRequest{
		Inputs: []externalInput{{Href: inputURL, Storage: "external"}},
	}, "manifest")
	if err != nil {
		return nil, err
	}

	layers := manifestStatus.Outputs[0].Layers
	textLayers := manifest.FindTextLayers(layers)
	logger.Info("manifest extracted", "layers", len(layers), "text_layers", len(textLayers))
	if len(textLayers) == 0 {
		return nil, ErrNoTranslatableContent
	}

	units := make([]translate.Unit, len(textLayers))
	for i, layer := range textLayers {
		units[i] = translate.Unit{LayerName: layer.Name}
		if layer.Text != nil {
			units[i].OriginalText = layer.Text.Content
		}
	}

	translated, err := o.translator.TranslateAll(ctx, units, targetLang)
	if err != nil {
		return nil, err
	}

	// Re-stage the input and mint fresh URLs for the edit job: the manifest
	// URLs may be near expiry by now.
	if err := o.stager.Upload(ctx, inputKey, document, documentContentType); err != nil {
		return nil, err
	}
	editInputURL, err := o.stager.SignedReadURL(ctx, inputKey, o.cfg.URLTTL)
	if err != nil {
		return nil, err
	}
	outputURL, err := o.stager.SignedWriteURL(ctx, outputKey, o.cfg.URLTTL, documentContentType)
	if err != nil {
		return nil, err
	}

	edits := make([]textEdit, len(translated))
	for i, unit := range translated {
		edits[i] = textEdit{
			Name: unit.LayerName,
			Text: manifest.TextInfo{Content: unit.TranslatedText},
		}
	}

	editReq := operationsRequest{
		Inputs:  []externalInput{{Href: editInputURL, Storage: "external"}},
		Outputs: []externalOutput{{Href: outputURL, Storage: "external", Type: documentContentType}},
	}
	editReq.Options.Layers = edits

	if _, err := o.submitAndAwait(ctx, client, poller, imagejob.EndpointOperations, editReq, "edit"); err != nil {
		return nil, err
	}

	downloadURL, err := o.stager.SignedReadURL(ctx, outputKey, o.cfg.URLTTL)
	if err != nil {
		return nil, err
	}

	// Input is fully consumed and the output only needs to outlive its
	// signed URL; schedule both for deletion.
	o.stager.ScheduleDelete(inputKey, o.cfg.DeleteAfter)
	o.stager.ScheduleDelete(outputKey, o.cfg.DeleteAfter)

	return &Result{RunID: runID, DownloadURL: downloadURL}, nil
}

// submitAndAwait submits a job and resolves it to a succeeded status
// response, either synchronously (when the API answers with outputs
// directly) or via the polling link.
func (o *Orchestrator) submitAndAwait(ctx context.Context, client JobClient, poller *imagejob.Poller, endpoint string, body any, op string) (*imagejob.StatusResponse, error) {
	sub, err := client.Submit(ctx, endpoint, body)
	if err != nil {
		return nil, err
	}

	// The API may answer with a terminal status in the submission body
	// itself instead of a polling link.
	if status := terminalStatus(sub.Raw); status != nil {
		out := status.Outputs[0]
		if out.Status == imagejob.StatusFailed {
			return nil, &imagejob.FailedError{Op: op, Errors: out.Errors}
		}
		log.WithStep(op).Debug("job resolved synchronously")
		return status, nil
	}

	if sub.PollURL == "" {
		return nil, fmt.Errorf("%s response carries neither outputs nor a polling link", op)
	}

	status, err := poller.Await(ctx, sub.PollURL, op)
	if err != nil {
		return nil, err
	}
	if len(status.Outputs) == 0 {
		return nil, fmt.Errorf("%s job succeeded with no outputs", op)
	}
	return status, nil
}

// terminalStatus decodes a submission body as a status response. Returns nil
// unless the first output is already in a terminal state.
func terminalStatus(raw json.RawMessage) *imagejob.StatusResponse {
	var status imagejob.StatusResponse
	if err := json.Unmarshal(raw, &status); err != nil || len(status.Outputs) == 0 {
		return nil
	}
	switch status.Outputs[0].Status {
	case imagejob.StatusSucceeded, imagejob.StatusFailed:
		return &status
	}
	return nil
}

// completeRun records a run's terminal state. Detached from the request
// context so a cancelled caller still gets a consistent ledger.
func (o *Orchestrator) completeRun(runID string, status state.RunStatus, lastError string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := o.runs.CompleteRun(ctx, runID, status, lastError); err != nil {
		o.logger.Error("failed to record run completion", "run_id", runID, "error", err)
	}
}
