// Package workbench holds the state of one auditing client: the uploaded
// pairs, the ingest reference, the last result, and the run state machine
//
//	idle -> building-request -> awaiting-response -> result-ready | error
//
// with an apply transition from result-ready back to idle for update results.
// At most one run is in flight at a time.
package workbench

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"kb-auditor/internal/events"
	"kb-auditor/internal/kb"
	"kb-auditor/internal/pairing"
	"kb-auditor/internal/payload"
	"kb-auditor/internal/prompt"
)

// State is the run state.
type State string

const (
	StateIdle             State = "idle"
	StateBuildingRequest  State = "building-request"
	StateAwaitingResponse State = "awaiting-response"
	StateResultReady      State = "result-ready"
	StateError            State = "error"
)

// View is the panel a client shows.
type View string

const (
	ViewAudit  View = "audit"
	ViewIngest View = "ingest"
	ViewUpdate View = "update"
	ViewKB     View = "kb"
)

// emptyResult replaces a blank model response.
const emptyResult = "No response generated."

var (
	// ErrBusy is returned when a run is requested while another is in flight.
	ErrBusy = errors.New("a request is already in progress")
	// ErrNotRunnable is returned when the mode's trigger is disabled.
	ErrNotRunnable = errors.New("mode is not runnable with the current inputs")
	// ErrNothingToApply is returned by Apply without a pending update result.
	ErrNothingToApply = errors.New("no update result to apply")
	// ErrUnsupportedReference is returned for an ingest file that is not .xml or .txt.
	ErrUnsupportedReference = errors.New("reference file must be .xml or .txt")
)

// Evaluator sends a built request to a model.
type Evaluator interface {
	Evaluate(ctx context.Context, req prompt.Request) (string, error)
}

// RunRequest starts a run.
type RunRequest struct {
	Mode        prompt.Mode
	Model       string
	Instruction string
}

// Result is a finished run.
type Result struct {
	ID    uuid.UUID   `json:"id"`
	Mode  prompt.Mode `json:"mode"`
	Model string      `json:"model"`
	Text  string      `json:"text"`
}

// Workbench is safe for concurrent use.
type Workbench struct {
	store  kb.Store
	eval   Evaluator
	events events.Publisher
	log    *slog.Logger

	mu          sync.Mutex
	state       State
	view        View
	model       string
	pairs       pairing.Set
	reference   *payload.File
	instruction string
	result      string
	noOutput    bool // result is the placeholder for an empty response
	lastMode    prompt.Mode
	lastErr     string
	runSeq      uint64
}

// New returns an idle workbench showing the audit view.
func New(store kb.Store, eval Evaluator, pub events.Publisher, log *slog.Logger, defaultModel string) *Workbench {
	if pub == nil {
		pub = events.NoOpPublisher{}
	}
	return &Workbench{
		store:  store,
		eval:   eval,
		events: pub,
		log:    log,
		state:  StateIdle,
		view:   ViewAudit,
		model:  defaultModel,
	}
}

// AddFiles feeds files to pairing and returns how many were accepted.
func (w *Workbench) AddFiles(files ...payload.File) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.pairs.Add(files...)
}

// RemovePair drops a pair by stem.
func (w *Workbench) RemovePair(stem string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.pairs.Remove(stem)
}

// ClearPairs drops every pair.
func (w *Workbench) ClearPairs() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pairs.Clear()
}

// SetReference selects the ingest reference file.
func (w *Workbench) SetReference(f payload.File) error {
	if !pairing.IsAllowedReference(f.Name) {
		return fmt.Errorf("%w: %s", ErrUnsupportedReference, f.Name)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.reference = &f
	return nil
}

// ClearReference deselects the ingest reference file.
func (w *Workbench) ClearReference() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.reference = nil
}

// SetInstruction stores the update instruction.
func (w *Workbench) SetInstruction(text string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.instruction = text
}

// SetModel selects the model used when a run names none.
func (w *Workbench) SetModel(model string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.model = model
}

// SetView switches the active panel.
func (w *Workbench) SetView(v View) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.view = v
}

// Runnable reports whether the trigger for mode is enabled.
func (w *Workbench) Runnable(mode prompt.Mode) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.runnableLocked(mode)
}

func (w *Workbench) runnableLocked(mode prompt.Mode) bool {
	if w.inFlightLocked() {
		return false
	}
	switch mode {
	case prompt.ModeAudit:
		return w.pairs.HasReady()
	case prompt.ModeIngest:
		return w.reference != nil
	case prompt.ModeUpdate:
		return w.instruction != ""
	}
	return false
}

func (w *Workbench) inFlightLocked() bool {
	return w.state == StateBuildingRequest || w.state == StateAwaitingResponse
}

// Run builds the request for req.Mode from the current inputs and knowledge
// base, sends it, and records the result. The previous result is discarded.
func (w *Workbench) Run(ctx context.Context, req RunRequest) (Result, error) {
	mode, err := prompt.ParseMode(string(req.Mode))
	if err != nil {
		return Result{}, err
	}

	w.mu.Lock()
	if w.inFlightLocked() {
		w.mu.Unlock()
		return Result{}, ErrBusy
	}
	if req.Model != "" {
		w.model = req.Model
	}
	if mode == prompt.ModeUpdate && req.Instruction != "" {
		w.instruction = req.Instruction
	}
	if !w.runnableLocked(mode) {
		w.mu.Unlock()
		return Result{}, fmt.Errorf("%w: %s", ErrNotRunnable, mode)
	}
	model := w.model
	files := w.pairs.ReadyFiles()
	var reference payload.File
	if w.reference != nil {
		reference = *w.reference
	}
	instruction := w.instruction
	w.state = StateBuildingRequest
	w.view = View(mode)
	w.result, w.lastMode, w.lastErr, w.noOutput = "", "", "", false
	w.runSeq++
	w.mu.Unlock()

	id := uuid.New()
	log := w.log.With("evaluation_id", id, "mode", mode, "model", model)
	start := time.Now()

	text, err := w.evaluate(ctx, log, mode, model, files, reference, instruction)

	w.mu.Lock()
	if err != nil {
		w.state = StateError
		w.lastErr = err.Error()
	} else {
		if text == "" {
			text = emptyResult
			w.noOutput = true
		}
		w.state = StateResultReady
		w.result = text
		w.lastMode = mode
	}
	w.mu.Unlock()

	ev := events.EvaluationPayload{
		EvaluationID: id,
		Mode:         string(mode),
		Model:        model,
		DurationMS:   time.Since(start).Milliseconds(),
	}
	if mode == prompt.ModeAudit {
		ev.Pairs = len(files)
	}
	if err != nil {
		ev.Error = err.Error()
		log.Error("evaluation failed", "err", err, "duration_ms", ev.DurationMS)
	} else {
		log.Info("evaluation completed", "duration_ms", ev.DurationMS, "bytes", len(text))
	}
	events.Emit(ctx, w.events, events.TypeEvaluationCompleted, ev, func(err error) {
		log.Warn("failed to publish evaluation event", "err", err)
	})

	if err != nil {
		return Result{}, err
	}
	return Result{ID: id, Mode: mode, Model: model, Text: text}, nil
}

func (w *Workbench) evaluate(ctx context.Context, log *slog.Logger, mode prompt.Mode, model string, files []payload.FilePair, reference payload.File, instruction string) (string, error) {
	knowledgeBase, err := w.store.Load(ctx)
	if err != nil {
		return "", err
	}

	var in prompt.Inputs
	switch mode {
	case prompt.ModeAudit:
		in.Pairs, err = payload.EncodePairs(ctx, files)
	case prompt.ModeIngest:
		var ref payload.Blob
		ref, err = payload.Encode(reference)
		in.Reference = &ref
	case prompt.ModeUpdate:
		in.Instruction = instruction
	}
	if err != nil {
		return "", err
	}

	req, err := prompt.Build(knowledgeBase, mode, model, in)
	if err != nil {
		return "", err
	}

	w.mu.Lock()
	w.state = StateAwaitingResponse
	w.mu.Unlock()
	log.Debug("request built", "parts", len(req.Parts))

	return w.eval.Evaluate(ctx, req)
}

// Apply writes the pending update result to the knowledge base, stripping a
// wrapping code fence, and returns to idle on the knowledge base view. Only
// non-empty results of update runs can be applied.
//
// The lock is released while saving. If a new run starts meanwhile, the save
// still happens but the new run's state is left alone.
func (w *Workbench) Apply(ctx context.Context) (string, error) {
	w.mu.Lock()
	if !w.applicableLocked() {
		w.mu.Unlock()
		return "", ErrNothingToApply
	}
	text := kb.StripCodeFence(w.result)
	seq := w.runSeq
	w.mu.Unlock()

	if err := w.store.Save(ctx, text); err != nil {
		return "", err
	}

	w.mu.Lock()
	if w.runSeq == seq && w.applicableLocked() {
		w.state = StateIdle
		w.view = ViewKB
		w.result, w.lastMode = "", ""
	}
	w.mu.Unlock()

	events.Emit(ctx, w.events, events.TypeKBSaved, events.KBPayload{Source: "apply", Bytes: len(text)}, func(err error) {
		w.log.Warn("failed to publish kb event", "err", err)
	})
	return text, nil
}

func (w *Workbench) applicableLocked() bool {
	return w.state == StateResultReady && w.lastMode == prompt.ModeUpdate && !w.noOutput
}

// PairStatus describes one pair for display.
type PairStatus struct {
	Stem   string `json:"stem"`
	Source string `json:"source,omitempty"`
	XML    string `json:"xml,omitempty"`
	Ready  bool   `json:"ready"`
}

// Snapshot is a point-in-time view of the workbench.
type Snapshot struct {
	State       State                `json:"state"`
	View        View                 `json:"view"`
	Model       string               `json:"model"`
	Pairs       []PairStatus         `json:"pairs"`
	Reference   string               `json:"reference,omitempty"`
	Instruction string               `json:"instruction"`
	Triggers    map[prompt.Mode]bool `json:"triggers"`
	Result      string               `json:"result,omitempty"`
	LastMode    prompt.Mode          `json:"last_mode,omitempty"`
	Error       string               `json:"error,omitempty"`
	CanApply    bool                 `json:"can_apply"`
}

// Snapshot returns the current state.
func (w *Workbench) Snapshot() Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()

	s := Snapshot{
		State:       w.state,
		View:        w.view,
		Model:       w.model,
		Pairs:       []PairStatus{},
		Instruction: w.instruction,
		Triggers:    make(map[prompt.Mode]bool, 3),
		Result:      w.result,
		LastMode:    w.lastMode,
		Error:       w.lastErr,
		CanApply:    w.applicableLocked(),
	}
	for _, p := range w.pairs.All() {
		ps := PairStatus{Stem: p.Stem, Ready: p.Ready()}
		if p.Source != nil {
			ps.Source = p.Source.Name
		}
		if p.XML != nil {
			ps.XML = p.XML.Name
		}
		s.Pairs = append(s.Pairs, ps)
	}
	if w.reference != nil {
		s.Reference = w.reference.Name
	}
	for _, m := range []prompt.Mode{prompt.ModeAudit, prompt.ModeIngest, prompt.ModeUpdate} {
		s.Triggers[m] = w.runnableLocked(m)
	}
	return s
}
