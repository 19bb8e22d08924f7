package session

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/rezonia/cufe-expenses/internal/acquisition"
	"github.com/rezonia/cufe-expenses/internal/categorizer"
	"github.com/rezonia/cufe-expenses/internal/cufe"
	"github.com/rezonia/cufe-expenses/internal/model"
	"github.com/rezonia/cufe-expenses/internal/store"
)

// DefaultTimeout bounds a whole acquisition run
const DefaultTimeout = 5 * time.Minute

// Acquirer opens an acquisition event stream
type Acquirer interface {
	Acquire(ctx context.Context, req acquisition.Request) (*acquisition.Stream, error)
}

// Categorizer turns extracted invoice data into suggested expenses
type Categorizer interface {
	BuildSuggestedExpenses(data *model.ExtractedInvoiceData) []model.SuggestedExpense
}

// Observer receives every new snapshot. It runs under the orchestrator lock
// and must not call back into the orchestrator.
type Observer func(Session)

// StartOptions tune a single run
type StartOptions struct {
	MaxRetries    int
	CaptchaAPIKey string
	Timeout       time.Duration
}

// Orchestrator owns one processing session at a time.
type Orchestrator struct {
	acquirer    Acquirer
	gate        store.DuplicateGate
	invoices    store.InvoiceStore
	categorizer Categorizer
	logger      zerolog.Logger
	observers   []Observer
	timeout     time.Duration

	mu      sync.Mutex
	state   Session
	userID  string
	gen     uint64
	cancel  context.CancelFunc
	stream  *acquisition.Stream
	changed chan struct{}
}

// Option configures an Orchestrator
type Option func(*Orchestrator)

// WithDuplicateGate enables the per-user duplicate check before acquisition.
func WithDuplicateGate(g store.DuplicateGate) Option {
	return func(o *Orchestrator) {
		o.gate = g
	}
}

func WithInvoiceStore(s store.InvoiceStore) Option {
	return func(o *Orchestrator) {
		o.invoices = s
	}
}

func WithCategorizer(c Categorizer) Option {
	return func(o *Orchestrator) {
		o.categorizer = c
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = l
	}
}

func WithObserver(fn Observer) Option {
	return func(o *Orchestrator) {
		if fn != nil {
			o.observers = append(o.observers, fn)
		}
	}
}

// WithDefaultTimeout sets the run timeout used when StartOptions.Timeout is zero.
func WithDefaultTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// NewOrchestrator creates an idle orchestrator
func NewOrchestrator(acquirer Acquirer, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		acquirer: acquirer,
		logger:   zerolog.Nop(),
		timeout:  DefaultTimeout,
		state:    newIdle(),
		changed:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.categorizer == nil {
		o.categorizer = categorizer.NewDefault(categorizer.WithLogger(o.logger))
	}
	return o
}

// Snapshot returns a copy of the current session.
func (o *Orchestrator) Snapshot() Session {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state.clone()
}

// Wait blocks until no run or save is in flight, or ctx is done.
func (o *Orchestrator) Wait(ctx context.Context) (Session, error) {
	for {
		o.mu.Lock()
		snap := o.state.clone()
		ch := o.changed
		o.mu.Unlock()

		if !snap.Status.Busy() {
			return snap, nil
		}
		select {
		case <-ch:
		case <-ctx.Done():
			return snap, ctx.Err()
		}
	}
}

// Start validates code and opens the acquisition stream. It returns once the
// stream is open; events are applied in the background. A validation failure
// or a failure to connect leaves the session in the error state and is returned.
func (o *Orchestrator) Start(ctx context.Context, userID, code string, opts StartOptions) error {
	o.mu.Lock()
	if o.state.Status.Busy() {
		o.mu.Unlock()
		return ErrAlreadyProcessing
	}
	o.gen++
	gen := o.gen
	o.userID = userID
	o.state = newIdle()
	o.state.Status = StatusValidating
	o.state.CUFE = cufe.Normalize(code)
	o.state.Message = "Validando CUFE"
	o.notifyLocked()
	o.mu.Unlock()

	result := cufe.Validate(ctx, code, store.Checker(o.gate, userID))

	o.mu.Lock()
	if o.gen != gen {
		o.mu.Unlock()
		return ErrCancelled
	}
	if !result.IsValid {
		o.failLocked(result.Kind, result.Error)
		o.mu.Unlock()
		o.logger.Warn().Str("cufe", result.Code).Str("kind", string(result.Kind)).Msg("cufe rejected")
		return result.Err()
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = o.timeout
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	o.cancel = cancel
	o.state.CUFE = result.Code
	o.state.Status = StatusDownloading
	o.state.Message = "Conectando con el servicio de descarga"
	o.notifyLocked()
	o.mu.Unlock()

	stream, err := o.acquirer.Acquire(runCtx, acquisition.Request{
		CUFE:          result.Code,
		MaxRetries:    opts.MaxRetries,
		CaptchaAPIKey: opts.CaptchaAPIKey,
	})

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.gen != gen {
		if stream != nil {
			_ = stream.Close()
		}
		cancel()
		return ErrCancelled
	}
	if err != nil {
		cancel()
		o.cancel = nil
		kind := model.KindOf(err)
		if kind == "" {
			kind = model.KindNetwork
		}
		o.failLocked(kind, errorMessage(err))
		o.logger.Error().Err(err).Str("cufe", result.Code).Msg("acquisition failed to start")
		return err
	}
	o.stream = stream
	go o.consume(gen, runCtx, stream)
	return nil
}

func (o *Orchestrator) consume(gen uint64, ctx context.Context, stream *acquisition.Stream) {
	defer stream.Close()
	for ev := range stream.Events() {
		if o.apply(gen, ev) {
			return
		}
	}
	o.streamEnded(gen, ctx, stream)
}

// apply reports whether consumption should stop.
func (o *Orchestrator) apply(gen uint64, ev acquisition.Event) bool {
	switch e := ev.(type) {
	case acquisition.ProgressEvent:
		o.mu.Lock()
		defer o.mu.Unlock()
		if !o.acceptsEventsLocked(gen) {
			return true
		}
		o.applyProgressLocked(e)
		return false

	case acquisition.CompleteEvent:
		data := e.Result.ToInvoiceData()
		expenses := o.categorizer.BuildSuggestedExpenses(data)

		o.mu.Lock()
		defer o.mu.Unlock()
		if !o.acceptsEventsLocked(gen) {
			return true
		}
		o.state.Status = StatusSuccess
		o.state.Progress = 100
		o.state.Message = "Factura procesada"
		o.state.CaptchaInfo = nil
		o.state.CurrentInvoice = data
		o.state.SuggestedExpenses = expenses
		o.finishRunLocked()
		o.notifyLocked()
		o.logger.Info().Str("cufe", o.state.CUFE).Int("items", len(data.Items)).
			Int("expenses", len(expenses)).Msg("invoice acquired")
		return true

	case acquisition.ErrorEvent:
		o.mu.Lock()
		defer o.mu.Unlock()
		if !o.acceptsEventsLocked(gen) {
			return true
		}
		o.failLocked(model.KindProcessingFailed, e.Message)
		o.logger.Error().Str("cufe", o.state.CUFE).Str("error", e.Message).Msg("acquisition service reported an error")
		return true
	}
	return false
}

func (o *Orchestrator) applyProgressLocked(e acquisition.ProgressEvent) {
	o.state.Status = StatusForStep(e.Step, o.state.Status)
	o.state.Progress = clampProgress(e.Progress)
	o.state.Message = e.Message
	o.state.Details = string(e.Details)
	if e.Captcha != nil {
		c := *e.Captcha
		o.state.CaptchaInfo = &c
	}
	o.notifyLocked()
}

func (o *Orchestrator) streamEnded(gen uint64, ctx context.Context, stream *acquisition.Stream) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.acceptsEventsLocked(gen) {
		return
	}

	msg := "La conexión con el servicio se cerró antes de completar el proceso"
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		msg = "Tiempo de espera agotado procesando la factura"
	case stream.Err() != nil:
		msg = errorMessage(stream.Err())
	}
	o.failLocked(model.KindNetwork, msg)
	o.logger.Error().Str("cufe", o.state.CUFE).Str("error", msg).Msg("acquisition stream ended")
}

func (o *Orchestrator) acceptsEventsLocked(gen uint64) bool {
	if o.gen != gen {
		return false
	}
	return o.state.Status == StatusDownloading || o.state.Status == StatusExtracting
}

// Cancel abandons the current run or save and returns to idle.
func (o *Orchestrator) Cancel() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.gen++
	o.finishRunLocked()
	o.state = newIdle()
	o.notifyLocked()
}

// Reset is Cancel under the name the UI uses for "process another invoice".
func (o *Orchestrator) Reset() {
	o.Cancel()
}

// MarkReviewing moves a successful session to the review step.
func (o *Orchestrator) MarkReviewing() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state.Status != StatusSuccess {
		return fmt.Errorf("mark reviewing from %s: %w", o.state.Status, ErrInvalidState)
	}
	o.state.Status = StatusReviewing
	o.state.Message = "Revisa los gastos sugeridos"
	o.notifyLocked()
	return nil
}

// Persist saves the current invoice and expenses. A nil expenses slice saves
// the suggested expenses unchanged. After a SAVE_FAILED error it may be
// called again; an invoice already saved is not inserted twice.
func (o *Orchestrator) Persist(ctx context.Context, expenses []model.SuggestedExpense) (string, error) {
	o.mu.Lock()
	if !o.canPersistLocked() {
		status := o.state.Status
		o.mu.Unlock()
		return "", fmt.Errorf("persist from %s: %w", status, ErrInvalidState)
	}
	if o.state.CurrentInvoice == nil {
		o.mu.Unlock()
		return "", ErrNothingToPersist
	}
	if o.invoices == nil {
		o.mu.Unlock()
		return "", fmt.Errorf("persist: no invoice store configured: %w", ErrInvalidState)
	}
	if expenses == nil {
		expenses = o.state.SuggestedExpenses
	}
	gen := o.gen
	userID := o.userID
	code := o.state.CUFE
	data := o.state.CurrentInvoice
	invoiceID := o.state.InvoiceID
	o.state.Status = StatusSaving
	o.state.Message = "Guardando factura"
	o.state.Error = ""
	o.state.ErrorKind = ""
	o.notifyLocked()
	o.mu.Unlock()

	if invoiceID == "" {
		id, err := o.invoices.SaveInvoice(ctx, store.InvoiceRecord{UserID: userID, CUFE: code, Data: data})
		if err != nil {
			return "", o.saveFailed(gen, expenses, "No se pudo guardar la factura", err)
		}
		invoiceID = id

		o.mu.Lock()
		if o.gen == gen {
			o.state.InvoiceID = id
		}
		o.mu.Unlock()
	}

	if err := o.invoices.CreateExpenses(ctx, invoiceID, userID, expenses); err != nil {
		return "", o.saveFailed(gen, expenses, "No se pudieron guardar los gastos", err)
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.gen != gen {
		return invoiceID, ErrCancelled
	}
	o.state.Status = StatusSuccess
	o.state.Progress = 100
	o.state.Message = "Factura y gastos guardados"
	o.state.SuggestedExpenses = append([]model.SuggestedExpense{}, expenses...)
	o.notifyLocked()
	o.logger.Info().Str("invoice_id", invoiceID).Int("expenses", len(expenses)).Msg("invoice persisted")
	return invoiceID, nil
}

func (o *Orchestrator) canPersistLocked() bool {
	switch o.state.Status {
	case StatusSuccess, StatusReviewing:
		return true
	case StatusError:
		return o.state.ErrorKind == model.KindSaveFailed
	}
	return false
}

func (o *Orchestrator) saveFailed(gen uint64, expenses []model.SuggestedExpense, msg string, cause error) error {
	o.logger.Error().Err(cause).Msg(msg)
	perr := model.NewProcessingError(model.KindSaveFailed, msg, cause)

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.gen != gen {
		return perr
	}
	o.state.SuggestedExpenses = append([]model.SuggestedExpense{}, expenses...)
	o.failLocked(model.KindSaveFailed, msg+": "+cause.Error())
	return perr
}

// failLocked moves to the error state and keeps invoice data already extracted.
func (o *Orchestrator) failLocked(kind model.ErrorKind, msg string) {
	o.state.Status = StatusError
	o.state.Error = msg
	o.state.ErrorKind = kind
	o.state.Message = msg
	o.finishRunLocked()
	o.notifyLocked()
}

func (o *Orchestrator) finishRunLocked() {
	if o.cancel != nil {
		o.cancel()
		o.cancel = nil
	}
	if o.stream != nil {
		_ = o.stream.Close()
		o.stream = nil
	}
}

func (o *Orchestrator) notifyLocked() {
	snap := o.state.clone()
	for _, fn := range o.observers {
		fn(snap)
	}
	close(o.changed)
	o.changed = make(chan struct{})
}

func clampProgress(p float64) int {
	if math.IsNaN(p) {
		return 0
	}
	v := int(math.Round(p))
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func errorMessage(err error) string {
	var perr *model.ProcessingError
	if errors.As(err, &perr) {
		if perr.Cause != nil {
			return perr.Message + ": " + perr.Cause.Error()
		}
		return perr.Message
	}
	return err.Error()
}
