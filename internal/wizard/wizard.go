// Package wizard implements the guided truck entry conversation.
//
// The wizard is an interpreter over the declarative Steps table: each inbound
// message either re-prompts the current step, advances along the step's Next
// edge, or acts on the review at the confirm step.
package wizard

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"truck_notify_bot/internal/domain"
	"truck_notify_bot/internal/logging"
)

// ErrWizardFailure marks an unexpected failure while advancing a session.
// The session has already been deleted when it is returned.
var ErrWizardFailure = errors.New("wizard failure")

// Outcome classifies a wizard reply.
type Outcome string

const (
	OutcomePrompt    Outcome = "prompt"
	OutcomeInvalid   Outcome = "invalid"
	OutcomeReview    Outcome = "review"
	OutcomeSubmit    Outcome = "submit"
	OutcomeCancelled Outcome = "cancelled"
)

const (
	msgCancelled = "✅ Wizard cancelled. Send `/newtruck` to start again or `/help` for other commands."
	msgNoSession = "No active session to cancel. Send `/help` for available commands."
	msgFailure   = "❌ Error in wizard process. Session cancelled. Type `/newtruck` to start over."
)

var cancelTokens = map[string]struct{}{
	"cancel":  {},
	"/cancel": {},
	"exit":    {},
	"/exit":   {},
}

var confirmTokens = map[string]struct{}{
	"confirm": {},
	"yes":     {},
}

// IsCancel reports whether text is a global cancel token.
func IsCancel(text string) bool {
	_, ok := cancelTokens[strings.ToLower(strings.TrimSpace(text))]
	return ok
}

// Reply is what the caller sends back to the user. Entry is set only for
// OutcomeSubmit.
type Reply struct {
	Text    string
	Outcome Outcome
	Step    StepKey
	Entry   *domain.SheetEntry
}

// Wizard drives sessions held in a Store.
type Wizard struct {
	store  Store
	logger *logrus.Entry
	now    func() time.Time
	steps  map[StepKey]Step
}

// New constructs a Wizard over store.
func New(store Store, logger *logrus.Entry) *Wizard {
	if logger == nil {
		logger = logging.Logger()
	}

	table := Steps()
	steps := make(map[StepKey]Step, len(table))
	for _, step := range table {
		steps[step.Key] = step
	}

	return &Wizard{
		store:  store,
		logger: logger,
		now:    time.Now,
		steps:  steps,
	}
}

// Start (re)creates the user's session at the first step.
func (w *Wizard) Start(ctx context.Context, userID string) (Reply, error) {
	if err := w.ready(ctx); err != nil {
		return Reply{}, err
	}

	now := w.now().UTC()
	session := Session{
		UserID:    userID,
		Step:      StepStart,
		Entry:     domain.SheetEntry{Target: domain.SheetTransit},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := w.store.Create(ctx, session); err != nil {
		return Reply{}, fmt.Errorf("create wizard session: %w", err)
	}

	w.log(userID, StepStart).WithField("event", "wizard_started").Info("wizard session started")

	start := w.steps[StepStart]
	return Reply{Text: start.Prompt(session.Entry), Outcome: OutcomePrompt, Step: StepStart}, nil
}

// Active reports whether the user has a live session.
func (w *Wizard) Active(ctx context.Context, userID string) (bool, error) {
	if err := w.ready(ctx); err != nil {
		return false, err
	}

	_, err := w.store.Get(ctx, userID)
	if errors.Is(err, ErrNoSession) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get wizard session: %w", err)
	}
	return true, nil
}

// Cancel deletes the user's session if present.
func (w *Wizard) Cancel(ctx context.Context, userID string) (Reply, error) {
	active, err := w.Active(ctx, userID)
	if err != nil {
		return Reply{}, err
	}
	if !active {
		return Reply{Text: msgNoSession, Outcome: OutcomeCancelled}, nil
	}

	if err := w.store.Delete(ctx, userID); err != nil {
		return Reply{}, fmt.Errorf("delete wizard session: %w", err)
	}

	w.log(userID, "").WithField("event", "wizard_cancelled").Info("wizard session cancelled")
	return Reply{Text: msgCancelled, Outcome: OutcomeCancelled}, nil
}

// Handle feeds one message into the user's session. It returns ErrNoSession
// when there is nothing to advance, and an error wrapping ErrWizardFailure
// (with a user-facing Reply) when the session had to be aborted.
func (w *Wizard) Handle(ctx context.Context, userID, input string) (reply Reply, err error) {
	if err := w.ready(ctx); err != nil {
		return Reply{}, err
	}
	if IsCancel(input) {
		return w.Cancel(ctx, userID)
	}

	session, err := w.store.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNoSession) {
			return Reply{}, ErrNoSession
		}
		return Reply{}, fmt.Errorf("get wizard session: %w", err)
	}

	defer func() {
		if r := recover(); r != nil {
			reply, err = w.abort(ctx, session, fmt.Errorf("panic: %v", r))
		}
	}()

	input = strings.TrimSpace(input)
	step, ok := w.steps[session.Step]
	if !ok {
		return w.abort(ctx, session, fmt.Errorf("unknown step %q", session.Step))
	}

	if step.Key == StepConfirm {
		return w.review(ctx, session, input)
	}

	if problem := step.Accept(&session.Entry, input); problem != "" {
		w.log(userID, step.Key).WithField("event", "wizard_invalid_input").Debug("wizard input rejected")
		return Reply{Text: problem, Outcome: OutcomeInvalid, Step: step.Key}, nil
	}

	next := step.Next(session.Entry)
	if session.Editing && step.Key != StepTargetSheet {
		next = StepConfirm
	}
	if next == StepConfirm {
		session.Editing = false
	}

	return w.advance(ctx, session, next)
}

func (w *Wizard) advance(ctx context.Context, session Session, next StepKey) (Reply, error) {
	step, ok := w.steps[next]
	if !ok {
		return w.abort(ctx, session, fmt.Errorf("unknown next step %q", next))
	}

	session.Step = next
	session.UpdatedAt = w.now().UTC()
	if err := w.store.Update(ctx, session); err != nil {
		return w.abort(ctx, session, fmt.Errorf("update wizard session: %w", err))
	}

	outcome := OutcomePrompt
	if next == StepConfirm {
		outcome = OutcomeReview
	}
	return Reply{Text: step.Prompt(session.Entry), Outcome: outcome, Step: next}, nil
}

// review handles input at the confirm step.
func (w *Wizard) review(ctx context.Context, session Session, input string) (Reply, error) {
	lower := strings.ToLower(input)

	if _, ok := confirmTokens[lower]; ok {
		if err := w.store.Delete(ctx, session.UserID); err != nil {
			return w.abort(ctx, session, fmt.Errorf("delete wizard session: %w", err))
		}
		entry := session.Entry
		w.log(session.UserID, StepConfirm).WithFields(logging.Fields{
			"event": "wizard_submitted",
			"truck": entry.Truck,
			"sheet": entry.Sheet(),
		}).Info("wizard entry confirmed")
		return Reply{Outcome: OutcomeSubmit, Step: StepConfirm, Entry: &entry}, nil
	}

	if field, ok := strings.CutPrefix(lower, "edit"); ok && (field == "" || field[0] == ' ') {
		field = strings.TrimSpace(field)
		target, found := w.editable(session.Entry.Sheet(), field)
		if !found {
			return Reply{
				Text:    fmt.Sprintf("⚠️ Unknown field `%s`. Fields: %s", field, strings.Join(editableFields(session.Entry.Sheet()), ", ")),
				Outcome: OutcomeInvalid,
				Step:    StepConfirm,
			}, nil
		}
		session.Editing = true
		return w.advance(ctx, session, target.Key)
	}

	return Reply{Text: Summary(session.Entry), Outcome: OutcomeReview, Step: StepConfirm}, nil
}

// editable resolves an edit target by field name or step key for sheet.
func (w *Wizard) editable(sheet domain.TargetSheet, name string) (Step, bool) {
	for _, key := range pathFor(w.steps, sheet) {
		step := w.steps[key]
		if strings.EqualFold(step.Field, name) || strings.EqualFold(string(step.Key), name) {
			return step, true
		}
	}
	return Step{}, false
}

func (w *Wizard) abort(ctx context.Context, session Session, cause error) (Reply, error) {
	if err := w.store.Delete(ctx, session.UserID); err != nil {
		cause = fmt.Errorf("%v; delete session: %w", cause, err)
	}

	w.log(session.UserID, session.Step).WithFields(logging.Fields{
		"event": "wizard_failed",
		"error": cause.Error(),
	}).Error("wizard session aborted")

	return Reply{Text: msgFailure, Outcome: OutcomeCancelled, Step: session.Step},
		fmt.Errorf("%w at step %s: %v", ErrWizardFailure, session.Step, cause)
}

func (w *Wizard) ready(ctx context.Context) error {
	if w == nil || w.store == nil {
		return errors.New("wizard is not initialized")
	}
	if ctx == nil {
		return errors.New("context is required")
	}
	return nil
}

func (w *Wizard) log(userID string, step StepKey) *logrus.Entry {
	return logging.Annotate(w.logger, logging.Context{UserID: userID, Step: string(step)})
}

// Graph returns the step table keyed by step.
func (w *Wizard) Graph() map[StepKey]Step {
	graph := make(map[StepKey]Step, len(w.steps))
	for key, step := range w.steps {
		graph[key] = step
	}
	return graph
}

// pathFor walks the graph from start to confirm for the given sheet.
func pathFor(steps map[StepKey]Step, sheet domain.TargetSheet) []StepKey {
	entry := domain.SheetEntry{Target: sheet}
	var path []StepKey
	for key := StepStart; key != StepConfirm; {
		step, ok := steps[key]
		if !ok || len(path) > len(steps) {
			break
		}
		path = append(path, key)
		key = step.Next(entry)
	}
	return path
}

// editableFields lists the field names accepted by `edit` for sheet.
func editableFields(sheet domain.TargetSheet) []string {
	steps := make(map[StepKey]Step)
	for _, step := range Steps() {
		steps[step.Key] = step
	}

	var fields []string
	for _, key := range pathFor(steps, sheet) {
		fields = append(fields, steps[key].Field)
	}
	return fields
}
