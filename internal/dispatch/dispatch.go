// Package dispatch routes inbound chat messages to the wizard, commands, the
// parser and the outbound collaborators, and renders every user-facing reply.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"truck_notify_bot/internal/domain"
	"truck_notify_bot/internal/logging"
	"truck_notify_bot/internal/mailer"
	"truck_notify_bot/internal/parser"
	"truck_notify_bot/internal/report"
	"truck_notify_bot/internal/sheets"
	"truck_notify_bot/internal/wizard"
)

// Sender delivers replies to a chat.
type Sender interface {
	SendText(ctx context.Context, chatID int64, text string) error
	SendDocument(ctx context.Context, chatID int64, filename string, data []byte, caption string) error
}

type messageParser interface {
	Parse(text string) parser.Result
}

type wizardEngine interface {
	Start(ctx context.Context, userID string) (wizard.Reply, error)
	Active(ctx context.Context, userID string) (bool, error)
	Cancel(ctx context.Context, userID string) (wizard.Reply, error)
	Handle(ctx context.Context, userID, input string) (wizard.Reply, error)
}

type sheetClient interface {
	Submit(ctx context.Context, entry domain.SheetEntry) (sheets.SubmitResult, error)
	TruckStatus(ctx context.Context, query string, sheet domain.TargetSheet) (sheets.LookupResult, error)
	RowDetails(ctx context.Context, row string, sheet domain.TargetSheet) (sheets.LookupResult, error)
}

type reportRenderer interface {
	Repair(rep domain.RepairReport) (report.Document, error)
	Stay(rep domain.StayReport) (report.Document, error)
	Rows(sheet domain.TargetSheet, rows []sheets.Row) (report.Attachment, error)
}

type emailSender interface {
	Enabled() bool
	Send(ctx context.Context, msg mailer.Message) error
}

type reportLog interface {
	Create(ctx context.Context, record domain.ReportRecord) (domain.ReportRecord, error)
	UpdateStatus(ctx context.Context, id, status, errText string) error
}

type userLookup interface {
	GetByID(ctx context.Context, userID int64) (domain.User, error)
}

type recordCounter interface {
	CountUsers(ctx context.Context) (int64, error)
	CountReports(ctx context.Context) (int64, error)
	CountFailedReports(ctx context.Context) (int64, error)
}

type sessionCounter interface {
	Count(ctx context.Context) (int64, error)
}

// Deps are the collaborators of a Dispatcher. Sender, Parser, Wizard, Sheets
// and Renderer are required; the rest degrade gracefully when nil.
type Deps struct {
	Sender            Sender
	Parser            messageParser
	Wizard            wizardEngine
	Sheets            sheetClient
	Renderer          reportRenderer
	Mailer            emailSender
	Reports           reportLog
	Users             userLookup
	Counts            recordCounter
	Sessions          sessionCounter
	Stats             *Stats
	AdminChatID       int64
	DefaultRecipients []string
	Logger            *logrus.Entry
}

// Message is one inbound chat message.
type Message struct {
	UserID   int64
	ChatID   int64
	Username string
	Text     string
}

func (m Message) who() string {
	if m.Username != "" {
		return fmt.Sprintf("%d (@%s)", m.UserID, m.Username)
	}
	return strconv.FormatInt(m.UserID, 10)
}

func (m Message) sessionKey() string {
	return strconv.FormatInt(m.UserID, 10)
}

var (
	statusShortcut = regexp.MustCompile(`(?i)^status\s+([A-Za-z0-9/]+)(\s+sct)?$`)
	rowShortcut    = regexp.MustCompile(`(?i)^row\s+(\d+)(\s+sct)?$`)
)

// Dispatcher handles inbound messages. Calls for the same user run one at a
// time; different users proceed in parallel.
type Dispatcher struct {
	deps   Deps
	admin  *Notifier
	stats  *Stats
	locks  userLocks
	logger *logrus.Entry
	now    func() time.Time
}

// New validates deps and constructs a Dispatcher.
func New(deps Deps) (*Dispatcher, error) {
	switch {
	case deps.Sender == nil:
		return nil, errors.New("sender is required")
	case deps.Parser == nil:
		return nil, errors.New("parser is required")
	case deps.Wizard == nil:
		return nil, errors.New("wizard is required")
	case deps.Sheets == nil:
		return nil, errors.New("sheets client is required")
	case deps.Renderer == nil:
		return nil, errors.New("report renderer is required")
	}

	logger := deps.Logger
	if logger == nil {
		logger = logging.Logger()
	}
	stats := deps.Stats
	if stats == nil {
		stats = NewStats(time.Now())
	}

	return &Dispatcher{
		deps:   deps,
		admin:  NewNotifier(deps.Sender, deps.AdminChatID, logger),
		stats:  stats,
		logger: logger,
		now:    time.Now,
	}, nil
}

// Stats exposes the traffic counters.
func (d *Dispatcher) Stats() *Stats {
	return d.stats
}

// HandleMessage processes one inbound message end to end. The returned error
// is for logging; the user has already been told something went wrong.
func (d *Dispatcher) HandleMessage(ctx context.Context, msg Message) error {
	if d == nil {
		return errors.New("dispatcher is not initialized")
	}
	if ctx == nil {
		return errors.New("context is required")
	}

	d.stats.message(d.now())
	msg.Text = parser.Sanitize(msg.Text)

	unlock := d.locks.lock(msg.sessionKey())
	defer unlock()

	log := d.log(msg, "message_received")
	log.WithField("text", preview(msg.Text)).Info("message received")

	if err := d.route(ctx, msg); err != nil {
		d.log(msg, "message_failed").WithError(err).Error("message handling failed")
		_ = d.reply(ctx, msg, msgInternalError)
		d.admin.Notify(ctx, fmt.Sprintf("*Message Handler Error:*\nFrom: %s\nError: %v", msg.who(), err))
		return err
	}

	return nil
}

func (d *Dispatcher) route(ctx context.Context, msg Message) error {
	text := msg.Text

	if wizard.IsCancel(text) {
		reply, err := d.deps.Wizard.Cancel(ctx, msg.sessionKey())
		if err != nil {
			return fmt.Errorf("cancel wizard: %w", err)
		}
		return d.reply(ctx, msg, reply.Text)
	}

	// The trigger restarts guided entry even mid-session.
	if isNewTruck(text) {
		return d.handleCommand(ctx, msg, "/newtruck")
	}

	active, err := d.deps.Wizard.Active(ctx, msg.sessionKey())
	if err != nil {
		return fmt.Errorf("check wizard session: %w", err)
	}
	if active {
		return d.handleWizard(ctx, msg)
	}

	if strings.HasPrefix(text, "/") {
		return d.handleCommand(ctx, msg, text)
	}

	if m := statusShortcut.FindStringSubmatch(text); m != nil {
		return d.handleCommand(ctx, msg, "/status "+m[1]+m[2])
	}
	if m := rowShortcut.FindStringSubmatch(text); m != nil {
		return d.handleCommand(ctx, msg, "/row "+m[1]+m[2])
	}
	return d.handleParsed(ctx, msg, d.deps.Parser.Parse(text))
}

func (d *Dispatcher) handleParsed(ctx context.Context, msg Message, result parser.Result) error {
	switch result.Kind {
	case parser.KindGreeting:
		return d.reply(ctx, msg, mainMenu)
	case parser.KindCommand:
		return d.handleCommand(ctx, msg, result.Command)
	case parser.KindSheetCreation:
		if result.Sheet != nil {
			return d.submitEntry(ctx, msg, *result.Sheet)
		}
	case parser.KindRepairReport:
		if result.Repair != nil {
			return d.handleRepair(ctx, msg, *result.Repair)
		}
	case parser.KindStayReport:
		if result.Stay != nil {
			return d.handleStay(ctx, msg, *result.Stay)
		}
	case parser.KindIncomplete:
		if result.Incomplete != nil {
			missing := make([]string, 0, len(result.Incomplete.Missing))
			for _, field := range result.Incomplete.Missing {
				missing = append(missing, field.String())
			}
			d.log(msg, "parse_incomplete").WithField("missing", result.Incomplete.Labels()).Info("message missing fields")
			return d.reply(ctx, msg, fmt.Sprintf("⚠️ Missing fields: %s. Please check the format using /format or use /newtruck for guided entry.", strings.Join(missing, ", ")))
		}
	case parser.KindError:
		return d.reply(ctx, msg, "❌ Could not process your message: "+result.Reason)
	}

	return d.reply(ctx, msg, msgFallback)
}

func (d *Dispatcher) handleWizard(ctx context.Context, msg Message) error {
	reply, err := d.deps.Wizard.Handle(ctx, msg.sessionKey(), msg.Text)
	switch {
	case errors.Is(err, wizard.ErrWizardFailure):
		d.admin.Notify(ctx, fmt.Sprintf("*Wizard Error:*\nUser: %s\nError: %v", msg.who(), err))
		text := reply.Text
		if text == "" {
			text = msgWizardInterrupt
		}
		return d.reply(ctx, msg, text)
	case errors.Is(err, wizard.ErrNoSession):
		// Session expired between the Active check and Handle.
		return d.handleParsed(ctx, msg, d.deps.Parser.Parse(msg.Text))
	case err != nil:
		return fmt.Errorf("wizard input: %w", err)
	}

	if reply.Outcome == wizard.OutcomeSubmit && reply.Entry != nil {
		d.log(msg, "wizard_submitted").Info("wizard entry confirmed")
		return d.submitEntry(ctx, msg, *reply.Entry)
	}

	return d.reply(ctx, msg, reply.Text)
}

func (d *Dispatcher) submitEntry(ctx context.Context, msg Message, entry domain.SheetEntry) error {
	sheet := entry.Sheet()
	if err := d.reply(ctx, msg, fmt.Sprintf("📝 Submitting data for *%s* to %s...", entry.Truck, sheet)); err != nil {
		return err
	}

	result, err := d.deps.Sheets.Submit(ctx, entry)
	var backendErr *sheets.BackendError
	switch {
	case errors.As(err, &backendErr):
		text := backendErr.Message
		if text == "" {
			text = "Unknown error."
		}
		d.admin.Notify(ctx, fmt.Sprintf("*Google Sheet Submit Error:*\nUser: %s\nTruck: %s\nError: %s", msg.who(), entry.Truck, backendErr.Message))
		return d.reply(ctx, msg, "⚠️ Error submitting to Google Sheet: "+text)
	case err != nil:
		d.log(msg, "sheet_submit_failed").WithError(err).Error("sheet submit failed")
		d.admin.Notify(ctx, fmt.Sprintf("*Google Script Submit Connection Error:*\nUser: %s\nTruck: %s\nError: %v", msg.who(), entry.Truck, err))
		return d.reply(ctx, msg, msgSubmitError)
	}

	d.log(msg, "sheet_submitted").WithFields(logging.Fields{"truck": entry.Truck, "sheet": sheet}).Info("sheet entry submitted")

	text := result.Message
	if text == "" {
		text = msgSubmitDefault
	}
	if err := d.reply(ctx, msg, "✅ Success! "+text); err != nil {
		return err
	}
	if result.RowLink != "" {
		return d.reply(ctx, msg, "View entry: "+result.RowLink)
	}
	return nil
}

func (d *Dispatcher) reply(ctx context.Context, msg Message, text string) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if err := d.deps.Sender.SendText(ctx, msg.ChatID, text); err != nil {
		return fmt.Errorf("send reply: %w", err)
	}
	return nil
}

func (d *Dispatcher) log(msg Message, event string) *logrus.Entry {
	return logging.Annotate(d.logger, logging.Context{
		UserID: msg.sessionKey(),
		ChatID: msg.ChatID,
		Event:  event,
	})
}

// isNewTruck matches "newtruck", "/newtruck" and "/newtruck@botname".
func isNewTruck(text string) bool {
	name := strings.ToLower(strings.TrimSpace(text))
	if rest, ok := strings.CutPrefix(name, "/"); ok {
		name = rest
		if at := strings.IndexByte(name, '@'); at >= 0 {
			name = name[:at]
		}
	}
	return name == "newtruck"
}

func preview(text string) string {
	runes := []rune(text)
	if len(runes) > 50 {
		return string(runes[:50]) + "..."
	}
	return text
}
