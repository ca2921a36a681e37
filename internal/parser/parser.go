// Package parser classifies free-text chat messages into structured records.
//
// Classification runs an ordered rule table; the first rule whose predicate
// accepts the message produces the result. Parse never panics past its
// boundary and always returns exactly one populated Result.
package parser

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"truck_notify_bot/internal/domain"
	"truck_notify_bot/internal/logging"
)

// Kind tags the populated variant of a Result.
type Kind string

const (
	KindGreeting      Kind = "greeting"
	KindCommand       Kind = "command"
	KindSheetCreation Kind = "sheet_creation"
	KindStayReport    Kind = "stay_report"
	KindRepairReport  Kind = "repair_report"
	KindIncomplete    Kind = "incomplete"
	KindError         Kind = "error"
)

// MissingField names a required value absent from the message.
type MissingField struct {
	Label string
	Hint  string
}

func (m MissingField) String() string {
	if m.Hint == "" {
		return m.Label
	}
	return fmt.Sprintf("%s (%s)", m.Label, m.Hint)
}

// Incomplete describes a recognised record that lacks required fields.
type Incomplete struct {
	For      Kind
	StayKind domain.StayKind
	Missing  []MissingField
}

// Labels returns the labels of the missing fields in order.
func (i Incomplete) Labels() []string {
	labels := make([]string, 0, len(i.Missing))
	for _, field := range i.Missing {
		labels = append(labels, field.Label)
	}
	return labels
}

// Result is the outcome of a single Parse call. Exactly one of the payload
// fields matching Kind is set.
type Result struct {
	Kind       Kind
	Greeting   string
	Command    string
	Sheet      *domain.SheetEntry
	Stay       *domain.StayReport
	Repair     *domain.RepairReport
	Incomplete *Incomplete
	Reason     string
}

// Option configures a Parser.
type Option func(*Parser)

// WithDefaultTeam overrides the repair team used when none is given.
func WithDefaultTeam(team string) Option {
	return func(p *Parser) {
		if team = strings.TrimSpace(team); team != "" {
			p.defaultTeam = capitalize(team)
		}
	}
}

// WithLogger sets the logger used for dropped lines and recovered failures.
func WithLogger(logger *logrus.Entry) Option {
	return func(p *Parser) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// Parser turns raw messages into Results. It holds no per-message state.
type Parser struct {
	defaultTeam string
	logger      *logrus.Entry
	rules       []rule
}

// New constructs a Parser with the standard rule order.
func New(opts ...Option) *Parser {
	p := &Parser{
		defaultTeam: "Eldoret",
		rules:       defaultRules(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = logging.Logger()
	}
	return p
}

// Parse classifies text. Unexpected failures are reported as KindError.
func (p *Parser) Parse(text string) (result Result) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.WithFields(logging.Fields{
				"event": "parse_failed",
				"panic": fmt.Sprint(r),
			}).Error("message parsing failed")
			result = Result{Kind: KindError, Reason: "internal error during message parsing"}
		}
	}()

	msg := newMessage(text)
	for _, r := range p.rules {
		if r.match(msg) {
			return r.parse(p, msg)
		}
	}

	return Result{Kind: KindError, Reason: "message not recognised"}
}

// message is the normalised view of an inbound text shared by the rules.
type message struct {
	text  string
	lower string
	lines []string
}

func newMessage(raw string) message {
	clean := Sanitize(raw)
	return message{
		text:  clean,
		lower: strings.ToLower(clean),
		lines: splitLines(clean),
	}
}
