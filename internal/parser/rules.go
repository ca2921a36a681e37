package parser

import (
	"strings"

	"truck_notify_bot/internal/domain"
)

const (
	commandPrefix      = "/"
	sheetCreateMarker  = "create truck:"
	overnightMarker    = "overnight:"
	overstayMarker     = "overstay:"
	emptyMessageReason = "empty message received"
)

var greetings = map[string]struct{}{
	"hi":             {},
	"hello":          {},
	"hey":            {},
	"greetings":      {},
	"good morning":   {},
	"good afternoon": {},
	"good evening":   {},
	"poa":            {},
	"sasa":           {},
	"mambo":          {},
	"niaje":          {},
}

// rule is one entry of the classification cascade.
type rule struct {
	name  string
	match func(message) bool
	parse func(*Parser, message) Result
}

// defaultRules lists the classification order. The last rule always matches.
func defaultRules() []rule {
	return []rule{
		{
			name: "greeting",
			match: func(m message) bool {
				_, ok := greetings[m.lower]
				return ok
			},
			parse: func(_ *Parser, m message) Result {
				return Result{Kind: KindGreeting, Greeting: m.lower}
			},
		},
		{
			name:  "command",
			match: func(m message) bool { return strings.HasPrefix(m.text, commandPrefix) },
			parse: func(_ *Parser, m message) Result {
				return Result{Kind: KindCommand, Command: m.text}
			},
		},
		{
			name:  "empty",
			match: func(m message) bool { return len(m.lines) == 0 },
			parse: func(_ *Parser, _ message) Result {
				return Result{Kind: KindError, Reason: emptyMessageReason}
			},
		},
		{
			name: "sheet_creation",
			match: func(m message) bool {
				return strings.HasPrefix(strings.ToLower(m.lines[0]), sheetCreateMarker)
			},
			parse: (*Parser).parseSheet,
		},
		{
			name: "stay_report",
			match: func(m message) bool {
				_, ok := stayKind(m.lines)
				return ok
			},
			parse: func(p *Parser, m message) Result {
				kind, _ := stayKind(m.lines)
				return p.parseStay(m, kind)
			},
		},
		{
			name:  "repair_report",
			match: func(message) bool { return true },
			parse: (*Parser).parseRepair,
		},
	}
}

// stayKind detects the stay marker; overnight wins when both are present.
func stayKind(lines []string) (domain.StayKind, bool) {
	overstay := false
	for _, line := range lines {
		lower := strings.ToLower(line)
		if strings.HasPrefix(lower, overnightMarker) {
			return domain.StayOvernight, true
		}
		if strings.HasPrefix(lower, overstayMarker) {
			overstay = true
		}
	}
	if overstay {
		return domain.StayOverstay, true
	}
	return "", false
}

// RuleNames exposes the classification order for diagnostics and tests.
func (p *Parser) RuleNames() []string {
	names := make([]string, 0, len(p.rules))
	for _, r := range p.rules {
		names = append(names, r.name)
	}
	return names
}
