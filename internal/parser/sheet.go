package parser

import (
	"regexp"
	"strconv"
	"strings"

	"truck_notify_bot/internal/domain"
	"truck_notify_bot/internal/logging"
)

// sheetDraft accumulates sheet-creation labels before the entry identifier
// is resolved for the target sheet.
type sheetDraft struct {
	entry        domain.SheetEntry
	transitEntry string
	entryNote    string
	compartments [domain.CompartmentCount]string
}

// sheetField maps one label pattern onto the draft.
type sheetField struct {
	pattern *regexp.Regexp
	apply   func(d *sheetDraft, match []string, value string)
}

var leadingNumber = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)`)

// sheetFields is evaluated in order; the first matching label wins per line.
var sheetFields = []sheetField{
	{label("entry"), func(d *sheetDraft, _ []string, v string) { d.transitEntry = v }},
	{label("entry note"), func(d *sheetDraft, _ []string, v string) { d.entryNote = v }},
	{label("exit note"), func(d *sheetDraft, _ []string, v string) { d.entry.ExitNote = v }},
	{label("consignor"), func(d *sheetDraft, _ []string, v string) { d.entry.Consignor = v }},
	{label("consignee"), func(d *sheetDraft, _ []string, v string) { d.entry.Consignee = v }},
	{label("destination"), func(d *sheetDraft, _ []string, v string) { d.entry.Destination = v }},
	{label("bol"), func(d *sheetDraft, _ []string, v string) { d.entry.BOL = v }},
	{label("order"), func(d *sheetDraft, _ []string, v string) { d.entry.LoadingOrder = v }},
	{label("product"), func(d *sheetDraft, _ []string, v string) { d.entry.Product = v }},
	{
		regexp.MustCompile(`(?i)^comp\s*([1-6])\s*:`),
		func(d *sheetDraft, m []string, v string) {
			idx, _ := strconv.Atoi(m[1])
			d.compartments[idx-1] = v
		},
	},
	{label("permit"), func(d *sheetDraft, _ []string, v string) { d.entry.Permit = v }},
	{label("target"), func(d *sheetDraft, _ []string, v string) {
		if strings.EqualFold(v, string(domain.SheetSCT)) {
			d.entry.Target = domain.SheetSCT
		}
	}},
}

// label builds a case-insensitive prefix pattern tolerant of repeated
// whitespace between words and before the colon.
func label(words string) *regexp.Regexp {
	parts := strings.Fields(words)
	for i := range parts {
		parts[i] = regexp.QuoteMeta(parts[i])
	}
	return regexp.MustCompile(`(?i)^` + strings.Join(parts, `\s+`) + `\s*:`)
}

func (p *Parser) parseSheet(m message) Result {
	first := m.lines[0]
	draft := sheetDraft{
		entry: domain.SheetEntry{
			Truck:  strings.TrimSpace(first[len(sheetCreateMarker):]),
			Target: domain.SheetTransit,
		},
	}

	for _, line := range m.lines[1:] {
		if !draft.applyLine(line) {
			p.logger.WithFields(logging.Fields{
				"event": "sheet_line_unrecognized",
				"line":  line,
			}).Warn("unrecognized line in sheet creation message")
		}
	}

	entry := draft.resolve()
	if missing := sheetMissing(entry); len(missing) > 0 {
		return Result{
			Kind:       KindIncomplete,
			Incomplete: &Incomplete{For: KindSheetCreation, Missing: missing},
		}
	}

	return Result{Kind: KindSheetCreation, Sheet: &entry}
}

func (d *sheetDraft) applyLine(line string) bool {
	for _, field := range sheetFields {
		match := field.pattern.FindStringSubmatch(line)
		if match == nil {
			continue
		}
		field.apply(d, match, strings.TrimSpace(line[len(match[0]):]))
		return true
	}
	return false
}

// resolve folds the two entry identifiers into the single entry slot.
// SCT falls back to the TRANSIT-style entry when no entry note was given.
func (d *sheetDraft) resolve() domain.SheetEntry {
	entry := d.entry
	if entry.Target == domain.SheetSCT {
		entry.Entry = d.entryNote
		if entry.Entry == "" {
			entry.Entry = d.transitEntry
		}
	} else {
		entry.Entry = d.transitEntry
	}

	for i, raw := range d.compartments {
		entry.Compartments[i] = parseVolume(raw)
	}
	return entry
}

// parseVolume reads the leading number of raw, defaulting to 0.
func parseVolume(raw string) float64 {
	num := leadingNumber.FindString(strings.TrimSpace(raw))
	if num == "" {
		return 0
	}
	value, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0
	}
	return value
}

func sheetMissing(entry domain.SheetEntry) []MissingField {
	var missing []MissingField
	if entry.Truck == "" {
		missing = append(missing, MissingField{Label: "Truck Number", Hint: "after 'create truck:'"})
	}
	if entry.Entry == "" {
		if entry.Target == domain.SheetSCT {
			missing = append(missing, MissingField{Label: "Entry Note", Hint: "e.g., 'Entry Note: EN-123'"})
		} else {
			missing = append(missing, MissingField{Label: "Entry", Hint: "e.g., 'Entry: 12345'"})
		}
	}

	required := []struct {
		label, key, value string
	}{
		{"Consignor", "consignor", entry.Consignor},
		{"Consignee", "consignee", entry.Consignee},
		{"Destination", "destination", entry.Destination},
		{"BOL", "bol", entry.BOL},
		{"Loading Order", "order", entry.LoadingOrder},
		{"Product", "product", entry.Product},
	}
	for _, field := range required {
		if field.value == "" {
			missing = append(missing, MissingField{Label: field.label, Hint: "e.g., '" + field.key + ": Value'"})
		}
	}
	return missing
}
