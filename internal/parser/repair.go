package parser

import (
	"regexp"
	"strconv"

	"truck_notify_bot/internal/domain"
)

var (
	phoneLike     = regexp.MustCompile(`^\+?[\d\s-]{7,}$`)
	leadingDigits = regexp.MustCompile(`^[+-]?\d+`)
)

// repairLabels are consumed as options and never fill a positional slot.
var repairLabels = map[string]struct{}{
	"entry": {},
	"hours": {},
	"team":  {},
	"email": {},
}

var repairSlots = []MissingField{
	{Label: "Registration Number", Hint: "First line"},
	{Label: "Driver Name", Hint: "Second line"},
	{Label: "Mobile Number", Hint: "Third line"},
	{Label: "Location", Hint: "Fourth line"},
}

func (p *Parser) parseRepair(m message) Result {
	report := domain.RepairReport{
		DurationHours: domain.DefaultRepairHours,
		Team:          p.defaultTeam,
	}

	slots := assignSlots(contentLines(m.lines))
	report.RegNo, report.DriverName, report.DriverNo, report.Location = slots[0], slots[1], slots[2], slots[3]

	emailFound := false
	for _, line := range m.lines {
		key, value, _ := labelled(line)
		switch key {
		case "entry":
			report.EntryNo = value
		case "hours":
			if hours, err := strconv.Atoi(leadingDigits.FindString(value)); err == nil && (hours == 24 || hours == 48) {
				report.DurationHours = hours
			}
		case "team":
			if value == "" {
				value = p.defaultTeam
			}
			report.Team = capitalize(value)
		case "email":
			if ValidEmail(value) {
				report.Email = value
				emailFound = true
			}
		default:
			if emailFound {
				continue
			}
			if email, ok := FindEmail(line); ok {
				report.Email = email
				emailFound = true
			}
		}
	}

	var missing []MissingField
	for i, value := range slots {
		if value == "" {
			missing = append(missing, repairSlots[i])
		}
	}
	if !emailFound {
		missing = append(missing, MissingField{Label: "A valid Email Address", Hint: "anywhere in the message"})
	}

	if len(missing) > 0 {
		return Result{
			Kind:       KindIncomplete,
			Incomplete: &Incomplete{For: KindRepairReport, Missing: missing},
		}
	}

	return Result{Kind: KindRepairReport, Repair: &report}
}

// contentLines drops option labels and bare email lines.
func contentLines(lines []string) []string {
	content := make([]string, 0, len(lines))
	for _, line := range lines {
		if key, _, ok := labelled(line); ok {
			if _, option := repairLabels[key]; option {
				continue
			}
		}
		if ValidEmail(line) {
			continue
		}
		content = append(content, line)
	}
	return content
}

// assignSlots maps content lines to registration, driver name, mobile number
// and location. Four or more lines are assigned by position; shorter messages
// take the first line as the registration, a phone-shaped line as the mobile
// number and the remaining lines as name then location.
func assignSlots(lines []string) [4]string {
	var slots [4]string
	if len(lines) >= len(slots) {
		copy(slots[:], lines)
		return slots
	}
	if len(lines) == 0 {
		return slots
	}

	slots[0] = lines[0]
	for _, line := range lines[1:] {
		switch {
		case slots[2] == "" && phoneLike.MatchString(line):
			slots[2] = line
		case slots[1] == "":
			slots[1] = line
		default:
			slots[3] = line
		}
	}
	return slots
}
