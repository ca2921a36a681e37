package parser

import (
	"reflect"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"

	"truck_notify_bot/internal/domain"
)

func newTestParser(t *testing.T, opts ...Option) (*Parser, *logtest.Hook) {
	t.Helper()
	logger, hook := logtest.NewNullLogger()
	opts = append(opts, WithLogger(logrus.NewEntry(logger)))
	return New(opts...), hook
}

func TestParseGreetings(t *testing.T) {
	p, _ := newTestParser(t)

	for _, text := range []string{"hi", "HELLO", " Hey ", "Good Morning", "good evening", "Poa", "SASA", "mambo", "Niaje", "greetings"} {
		result := p.Parse(text)
		if result.Kind != KindGreeting {
			t.Fatalf("Parse(%q) kind = %s, want greeting", text, result.Kind)
		}
	}

	if result := p.Parse("hi there"); result.Kind == KindGreeting {
		t.Fatalf("expected greeting match to be exact")
	}
}

func TestParseCommands(t *testing.T) {
	p, _ := newTestParser(t)

	for _, text := range []string{"/help", "  /status KAA123A sct ", "/anything\ncreate truck: X", "/"} {
		result := p.Parse(text)
		if result.Kind != KindCommand {
			t.Fatalf("Parse(%q) kind = %s, want command", text, result.Kind)
		}
		if result.Command != strings.TrimSpace(text) {
			t.Fatalf("Parse(%q) command = %q, want trimmed input", text, result.Command)
		}
	}
}

func TestParseEmptyMessage(t *testing.T) {
	p, _ := newTestParser(t)

	for _, text := range []string{"", "   ", "\n\n", " ☃"} {
		result := p.Parse(text)
		if result.Kind != KindError || result.Reason != emptyMessageReason {
			t.Fatalf("Parse(%q) = %+v, want empty message error", text, result)
		}
	}
}

func TestParseRepairEndToEnd(t *testing.T) {
	p, _ := newTestParser(t)

	input := "KCC492P/ZG1633\nYUSSUF MAALIM\n0722809260\nHASS PETROLEUM ELDORET DEPOT\ndriver@company.com\nteam: Nairobi\nhours: 48"
	result := p.Parse(input)
	if result.Kind != KindRepairReport {
		t.Fatalf("expected repair report, got %+v", result)
	}

	want := domain.RepairReport{
		RegNo:         "KCC492P/ZG1633",
		DriverName:    "YUSSUF MAALIM",
		DriverNo:      "0722809260",
		Location:      "HASS PETROLEUM ELDORET DEPOT",
		Email:         "driver@company.com",
		DurationHours: 48,
		Team:          "Nairobi",
	}
	if !reflect.DeepEqual(*result.Repair, want) {
		t.Fatalf("unexpected repair report:\n got %+v\nwant %+v", *result.Repair, want)
	}
}

func TestParseRepairDefaults(t *testing.T) {
	p, _ := newTestParser(t)

	result := p.Parse("KAA111A\nJOHN DOE\n0711000000\nNAIROBI DEPOT\ncontact: <ops@example.com>")
	if result.Kind != KindRepairReport {
		t.Fatalf("expected repair report, got %+v", result)
	}
	if result.Repair.DurationHours != 24 {
		t.Fatalf("expected default 24 hours, got %d", result.Repair.DurationHours)
	}
	if result.Repair.Team != "Eldoret" {
		t.Fatalf("expected default team Eldoret, got %s", result.Repair.Team)
	}
	if result.Repair.Email != "ops@example.com" {
		t.Fatalf("expected email token to be found, got %q", result.Repair.Email)
	}
}

func TestParseRepairHours(t *testing.T) {
	p, _ := newTestParser(t)
	base := "KAA111A\nJOHN DOE\n0711000000\nNAIROBI DEPOT\nops@example.com\n"

	tests := map[string]int{
		"hours: 36":       24,
		"hours: 48":       48,
		"hours: 24":       24,
		"hours: 48 hours": 48,
		"hours: soon":     24,
		"HOURS: 48":       48,
	}

	for line, want := range tests {
		result := p.Parse(base + line)
		if result.Kind != KindRepairReport {
			t.Fatalf("%q: expected repair report, got %+v", line, result)
		}
		if result.Repair.DurationHours != want {
			t.Fatalf("%q: duration = %d, want %d", line, result.Repair.DurationHours, want)
		}
	}
}

func TestParseRepairTeamAndEntry(t *testing.T) {
	p, _ := newTestParser(t, WithDefaultTeam("kisumu"))
	base := "KAA111A\nJOHN DOE\n0711000000\nNAIROBI DEPOT\nops@example.com\n"

	result := p.Parse(base + "team: mOMBASA\nentry: E-55")
	if result.Repair.Team != "Mombasa" {
		t.Fatalf("expected capitalised team, got %s", result.Repair.Team)
	}
	if result.Repair.EntryNo != "E-55" {
		t.Fatalf("expected entry number, got %q", result.Repair.EntryNo)
	}

	result = p.Parse(base + "team:")
	if result.Repair.Team != "Kisumu" {
		t.Fatalf("expected empty team to use default, got %s", result.Repair.Team)
	}

	result = p.Parse(base)
	if result.Repair.Team != "Kisumu" {
		t.Fatalf("expected configured default team, got %s", result.Repair.Team)
	}
}

func TestParseRepairExplicitEmailWins(t *testing.T) {
	p, _ := newTestParser(t)

	result := p.Parse("KAA111A\nJOHN DOE\n0711000000\nNAIROBI DEPOT cc first@example.com\nemail: second@example.com")
	if result.Kind != KindRepairReport {
		t.Fatalf("expected repair report, got %+v", result)
	}
	if result.Repair.Email != "second@example.com" {
		t.Fatalf("expected labelled email to win, got %s", result.Repair.Email)
	}
}

func TestParseRepairMissingMobile(t *testing.T) {
	p, _ := newTestParser(t)

	result := p.Parse("KCC492P\nYUSSUF MAALIM\nHASS DEPOT")
	if result.Kind != KindIncomplete || result.Incomplete.For != KindRepairReport {
		t.Fatalf("expected incomplete repair, got %+v", result)
	}

	labels := result.Incomplete.Labels()
	if !contains(labels, "Mobile Number") {
		t.Fatalf("expected mobile number to be missing, got %v", labels)
	}
	if contains(labels, "Registration Number") {
		t.Fatalf("expected registration to be present, got %v", labels)
	}
	if !contains(labels, "A valid Email Address") {
		t.Fatalf("expected email to be reported, got %v", labels)
	}
}

func TestParseRepairShortMessageWithPhone(t *testing.T) {
	p, _ := newTestParser(t)

	result := p.Parse("KCC492P\n0722 809 260\nops@example.com")
	if result.Kind != KindIncomplete {
		t.Fatalf("expected incomplete repair, got %+v", result)
	}

	labels := result.Incomplete.Labels()
	want := []string{"Driver Name", "Location"}
	if !reflect.DeepEqual(labels, want) {
		t.Fatalf("missing = %v, want %v", labels, want)
	}
}

func TestParseRepairInvalidLabelledEmail(t *testing.T) {
	p, _ := newTestParser(t)

	result := p.Parse("KAA111A\nJOHN DOE\n0711000000\nNAIROBI DEPOT\nemail: not-an-email")
	if result.Kind != KindIncomplete {
		t.Fatalf("expected incomplete repair, got %+v", result)
	}
	if got := result.Incomplete.Missing[0].String(); got != "A valid Email Address (anywhere in the message)" {
		t.Fatalf("unexpected missing entry: %s", got)
	}
}

func TestParseStayReport(t *testing.T) {
	p, _ := newTestParser(t)

	input := "overnight: yes\nomc: ABC Logistics\nemail: manager@abc.com\ntruck: KCC492P\nreason: Mechanical issue\ntruck: KDD123X\nreason: Driver rest"
	result := p.Parse(input)
	if result.Kind != KindStayReport {
		t.Fatalf("expected stay report, got %+v", result)
	}

	want := domain.StayReport{
		Kind:    domain.StayOvernight,
		OMCName: "ABC Logistics",
		Email:   "manager@abc.com",
		Trucks: []domain.StayTruck{
			{RegNo: "KCC492P", Reason: "Mechanical issue"},
			{RegNo: "KDD123X", Reason: "Driver rest"},
		},
	}
	if !reflect.DeepEqual(*result.Stay, want) {
		t.Fatalf("unexpected stay report:\n got %+v\nwant %+v", *result.Stay, want)
	}
}

func TestParseStayKindPrecedence(t *testing.T) {
	p, _ := newTestParser(t)

	result := p.Parse("OVERSTAY: yes\nomc: X\nemail: a@b.co\ntruck: T1\nreason: r")
	if result.Kind != KindStayReport || result.Stay.Kind != domain.StayOverstay {
		t.Fatalf("expected overstay report, got %+v", result)
	}

	result = p.Parse("overstay: yes\novernight: yes\nomc: X\nemail: a@b.co\ntruck: T1\nreason: r")
	if result.Stay.Kind != domain.StayOvernight {
		t.Fatalf("expected overnight to take precedence, got %s", result.Stay.Kind)
	}
}

func TestParseStaySecondTruckMissingReason(t *testing.T) {
	p, _ := newTestParser(t)

	input := "overstay: yes\nomc: ABC\nemail: ops@abc.com\ntruck: KCC492P\nreason: Queue\ntruck: KDD123X"
	result := p.Parse(input)
	if result.Kind != KindIncomplete {
		t.Fatalf("expected incomplete stay report, got %+v", result)
	}
	if result.Incomplete.StayKind != domain.StayOverstay {
		t.Fatalf("expected stay kind to be preserved, got %s", result.Incomplete.StayKind)
	}

	labels := result.Incomplete.Labels()
	if !reflect.DeepEqual(labels, []string{"Truck 2 Reason"}) {
		t.Fatalf("missing = %v, want exactly Truck 2 Reason", labels)
	}
}

func TestParseStayMissingEverything(t *testing.T) {
	p, _ := newTestParser(t)

	result := p.Parse("overnight: yes\nreason: orphan\nemail: nope")
	labels := result.Incomplete.Labels()
	want := []string{"OMC Name", "Email Address", "At least one truck"}
	if !reflect.DeepEqual(labels, want) {
		t.Fatalf("missing = %v, want %v", labels, want)
	}
}

func TestParseStayTruckWithoutRegistration(t *testing.T) {
	p, _ := newTestParser(t)

	result := p.Parse("overnight: yes\nomc: ABC\nemail: ops@abc.com\ntruck:\nreason: Queue")
	labels := result.Incomplete.Labels()
	if !reflect.DeepEqual(labels, []string{"Truck 1 Registration Number"}) {
		t.Fatalf("missing = %v", labels)
	}
}

func TestParseSheetTransit(t *testing.T) {
	p, hook := newTestParser(t)

	input := strings.Join([]string{
		"Create Truck: KAA123A",
		"Entry: 12345",
		"Consignor: ABC Ltd",
		"Consignee: XYZ Ltd",
		"Destination: DRC",
		"Bol: 67890",
		"Order: 50059360",
		"Product: Diesel",
		"Comp 1: 10000",
		"comp2: 5000 litres",
		"Comp  3 : abc",
		"Permit: SSD-12345",
		"Driver: nobody",
	}, "\n")

	result := p.Parse(input)
	if result.Kind != KindSheetCreation {
		t.Fatalf("expected sheet creation, got %+v", result)
	}

	entry := result.Sheet
	if entry.Truck != "KAA123A" || entry.Target != domain.SheetTransit || entry.Entry != "12345" {
		t.Fatalf("unexpected entry header: %+v", entry)
	}
	if entry.LoadingOrder != "50059360" || entry.BOL != "67890" || entry.Permit != "SSD-12345" {
		t.Fatalf("unexpected entry fields: %+v", entry)
	}
	wantComps := [domain.CompartmentCount]float64{10000, 5000, 0, 0, 0, 0}
	if entry.Compartments != wantComps {
		t.Fatalf("compartments = %v, want %v", entry.Compartments, wantComps)
	}

	if len(hook.Entries) != 1 || hook.LastEntry().Data["event"] != "sheet_line_unrecognized" {
		t.Fatalf("expected one unrecognized line warning, got %d entries", len(hook.Entries))
	}
}

func TestParseSheetSCTUsesTransitEntry(t *testing.T) {
	p, _ := newTestParser(t)

	input := "create truck: KBB1\nentry: 999\nconsignor: a\nconsignee: b\ndestination: c\nbol: d\norder: e\nproduct: f\nexit note: EX-1\ntarget: sct"
	result := p.Parse(input)
	if result.Kind != KindSheetCreation {
		t.Fatalf("expected sheet creation, got %+v", result)
	}
	if result.Sheet.Target != domain.SheetSCT || result.Sheet.Entry != "999" {
		t.Fatalf("expected SCT entry note from entry line, got %+v", result.Sheet)
	}
	if result.Sheet.ExitNote != "EX-1" {
		t.Fatalf("expected exit note, got %q", result.Sheet.ExitNote)
	}
	if result.Sheet.Payload()["entryNote"] != "999" {
		t.Fatalf("expected payload entryNote, got %v", result.Sheet.Payload())
	}
}

func TestParseSheetSCTPrefersEntryNote(t *testing.T) {
	p, _ := newTestParser(t)

	input := "create truck: KBB1\nentry: 999\nentry note: EN-7\nconsignor: a\nconsignee: b\ndestination: c\nbol: d\norder: e\nproduct: f\ntarget: SCT"
	result := p.Parse(input)
	if result.Sheet.Entry != "EN-7" {
		t.Fatalf("expected entry note to win, got %q", result.Sheet.Entry)
	}
}

func TestParseSheetMissingFields(t *testing.T) {
	p, _ := newTestParser(t)

	result := p.Parse("create truck:\nentry note: EN-1\nconsignor: a\nproduct: p")
	if result.Kind != KindIncomplete || result.Incomplete.For != KindSheetCreation {
		t.Fatalf("expected incomplete sheet creation, got %+v", result)
	}

	labels := result.Incomplete.Labels()
	want := []string{"Truck Number", "Entry", "Consignee", "Destination", "BOL", "Loading Order"}
	if !reflect.DeepEqual(labels, want) {
		t.Fatalf("missing = %v, want %v", labels, want)
	}

	result = p.Parse("create truck: X\ntarget: sct\nconsignor: a\nconsignee: b\ndestination: c\nbol: d\norder: e\nproduct: f")
	if got := result.Incomplete.Missing[0].String(); got != "Entry Note (e.g., 'Entry Note: EN-123')" {
		t.Fatalf("unexpected SCT entry hint: %s", got)
	}
}

func TestParseRecoversFromPanics(t *testing.T) {
	p, hook := newTestParser(t)
	p.rules = []rule{{
		name:  "boom",
		match: func(message) bool { return true },
		parse: func(*Parser, message) Result { panic("boom") },
	}}

	result := p.Parse("anything")
	if result.Kind != KindError {
		t.Fatalf("expected error result, got %+v", result)
	}
	if strings.Contains(result.Reason, "boom") {
		t.Fatalf("expected internals to stay out of the reason, got %q", result.Reason)
	}
	if hook.LastEntry() == nil || hook.LastEntry().Level != logrus.ErrorLevel {
		t.Fatalf("expected panic to be logged at error level")
	}
}

func TestRuleOrder(t *testing.T) {
	p, _ := newTestParser(t)

	want := []string{"greeting", "command", "empty", "sheet_creation", "stay_report", "repair_report"}
	if got := p.RuleNames(); !reflect.DeepEqual(got, want) {
		t.Fatalf("rule order = %v, want %v", got, want)
	}
}

func TestSanitizeAndEmailHelpers(t *testing.T) {
	if got := Sanitize("  café\tok\r\n "); got != "cafok" {
		t.Fatalf("Sanitize = %q", got)
	}
	if !ValidEmail(" a@b.co ") || ValidEmail("a@b") || ValidEmail("a b@c.d") {
		t.Fatalf("unexpected ValidEmail results")
	}
	if email, ok := FindEmail("mail (ops@example.com); thanks"); !ok || email != "ops@example.com" {
		t.Fatalf("FindEmail = %q, %v", email, ok)
	}
}

func contains(values []string, want string) bool {
	for _, v := range values {
		if v == want {
			return true
		}
	}
	return false
}
