package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"truck_notify_bot/internal/domain"
	"truck_notify_bot/internal/logging"
	"truck_notify_bot/internal/report"
	"truck_notify_bot/internal/sheets"
)

type commandHandler func(d *Dispatcher, ctx context.Context, msg Message, args []string) error

// commands maps a lower-case command name (without the slash) to its handler.
var commands = map[string]commandHandler{
	"start":      (*Dispatcher).cmdStart,
	"help":       (*Dispatcher).cmdHelp,
	"format":     (*Dispatcher).cmdFormat,
	"status":     (*Dispatcher).cmdStatus,
	"row":        (*Dispatcher).cmdRow,
	"newtruck":   (*Dispatcher).cmdNewTruck,
	"system":     (*Dispatcher).cmdSystem,
	"testreport": (*Dispatcher).cmdTestReport,
}

func (d *Dispatcher) handleCommand(ctx context.Context, msg Message, raw string) error {
	fields := strings.Fields(strings.TrimPrefix(strings.TrimSpace(raw), "/"))
	if len(fields) == 0 {
		return d.reply(ctx, msg, msgFallback)
	}

	name := strings.ToLower(fields[0])
	// Telegram appends @botname to commands in group chats.
	if at := strings.IndexByte(name, '@'); at >= 0 {
		name = name[:at]
	}
	args := fields[1:]

	d.log(msg, "command").WithFields(logging.Fields{"command": name, "args": strings.Join(args, " ")}).Info("command received")

	handler, ok := commands[name]
	if !ok {
		return d.reply(ctx, msg, fmt.Sprintf("❓ Unknown command: `/%s`. Send /help for available commands.", name))
	}

	if err := handler(d, ctx, msg, args); err != nil {
		d.log(msg, "command_failed").WithField("command", name).WithError(err).Error("command failed")
		d.admin.Notify(ctx, fmt.Sprintf("*Command Handling Error:*\nCommand: /%s\nUser: %s\nError: %v", name, msg.who(), err))
		return d.reply(ctx, msg, msgCommandError)
	}

	return nil
}

func (d *Dispatcher) cmdStart(ctx context.Context, msg Message, _ []string) error {
	return d.reply(ctx, msg, mainMenu)
}

func (d *Dispatcher) cmdHelp(ctx context.Context, msg Message, _ []string) error {
	return d.reply(ctx, msg, helpMessage)
}

func (d *Dispatcher) cmdFormat(ctx context.Context, msg Message, args []string) error {
	kind := ""
	if len(args) > 0 {
		kind = args[0]
	}
	return d.reply(ctx, msg, formatInstructions(kind))
}

func (d *Dispatcher) cmdNewTruck(ctx context.Context, msg Message, _ []string) error {
	reply, err := d.deps.Wizard.Start(ctx, msg.sessionKey())
	if err != nil {
		return fmt.Errorf("start wizard: %w", err)
	}
	return d.reply(ctx, msg, reply.Text)
}

func (d *Dispatcher) cmdStatus(ctx context.Context, msg Message, args []string) error {
	if len(args) < 1 {
		return d.reply(ctx, msg, msgStatusUsage)
	}
	return d.lookup(ctx, msg, "status", args)
}

func (d *Dispatcher) cmdRow(ctx context.Context, msg Message, args []string) error {
	if len(args) < 1 {
		return d.reply(ctx, msg, msgRowUsage)
	}
	return d.lookup(ctx, msg, "row", args)
}

func lookupSheet(args []string) domain.TargetSheet {
	if len(args) > 1 && strings.EqualFold(args[1], "sct") {
		return domain.SheetSCT
	}
	return domain.SheetTransit
}

func (d *Dispatcher) lookup(ctx context.Context, msg Message, command string, args []string) error {
	query := args[0]
	sheet := lookupSheet(args)

	subject := "truck " + query
	if command == "row" {
		subject = "row " + query
	}
	if err := d.reply(ctx, msg, fmt.Sprintf("🔍 Searching for %s in %s sheet...", subject, sheet)); err != nil {
		return err
	}

	var (
		result sheets.LookupResult
		err    error
	)
	if command == "row" {
		result, err = d.deps.Sheets.RowDetails(ctx, query, sheet)
	} else {
		result, err = d.deps.Sheets.TruckStatus(ctx, query, sheet)
	}

	var (
		unexpected *sheets.UnexpectedResponseError
		backendErr *sheets.BackendError
	)
	switch {
	case errors.As(err, &unexpected):
		d.admin.Notify(ctx, fmt.Sprintf("*Spreadsheet Unexpected Response:*\nCommand: /%s\nContent-Type: %s\nResponse:\n%s", command, unexpected.ContentType, unexpected.Excerpt))
		return d.reply(ctx, msg, msgLookupNotJSON)
	case errors.As(err, &backendErr):
		return d.reply(ctx, msg, "⚠️ "+orDefault(backendErr.Message, msgLookupEmpty))
	case err != nil:
		d.log(msg, "sheet_lookup_failed").WithError(err).Error("sheet lookup failed")
		d.admin.Notify(ctx, fmt.Sprintf("*Google Script Error (%s):*\n%v", command, err))
		return d.reply(ctx, msg, msgLookupError)
	}

	if len(result.Rows) == 0 {
		return d.reply(ctx, msg, "⚠️ "+orDefault(result.Message, msgLookupEmpty))
	}

	var b strings.Builder
	if result.Message != "" {
		b.WriteString(result.Message + "\n\n")
	}
	for _, row := range result.Rows {
		if command == "status" {
			fmt.Fprintf(&b, "*Row %s:* %s - Status: %s\n", row.Number(), orDefault(row.Find("truck"), "N/A"), orDefault(row.Find("status"), "N/A"))
			continue
		}
		fmt.Fprintf(&b, "*Details for Row %s:*\n", row.Number())
		for _, field := range row {
			if field.Key != "ROW_NUMBER" && field.Value != "" {
				fmt.Fprintf(&b, "*%s:* %s\n", field.Key, field.Value)
			}
		}
	}
	if err := d.reply(ctx, msg, strings.TrimSpace(b.String())); err != nil {
		return err
	}

	if command == "row" {
		d.sendRowExport(ctx, msg, sheet, result.Rows)
	}
	return nil
}

// sendRowExport attaches the row details as a workbook. Failures are logged
// only; the text reply has already been delivered.
func (d *Dispatcher) sendRowExport(ctx context.Context, msg Message, sheet domain.TargetSheet, rows []sheets.Row) {
	att, err := d.deps.Renderer.Rows(sheet, rows)
	if err != nil {
		d.log(msg, "row_export_failed").WithError(err).Warn("row export failed")
		return
	}
	if err := d.deps.Sender.SendDocument(ctx, msg.ChatID, att.Filename, att.Data, "Row export"); err != nil {
		d.log(msg, "row_export_failed").WithError(err).Warn("row export upload failed")
	}
}

func (d *Dispatcher) cmdSystem(ctx context.Context, msg Message, _ []string) error {
	if !d.isAdmin(ctx, msg) {
		return d.reply(ctx, msg, msgAdminOnly)
	}

	snap := d.stats.Snapshot()
	last := "N/A"
	if !snap.LastMessage.IsZero() {
		last = snap.LastMessage.In(report.Timezone()).Format("02/01/2006, 15:04:05")
	}

	var b strings.Builder
	b.WriteString("*System Status:*\n-----------------\n✅ Bot is connected.\n")
	fmt.Fprintf(&b, "🕒 Uptime: %s\n", formatUptime(d.now().Sub(snap.Started)))
	fmt.Fprintf(&b, "📊 Total Requests: %d\n", snap.Requests)
	fmt.Fprintf(&b, "📧 Emails Sent: %d\n", snap.EmailsSent)
	fmt.Fprintf(&b, "🚫 Emails Failed: %d\n", snap.EmailsFailed)
	fmt.Fprintf(&b, "⏰ Last Message: %s\n", last)

	if d.deps.Counts != nil {
		fmt.Fprintf(&b, "👥 Users: %s\n", d.countString(ctx, d.deps.Counts.CountUsers))
		fmt.Fprintf(&b, "🗂 Reports: %s\n", d.countString(ctx, d.deps.Counts.CountReports))
		fmt.Fprintf(&b, "❗ Undelivered Reports: %s\n", d.countString(ctx, d.deps.Counts.CountFailedReports))
	}
	if d.deps.Sessions != nil {
		fmt.Fprintf(&b, "🧭 Active Wizards: %s\n", d.countString(ctx, d.deps.Sessions.Count))
	}

	return d.reply(ctx, msg, strings.TrimSpace(b.String()))
}

func (d *Dispatcher) countString(ctx context.Context, count func(context.Context) (int64, error)) string {
	n, err := count(ctx)
	if err != nil {
		d.logger.WithField("event", "stats_count_failed").WithError(err).Warn("count for system status failed")
		return "unavailable"
	}
	return fmt.Sprint(n)
}

// isAdmin trusts the configured admin chat first and the stored role second.
func (d *Dispatcher) isAdmin(ctx context.Context, msg Message) bool {
	if d.deps.AdminChatID != 0 && (msg.ChatID == d.deps.AdminChatID || msg.UserID == d.deps.AdminChatID) {
		return true
	}
	if d.deps.Users == nil {
		return false
	}

	user, err := d.deps.Users.GetByID(ctx, msg.UserID)
	if err != nil {
		d.log(msg, "role_lookup_failed").WithError(err).Debug("role lookup failed")
		return false
	}
	return domain.IsAdmin(user.Role)
}

func (d *Dispatcher) cmdTestReport(ctx context.Context, msg Message, _ []string) error {
	sample := domain.RepairReport{
		RegNo:         "KXX123X/ZA456",
		DriverName:    "Test Driver",
		DriverNo:      "0700000000",
		Location:      "Test Location",
		Email:         "test@example.com",
		EntryNo:       "T123",
		DurationHours: domain.DefaultRepairHours,
		Team:          "TestTeam",
	}
	if len(d.deps.DefaultRecipients) > 0 {
		sample.Email = d.deps.DefaultRecipients[0]
	}

	if err := d.reply(ctx, msg, "Generating sample report..."); err != nil {
		return err
	}

	doc, err := d.deps.Renderer.Repair(sample)
	if err != nil {
		return d.reply(ctx, msg, "❌ Failed to generate test report: "+err.Error())
	}
	if err := d.deps.Sender.SendDocument(ctx, msg.ChatID, doc.Attachment.Filename, doc.Attachment.Data, "Here is your sample report."); err != nil {
		return fmt.Errorf("send sample report: %w", err)
	}
	return nil
}

func orDefault(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
