package dispatch

import "strings"

const (
	msgFallback        = "❓ Sorry, I couldn't understand that. Send `/help` for available commands or use `/newtruck` to log a new truck entry."
	msgInternalError   = "❌ Internal error. Admin notified."
	msgCommandError    = "❌ An internal error occurred while processing your command. Admin has been notified."
	msgAdminOnly       = "⛔ This command is only available to the admin chat."
	msgStatusUsage     = "Usage: `/status <reg_no> [sct]`"
	msgRowUsage        = "Usage: `/row <row_no> [sct]`"
	msgLookupEmpty     = "Could not retrieve information."
	msgLookupNotJSON   = "❌ Spreadsheet backend returned an unexpected response (not JSON). This may be a temporary error. Admin has been notified."
	msgLookupError     = "❌ Error connecting to Google Sheets. Admin notified."
	msgSubmitDefault   = "Data submitted to Google Sheet."
	msgSubmitError     = "❌ Error connecting to Google Sheets to submit data. Admin notified."
	msgEmailDisabled   = "📧 Email feature is not configured. Admin has been notified."
	msgEmailNotSent    = "⚠️ Failed to send email notification, but the report was generated."
	msgNoRecipients    = "⚠️ No valid email recipients found. Report generated but not emailed."
	msgWizardInterrupt = "❌ Error in wizard process. Session cancelled. Type `/newtruck` to start over."
)

const mainMenu = "Welcome! Here are some commands you can use:\n" +
	"`/newtruck` - Start a new truck entry wizard.\n" +
	"`/status <reg_no> [sct]` - Check truck status.\n" +
	"`/row <row_no> [sct]` - Get details for a specific row.\n" +
	"`/system` - Check bot system status.\n" +
	"`/help` - Show detailed help."

const helpMessage = `*Welcome to the truck notification bot!* 🤖

*How to log a truck for the TRANSIT/SCT sheet:*
The easiest way is to use the guided wizard:
➡️ Type ` + "`/newtruck`" + `
The bot will ask you for each piece of information step-by-step. You can review and edit before submitting!

*Other commands:*
- ` + "`/format [repair|overnight|overstay|transit]`" + ` - Show message formats for manual entry.
- ` + "`/status <reg_no> [sct]`" + ` - Check truck status (add sct for SCT sheet).
- ` + "`/row <row_no> [sct]`" + ` - Get details for a specific row (add sct for SCT sheet).
- ` + "`/system`" + ` - Check bot system status (admin).
- ` + "`/testreport`" + ` - Generate a sample maintenance report.
- ` + "`/cancel`" + ` - Leave the guided entry wizard.
- ` + "`/help`" + ` - Show this help message.

*For maintenance reports, send details as a plain message (see ` + "`/format repair`" + `).*`

const repairFormat = "📝 *Maintenance Report Format*\n\n" +
	"*Required Fields:*\n```\nRegistration Number\nDriver Name\nMobile Number\nLocation\n[Your Email Address - anywhere in msg]\n```\n" +
	"*Optional Fields (Use Labels):*\n```\nentry: [Entry Number]\nhours: [24 or 48] (default: 24)\nteam: [Team Name] (default: Eldoret)\n```\n" +
	"Example:\n```\nKCC492P/ZG1633\nYUSSUF MAALIM\n0722809260\nHASS PETROLEUM ELDORET DEPOT\ndriver@company.com\nteam: Nairobi\nhours: 48\n```"

const transitFormat = "📝 *TRANSIT/SCT Truck Data - Full Message Format*\n\n" +
	"*This is for advanced users. For easier entry, use the `/newtruck` command for a guided wizard.*\n\n" +
	"*Required Fields (one per line):*\n```\n" +
	"create truck: [TRUCK NO]\n" +
	"Entry: [Entry No for TRANSIT] or Entry Note: [Entry Note for SCT]\n" +
	"Consignor: [Consignor Name]\n" +
	"Consignee: [Consignee Name]\n" +
	"Destination: [Destination]\n" +
	"Bol: [BOL No]\n" +
	"Order: [50059360]\n" +
	"Product: [AGO, PMS, IK, Other]\n" +
	"Comp 1: [Value]\n...\nComp 6: [Value]\n" +
	"Permit: [SSD Permit No.] (optional, only for TRANSIT)\n" +
	"Exit Note: [Exit Note] (optional, only for SCT)\n" +
	"```\n" +
	"- *For SCT, add \"target: SCT\" as the last line if not using \"Entry Note:\".*\n\n" +
	"*Example (TRANSIT):*\n```\n" +
	"create truck: KAA123A\nEntry: 12345\nConsignor: ABC Ltd\nConsignee: XYZ Ltd\nDestination: DRC\n" +
	"Bol: 67890\nOrder: 50059360\nProduct: Diesel\nComp 1: 10000\nComp 2: 5000\nComp 3: 0\nPermit: SSD-12345\n```"

func stayFormat(kind string) string {
	title := strings.ToUpper(kind[:1]) + kind[1:]
	return "📝 *" + title + " Report Format*\n\n" +
		"*Required Fields (Use Labels):*\n```\n" +
		kind + ": yes\nomc: [Company Name]\nemail: [Your Email Address]\ntruck: [Registration Number]\nreason: [Reason for " + kind + "]\n```\n" +
		"*Repeat truck/reason for multiple trucks:*\nExample:\n```\n" +
		kind + ": yes\nomc: ABC Logistics\nemail: manager@abclogistics.com\ntruck: KCC492P\nreason: Mechanical issue\ntruck: KDD123X\nreason: Driver rest\n```"
}

// formatInstructions returns the message format for a report kind; unknown
// kinds fall back to the maintenance format.
func formatInstructions(kind string) string {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "transit", "sct":
		return transitFormat
	case "overnight":
		return stayFormat("overnight")
	case "overstay":
		return stayFormat("overstay")
	default:
		return repairFormat
	}
}
