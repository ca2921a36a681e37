// Package report renders maintenance and stay reports as email text and XLSX attachments.
package report

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"truck_notify_bot/internal/domain"
	"truck_notify_bot/internal/parser"
)

const (
	siteDetails = "Along Uganda Road"
	cargoType   = "WET CARGO"
	dateLayout  = "02/01/2006"
	stampLayout = "02/01/2006, 15:04:05"
)

var unsafeNameChars = regexp.MustCompile(`[^a-zA-Z0-9]`)

// SafeName replaces every character outside [A-Za-z0-9] with an underscore.
func SafeName(value string) string {
	return unsafeNameChars.ReplaceAllString(value, "_")
}

// RepairSubject is the email subject for a maintenance report.
func RepairSubject(r domain.RepairReport) string {
	return "Truck Maintenance Notification: " + r.RegNo
}

// StaySubject is the email subject for an overnight or overstay report.
func StaySubject(r domain.StayReport) string {
	return r.Kind.Title() + " Trucks Notification: " + r.OMCName
}

// RepairFilename is the attachment base name for a maintenance report.
func RepairFilename(r domain.RepairReport) string {
	return "RepairReport-" + SafeName(r.RegNo) + xlsxExt
}

// StayFilename is the attachment base name for a stay report.
func StayFilename(r domain.StayReport) string {
	return r.Kind.Title() + "Report-" + SafeName(r.OMCName) + xlsxExt
}

// RepairBody renders the maintenance email addressed to the response team.
func RepairBody(r domain.RepairReport, now time.Time) string {
	team := r.Team
	if strings.TrimSpace(team) == "" {
		team = "Eldoret"
	}
	hours := r.DurationHours
	if hours == 0 {
		hours = domain.DefaultRepairHours
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Date: %s\n\n", now.In(Timezone()).Format(dateLayout))
	fmt.Fprintf(&b, "Dear RRU Team %s,\n\n", team)
	fmt.Fprintf(&b, "TRUCK MAINTENANCE NOTIFICATION - %s\n\n", r.RegNo)
	b.WriteString("The truck below has developed a mechanical problem and will be undergoing repairs.\n\n")
	b.WriteString("Vehicle & Driver Details:\n----------------------\n")
	fmt.Fprintf(&b, "• Registration Number: %s\n", r.RegNo)
	if r.EntryNo != "" {
		fmt.Fprintf(&b, "• Entry Number: %s\n", r.EntryNo)
	}
	fmt.Fprintf(&b, "• Driver's Name: %s\n", r.DriverName)
	fmt.Fprintf(&b, "• Mobile Number: %s\n\n", r.DriverNo)
	b.WriteString("Maintenance Information:\n---------------------\n")
	fmt.Fprintf(&b, "• Location: %s\n", r.Location)
	fmt.Fprintf(&b, "• Site Details: %s\n", siteDetails)
	fmt.Fprintf(&b, "• Cargo Type: %s\n", cargoType)
	fmt.Fprintf(&b, "• Expected Duration: %d hours\n\n", hours)
	b.WriteString("Thank you for your attention to this matter.")

	return b.String()
}

// StayBody renders the overnight or overstay email.
func StayBody(r domain.StayReport, now time.Time) string {
	title := strings.ToUpper(string(r.Kind))
	company := "N/A"
	if strings.TrimSpace(r.OMCName) != "" {
		company = strings.ToUpper(r.OMCName)
	}
	activity := "overstaying"
	if r.Kind != domain.StayOverstay {
		activity = "spending the night"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Date: %s\n\n", now.In(Timezone()).Format(stampLayout))
	fmt.Fprintf(&b, "%s TRUCKS NOTIFICATION\n---------------------------\n\n", title)
	fmt.Fprintf(&b, "Company: %s\n", company)
	fmt.Fprintf(&b, "Report Type: %s Stay Request\n", title)
	fmt.Fprintf(&b, "Total Trucks: %d\n\n", len(r.Trucks))
	fmt.Fprintf(&b, "The following trucks from %s will be %s at the depot:\n\n", company, activity)
	for i, truck := range r.Trucks {
		if i > 0 {
			b.WriteString("\n")
		}
		reason := truck.Reason
		if reason == "" {
			reason = "N/A"
		}
		fmt.Fprintf(&b, "• %s - %s", truck.RegNo, reason)
	}
	b.WriteString("\n\nContact Information:\n-----------------\n")
	fmt.Fprintf(&b, "Email: %s\n\n", r.Email)
	b.WriteString("This is an automated notification. Please contact the company representative if you need additional information.\n\n")
	b.WriteString("Thank you for your attention to this matter.")

	return b.String()
}

// Recipients returns the report email followed by the defaults, keeping only
// valid addresses and dropping case-insensitive duplicates.
func Recipients(primary string, defaults []string) []string {
	candidates := append([]string{primary}, defaults...)
	seen := make(map[string]struct{}, len(candidates))
	out := make([]string, 0, len(candidates))

	for _, addr := range candidates {
		addr = strings.TrimSpace(addr)
		if !parser.ValidEmail(addr) {
			continue
		}
		key := strings.ToLower(addr)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, addr)
	}

	return out
}

// Timezone is the zone report dates are rendered in (Africa/Nairobi).
func Timezone() *time.Location {
	if loc, err := time.LoadLocation("Africa/Nairobi"); err == nil {
		return loc
	}
	return time.FixedZone("EAT", 3*60*60)
}
