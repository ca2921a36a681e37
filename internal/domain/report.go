package domain

import "time"

// DefaultRepairHours is the expected repair duration when none is given.
const DefaultRepairHours = 24

// RepairReport is a maintenance notification for a single truck.
type RepairReport struct {
	RegNo         string `bson:"reg_no" json:"reg_no"`
	DriverName    string `bson:"driver_name" json:"driver_name"`
	DriverNo      string `bson:"driver_no" json:"driver_no"`
	Location      string `bson:"location" json:"location"`
	Email         string `bson:"email" json:"email"`
	EntryNo       string `bson:"entry_no,omitempty" json:"entry_no,omitempty"`
	DurationHours int    `bson:"duration_hours" json:"duration_hours"`
	Team          string `bson:"team" json:"team"`
}

// StayKind distinguishes overnight from overstay reports.
type StayKind string

const (
	StayOvernight StayKind = "overnight"
	StayOverstay  StayKind = "overstay"
)

// Title is the capitalised kind used in subjects and headings.
func (k StayKind) Title() string {
	if k == StayOverstay {
		return "Overstay"
	}
	return "Overnight"
}

// StayTruck is one truck listed in a stay report.
type StayTruck struct {
	RegNo  string `bson:"reg_no" json:"reg_no"`
	Reason string `bson:"reason" json:"reason"`
}

// StayReport lists trucks held at a depot past normal turnaround.
type StayReport struct {
	Kind    StayKind    `bson:"kind" json:"kind"`
	OMCName string      `bson:"omc_name" json:"omc_name"`
	Email   string      `bson:"email" json:"email"`
	Trucks  []StayTruck `bson:"trucks" json:"trucks"`
}

// Report kinds stored in the report log.
const (
	ReportKindRepair    = "repair"
	ReportKindOvernight = "overnight"
	ReportKindOverstay  = "overstay"
)

// Report delivery statuses.
const (
	ReportStatusPending      = "pending"
	ReportStatusCompleted    = "completed"
	ReportStatusEmailFailed  = "email_failed"
	ReportStatusNoRecipients = "no_recipients"
	ReportStatusError        = "error"
)

// ReportRecord is the audit entry written for every generated report.
type ReportRecord struct {
	ID         string    `bson:"report_id" json:"report_id"`
	Kind       string    `bson:"kind" json:"kind"`
	Subject    string    `bson:"subject" json:"subject"`
	UserID     int64     `bson:"user_id" json:"user_id"`
	ChatID     int64     `bson:"chat_id" json:"chat_id"`
	Recipients []string  `bson:"recipients,omitempty" json:"recipients,omitempty"`
	Status     string    `bson:"status" json:"status"`
	Error      string    `bson:"error,omitempty" json:"error,omitempty"`
	CreatedAt  time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt  time.Time `bson:"updated_at" json:"updated_at"`
}
