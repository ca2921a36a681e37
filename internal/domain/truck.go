package domain

import (
	"strconv"
	"strings"
)

// TargetSheet names the spreadsheet a new truck entry is written to.
type TargetSheet string

const (
	SheetTransit TargetSheet = "TRANSIT"
	SheetSCT     TargetSheet = "SCT"
)

// CompartmentCount is the number of tanker compartments recorded per entry.
const CompartmentCount = 6

// ParseTargetSheet maps user input to a sheet, case-insensitively.
func ParseTargetSheet(value string) (TargetSheet, bool) {
	switch TargetSheet(strings.ToUpper(strings.TrimSpace(value))) {
	case SheetTransit:
		return SheetTransit, true
	case SheetSCT:
		return SheetSCT, true
	default:
		return "", false
	}
}

// EntryKey is the backend column that stores the entry identifier for the sheet.
func (s TargetSheet) EntryKey() string {
	if s == SheetSCT {
		return "entryNote"
	}
	return "tr812"
}

// EntryLabel is the human name of the entry identifier for the sheet.
func (s TargetSheet) EntryLabel() string {
	if s == SheetSCT {
		return "Entry Note"
	}
	return "Entry"
}

// OptionalKey is the backend column of the sheet's optional field.
func (s TargetSheet) OptionalKey() string {
	if s == SheetSCT {
		return "exitNote"
	}
	return "permit"
}

// OptionalLabel is the human name of the sheet's optional field.
func (s TargetSheet) OptionalLabel() string {
	if s == SheetSCT {
		return "Exit Note"
	}
	return "Permit"
}

// SheetEntry is one truck row destined for the TRANSIT or SCT sheet.
//
// Entry holds the sheet-specific identifier (TR812 number for TRANSIT, entry
// note for SCT). Permit only applies to TRANSIT and ExitNote only to SCT.
type SheetEntry struct {
	Truck        string                    `bson:"truck" json:"truck"`
	Target       TargetSheet               `bson:"target" json:"target"`
	Entry        string                    `bson:"entry" json:"entry"`
	Consignor    string                    `bson:"consignor" json:"consignor"`
	Consignee    string                    `bson:"consignee" json:"consignee"`
	Destination  string                    `bson:"destination" json:"destination"`
	BOL          string                    `bson:"bol" json:"bol"`
	LoadingOrder string                    `bson:"loading_order" json:"loading_order"`
	Product      string                    `bson:"product" json:"product"`
	Compartments [CompartmentCount]float64 `bson:"compartments" json:"compartments"`
	Permit       string                    `bson:"permit,omitempty" json:"permit,omitempty"`
	ExitNote     string                    `bson:"exit_note,omitempty" json:"exit_note,omitempty"`
}

// Sheet returns the target sheet, defaulting to TRANSIT.
func (e SheetEntry) Sheet() TargetSheet {
	if e.Target == SheetSCT {
		return SheetSCT
	}
	return SheetTransit
}

// Optional returns the value of the sheet's optional field.
func (e SheetEntry) Optional() string {
	if e.Sheet() == SheetSCT {
		return e.ExitNote
	}
	return e.Permit
}

// Action is the backend action that creates the entry.
func (e SheetEntry) Action() string {
	if e.Sheet() == SheetSCT {
		return "createSCTEntry"
	}
	return "createTransitEntry"
}

// Payload renders the entry in the backend's wire shape.
func (e SheetEntry) Payload() map[string]any {
	sheet := e.Sheet()
	data := map[string]any{
		"truck":         e.Truck,
		"targetSheet":   string(sheet),
		sheet.EntryKey(): e.Entry,
		"consignor":     e.Consignor,
		"consignee":     e.Consignee,
		"destination":   e.Destination,
		"bol":           e.BOL,
		"loadingOrder":  e.LoadingOrder,
		"product":       e.Product,
	}
	for i, volume := range e.Compartments {
		data["comp"+strconv.Itoa(i+1)] = volume
	}
	if optional := e.Optional(); optional != "" {
		data[sheet.OptionalKey()] = optional
	}
	return data
}

// FormatVolume renders a compartment volume without a trailing ".0".
func FormatVolume(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
