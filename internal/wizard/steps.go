package wizard

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"truck_notify_bot/internal/domain"
)

// StepKey identifies a node of the guided entry graph.
type StepKey string

const (
	StepStart         StepKey = "start"
	StepTargetSheet   StepKey = "targetSheet"
	StepEntryTransit  StepKey = "entryTransit"
	StepEntryNoteSCT  StepKey = "entryNoteSCT"
	StepConsignor     StepKey = "consignor"
	StepConsignee     StepKey = "consignee"
	StepDestination   StepKey = "destination"
	StepBOL           StepKey = "bol"
	StepLoadingOrder  StepKey = "loadingOrder"
	StepProduct       StepKey = "product"
	StepComp1         StepKey = "comp1"
	StepComp2         StepKey = "comp2"
	StepComp3         StepKey = "comp3"
	StepComp4         StepKey = "comp4"
	StepComp5         StepKey = "comp5"
	StepComp6         StepKey = "comp6"
	StepPermitTransit StepKey = "permitTransit"
	StepExitNoteSCT   StepKey = "exitNoteSCT"
	StepConfirm       StepKey = "confirm"
)

// MaxCompartmentVolume bounds compartment answers.
const MaxCompartmentVolume = 99999

const (
	msgInvalidNumber = "⚠️ Please enter a valid number. Type `cancel` to exit wizard."
	msgInvalidVolume = "⚠️ Please enter a valid compartment volume (0-99999). Type `cancel` to exit wizard."
	msgInvalidSheet  = "⚠️ Please type `TRANSIT` or `SCT`. Type `cancel` to exit wizard."
	msgEmptyValue    = "⚠️ Please enter a value. Type `cancel` to exit wizard."
)

var skipTokens = map[string]struct{}{"skip": {}, "-": {}}

// Step declares one question of the wizard. Accept validates input and, only
// when valid, stores it on the entry; a non-empty return is the re-prompt.
type Step struct {
	Key      StepKey
	Field    string
	Label    string
	Optional bool
	Prompt   func(entry domain.SheetEntry) string
	Accept   func(entry *domain.SheetEntry, input string) string
	Next     func(entry domain.SheetEntry) StepKey
	Branches []StepKey
}

// Steps returns the full step graph in question order.
func Steps() []Step {
	steps := []Step{
		textStep(StepStart, "truck", "Truck",
			"Welcome to the New Truck Entry Wizard! 🚚\n\nFirst, what is the *Truck Registration Number*? (e.g., KAA123A)",
			StepTargetSheet, func(e *domain.SheetEntry, v string) { e.Truck = v }),
		{
			Key:    StepTargetSheet,
			Field:  "targetSheet",
			Label:  "Target Sheet",
			Prompt: static("Is this for *TRANSIT* or *SCT*?\nType `TRANSIT` or `SCT`."),
			Accept: func(e *domain.SheetEntry, input string) string {
				sheet, ok := domain.ParseTargetSheet(input)
				if !ok {
					return msgInvalidSheet
				}
				e.Target = sheet
				if sheet == domain.SheetSCT {
					e.Permit = ""
				} else {
					e.ExitNote = ""
				}
				return ""
			},
			Next:     entryStepFor,
			Branches: []StepKey{StepEntryTransit, StepEntryNoteSCT},
		},
		textStep(StepEntryTransit, "tr812", "Entry",
			"Enter *Entry Number* for TRANSIT (e.g., 12345):",
			StepConsignor, func(e *domain.SheetEntry, v string) { e.Entry = v }),
		textStep(StepEntryNoteSCT, "entryNote", "Entry Note",
			"Enter *Entry Note* for SCT (e.g., EN-XYZ789):",
			StepConsignor, func(e *domain.SheetEntry, v string) { e.Entry = v }),
		textStep(StepConsignor, "consignor", "Consignor", "Enter *Consignor Name*:",
			StepConsignee, func(e *domain.SheetEntry, v string) { e.Consignor = v }),
		textStep(StepConsignee, "consignee", "Consignee", "Enter *Consignee Name*:",
			StepDestination, func(e *domain.SheetEntry, v string) { e.Consignee = v }),
		textStep(StepDestination, "destination", "Destination", "Enter *Destination*:",
			StepBOL, func(e *domain.SheetEntry, v string) { e.Destination = v }),
		textStep(StepBOL, "bol", "BOL", "Enter *BOL Number*:",
			StepLoadingOrder, func(e *domain.SheetEntry, v string) { e.BOL = v }),
		textStep(StepLoadingOrder, "loadingOrder", "Loading Order", "Enter *Loading Order Number* (e.g., 50059360):",
			StepProduct, func(e *domain.SheetEntry, v string) { e.LoadingOrder = v }),
		textStep(StepProduct, "product", "Product", "Enter *Product Type* (e.g., AGO, PMS, IK, Other):",
			StepComp1, func(e *domain.SheetEntry, v string) { e.Product = v }),
	}

	compKeys := []StepKey{StepComp1, StepComp2, StepComp3, StepComp4, StepComp5, StepComp6}
	for i, key := range compKeys {
		step := compartmentStep(i, key)
		if i+1 < len(compKeys) {
			next := compKeys[i+1]
			step.Next = fixed(next)
			step.Branches = []StepKey{next}
		} else {
			step.Next = optionalStepFor
			step.Branches = []StepKey{StepPermitTransit, StepExitNoteSCT}
		}
		steps = append(steps, step)
	}

	steps = append(steps,
		optionalStep(StepPermitTransit, "permit", "Permit",
			"Enter *Permit Number* (Optional, for TRANSIT SSD - type 'skip' if none):",
			func(e *domain.SheetEntry, v string) { e.Permit = v }),
		optionalStep(StepExitNoteSCT, "exitNote", "Exit Note",
			"Enter *Exit Note* (Optional, for SCT - type 'skip' if none):",
			func(e *domain.SheetEntry, v string) { e.ExitNote = v }),
		Step{
			Key:    StepConfirm,
			Label:  "Review",
			Prompt: Summary,
		},
	)

	return steps
}

// entryStepFor branches on the selected target sheet.
func entryStepFor(e domain.SheetEntry) StepKey {
	if e.Sheet() == domain.SheetSCT {
		return StepEntryNoteSCT
	}
	return StepEntryTransit
}

// optionalStepFor branches after the last compartment.
func optionalStepFor(e domain.SheetEntry) StepKey {
	if e.Sheet() == domain.SheetSCT {
		return StepExitNoteSCT
	}
	return StepPermitTransit
}

func static(text string) func(domain.SheetEntry) string {
	return func(domain.SheetEntry) string { return text }
}

func fixed(key StepKey) func(domain.SheetEntry) StepKey {
	return func(domain.SheetEntry) StepKey { return key }
}

func textStep(key StepKey, field, label, prompt string, next StepKey, set func(*domain.SheetEntry, string)) Step {
	return Step{
		Key:    key,
		Field:  field,
		Label:  label,
		Prompt: static(prompt),
		Accept: func(e *domain.SheetEntry, input string) string {
			if input == "" {
				return msgEmptyValue
			}
			set(e, input)
			return ""
		},
		Next:     fixed(next),
		Branches: []StepKey{next},
	}
}

func optionalStep(key StepKey, field, label, prompt string, set func(*domain.SheetEntry, string)) Step {
	return Step{
		Key:      key,
		Field:    field,
		Label:    label,
		Optional: true,
		Prompt:   static(prompt),
		Accept: func(e *domain.SheetEntry, input string) string {
			if _, skip := skipTokens[strings.ToLower(input)]; skip {
				input = ""
			}
			set(e, input)
			return ""
		},
		Next:     fixed(StepConfirm),
		Branches: []StepKey{StepConfirm},
	}
}

func compartmentStep(index int, key StepKey) Step {
	return Step{
		Key:    key,
		Field:  string(key),
		Label:  fmt.Sprintf("Compartment %d", index+1),
		Prompt: static(fmt.Sprintf("Enter *Compartment %d Volume* (0 if empty):", index+1)),
		Accept: func(e *domain.SheetEntry, input string) string {
			volume, err := strconv.ParseFloat(input, 64)
			if err != nil || math.IsNaN(volume) || math.IsInf(volume, 0) {
				return msgInvalidNumber
			}
			if volume < 0 || volume > MaxCompartmentVolume {
				return msgInvalidVolume
			}
			e.Compartments[index] = volume
			return ""
		},
	}
}

// Summary renders the review shown at the confirm step.
func Summary(e domain.SheetEntry) string {
	sheet := e.Sheet()

	var b strings.Builder
	b.WriteString("*Review Your Entry:*\n\n")
	line := func(label, value string) {
		if value == "" {
			value = "-"
		}
		fmt.Fprintf(&b, "*%s:* %s\n", label, value)
	}

	line("Truck", e.Truck)
	line("Target Sheet", string(sheet))
	line(sheet.EntryLabel(), e.Entry)
	line("Consignor", e.Consignor)
	line("Consignee", e.Consignee)
	line("Destination", e.Destination)
	line("BOL", e.BOL)
	line("Loading Order", e.LoadingOrder)
	line("Product", e.Product)
	for i, volume := range e.Compartments {
		line(fmt.Sprintf("Compartment %d", i+1), domain.FormatVolume(volume))
	}
	line(sheet.OptionalLabel(), e.Optional())

	b.WriteString("\nType `confirm` to submit, `edit <field_name>` to change a value (e.g., `edit truck`), or `cancel` to abort.\n")
	fmt.Fprintf(&b, "Fields: %s", strings.Join(editableFields(sheet), ", "))
	return b.String()
}
