package parser

import (
	"fmt"

	"truck_notify_bot/internal/domain"
)

func (p *Parser) parseStay(m message, kind domain.StayKind) Result {
	report := domain.StayReport{Kind: kind}
	current := -1

	for _, line := range m.lines {
		key, value, ok := labelled(line)
		if !ok {
			continue
		}
		switch key {
		case "omc":
			report.OMCName = value
		case "email":
			if ValidEmail(value) {
				report.Email = value
			}
		case "truck":
			report.Trucks = append(report.Trucks, domain.StayTruck{RegNo: value})
			current = len(report.Trucks) - 1
		case "reason":
			if current >= 0 {
				report.Trucks[current].Reason = value
			}
		}
	}

	if missing := stayMissing(report); len(missing) > 0 {
		return Result{
			Kind:       KindIncomplete,
			Incomplete: &Incomplete{For: KindStayReport, StayKind: kind, Missing: missing},
		}
	}

	return Result{Kind: KindStayReport, Stay: &report}
}

func stayMissing(report domain.StayReport) []MissingField {
	var missing []MissingField
	if report.OMCName == "" {
		missing = append(missing, MissingField{Label: "OMC Name", Hint: `using "omc: [Name]"`})
	}
	if report.Email == "" {
		missing = append(missing, MissingField{Label: "Email Address", Hint: `using "email: [Address]"`})
	}
	if len(report.Trucks) == 0 {
		missing = append(missing, MissingField{Label: "At least one truck", Hint: `using "truck: [Reg No]"`})
		return missing
	}
	for i, truck := range report.Trucks {
		if truck.RegNo == "" {
			missing = append(missing, MissingField{Label: fmt.Sprintf("Truck %d Registration Number", i+1)})
		}
		if truck.Reason == "" {
			missing = append(missing, MissingField{
				Label: fmt.Sprintf("Truck %d Reason", i+1),
				Hint:  `using "reason: [Reason]"`,
			})
		}
	}
	return missing
}
