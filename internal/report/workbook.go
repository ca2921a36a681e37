package report

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"truck_notify_bot/internal/domain"
	"truck_notify_bot/internal/sheets"
)

const (
	xlsxExt         = ".xlsx"
	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	sheetName       = "Report"
)

// Attachment is a rendered file ready to be sent in chat or by email.
type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Document bundles the email text with its attachment.
type Document struct {
	Subject    string
	Body       string
	Attachment Attachment
}

// Renderer builds report documents stamped with the company name.
type Renderer struct {
	company string
	now     func() time.Time
}

// NewRenderer constructs a Renderer.
func NewRenderer(company string) *Renderer {
	return &Renderer{company: strings.TrimSpace(company), now: time.Now}
}

// Repair renders a maintenance report.
func (r *Renderer) Repair(rep domain.RepairReport) (Document, error) {
	if r == nil {
		return Document{}, errors.New("renderer is not initialized")
	}
	if strings.TrimSpace(rep.RegNo) == "" {
		return Document{}, errors.New("registration number is required")
	}

	now := r.now()
	hours := rep.DurationHours
	if hours == 0 {
		hours = domain.DefaultRepairHours
	}

	pairs := [][2]string{
		{"Registration Number", rep.RegNo},
		{"Entry Number", rep.EntryNo},
		{"Driver's Name", rep.DriverName},
		{"Mobile Number", rep.DriverNo},
		{"Location", rep.Location},
		{"Site Details", siteDetails},
		{"Cargo Type", cargoType},
		{"Expected Duration", fmt.Sprintf("%d hours", hours)},
		{"Response Team", rep.Team},
		{"Reported By", rep.Email},
	}

	data, err := r.keyValueWorkbook("TRUCK MAINTENANCE NOTIFICATION - "+rep.RegNo, now, pairs)
	if err != nil {
		return Document{}, fmt.Errorf("render repair report: %w", err)
	}

	return Document{
		Subject:    RepairSubject(rep),
		Body:       RepairBody(rep, now),
		Attachment: Attachment{Filename: RepairFilename(rep), ContentType: xlsxContentType, Data: data},
	}, nil
}

// Stay renders an overnight or overstay report with one row per truck.
func (r *Renderer) Stay(rep domain.StayReport) (Document, error) {
	if r == nil {
		return Document{}, errors.New("renderer is not initialized")
	}
	if len(rep.Trucks) == 0 {
		return Document{}, errors.New("at least one truck is required")
	}

	now := r.now()
	rows := make([][]string, 0, len(rep.Trucks))
	for i, truck := range rep.Trucks {
		rows = append(rows, []string{fmt.Sprint(i + 1), truck.RegNo, truck.Reason})
	}

	title := fmt.Sprintf("%s TRUCKS NOTIFICATION - %s", strings.ToUpper(string(rep.Kind)), strings.ToUpper(rep.OMCName))
	data, err := r.tableWorkbook(title, now, []string{"No.", "Registration Number", "Reason"}, rows, []float64{8, 28, 50})
	if err != nil {
		return Document{}, fmt.Errorf("render %s report: %w", rep.Kind, err)
	}

	return Document{
		Subject:    StaySubject(rep),
		Body:       StayBody(rep, now),
		Attachment: Attachment{Filename: StayFilename(rep), ContentType: xlsxContentType, Data: data},
	}, nil
}

// Rows exports looked-up spreadsheet rows as a field/value workbook.
func (r *Renderer) Rows(sheet domain.TargetSheet, rows []sheets.Row) (Attachment, error) {
	if r == nil {
		return Attachment{}, errors.New("renderer is not initialized")
	}
	if len(rows) == 0 {
		return Attachment{}, errors.New("no rows to export")
	}

	table := make([][]string, 0)
	for _, row := range rows {
		for _, field := range row {
			if field.Key == "ROW_NUMBER" || field.Value == "" {
				continue
			}
			table = append(table, []string{row.Number(), field.Key, field.Value})
		}
	}

	title := fmt.Sprintf("%s SHEET - ROW %s", sheet, rows[0].Number())
	data, err := r.tableWorkbook(title, r.now(), []string{"Row", "Field", "Value"}, table, []float64{8, 30, 50})
	if err != nil {
		return Attachment{}, fmt.Errorf("render row export: %w", err)
	}

	return Attachment{
		Filename:    fmt.Sprintf("Row-%s-%s%s", sheet, SafeName(rows[0].Number()), xlsxExt),
		ContentType: xlsxContentType,
		Data:        data,
	}, nil
}

func (r *Renderer) keyValueWorkbook(title string, now time.Time, pairs [][2]string) ([]byte, error) {
	rows := make([][]string, 0, len(pairs))
	for _, p := range pairs {
		if strings.TrimSpace(p[1]) == "" {
			continue
		}
		rows = append(rows, []string{p[0], p[1]})
	}
	return r.tableWorkbook(title, now, []string{"Field", "Value"}, rows, []float64{28, 50})
}

// tableWorkbook lays out a company banner, title and date, then a bordered
// table with a shaded header row.
func (r *Renderer) tableWorkbook(title string, now time.Time, headers []string, rows [][]string, widths []float64) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), sheetName); err != nil {
		return nil, err
	}

	lastCol, err := excelize.ColumnNumberToName(len(headers))
	if err != nil {
		return nil, err
	}

	bannerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 14, Family: "Calibri"},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return nil, err
	}

	border := []excelize.Border{
		{Type: "left", Color: "000000", Style: 1},
		{Type: "right", Color: "000000", Style: 1},
		{Type: "top", Color: "000000", Style: 1},
		{Type: "bottom", Color: "000000", Style: 1},
	}
	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11, Family: "Calibri"},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#D9D9D9"}, Pattern: 1},
		Border:    border,
	})
	if err != nil {
		return nil, err
	}
	dataStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Size: 11, Family: "Calibri"},
		Alignment: &excelize.Alignment{Vertical: "center", WrapText: true},
		Border:    border,
	})
	if err != nil {
		return nil, err
	}

	banner := []string{r.company, title, "Date: " + now.In(Timezone()).Format(stampLayout)}
	for i, text := range banner {
		row := i + 1
		start := fmt.Sprintf("A%d", row)
		end := fmt.Sprintf("%s%d", lastCol, row)
		if err := f.MergeCell(sheetName, start, end); err != nil {
			return nil, err
		}
		if err := f.SetCellValue(sheetName, start, text); err != nil {
			return nil, err
		}
		if err := f.SetCellStyle(sheetName, start, end, bannerStyle); err != nil {
			return nil, err
		}
	}

	headerRow := len(banner) + 2
	for i, h := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, headerRow)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellValue(sheetName, cell, h); err != nil {
			return nil, err
		}
	}
	if err := f.SetCellStyle(sheetName, fmt.Sprintf("A%d", headerRow), fmt.Sprintf("%s%d", lastCol, headerRow), headerStyle); err != nil {
		return nil, err
	}

	for rowIdx, values := range rows {
		for colIdx, val := range values {
			cell, err := excelize.CoordinatesToCellName(colIdx+1, headerRow+1+rowIdx)
			if err != nil {
				return nil, err
			}
			if err := f.SetCellValue(sheetName, cell, val); err != nil {
				return nil, err
			}
		}
	}
	if len(rows) > 0 {
		lastRow := headerRow + len(rows)
		if err := f.SetCellStyle(sheetName, fmt.Sprintf("A%d", headerRow+1), fmt.Sprintf("%s%d", lastCol, lastRow), dataStyle); err != nil {
			return nil, err
		}
	}

	for i, w := range widths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetColWidth(sheetName, col, col, w); err != nil {
			return nil, err
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}
