package notification

import (
	"bytes"
	"strings"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"
)

const (
	reportSheet       = "Sheet1"
	reportContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var reportHeaders = []string{"Student", "Email", "Attendance", "Grades"}

// buildReportWorkbook renders the daily report rows as an xlsx spreadsheet.
func buildReportWorkbook(rows []ReportRow) (*bytes.Buffer, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	for col, header := range reportHeaders {
		if err := setCell(f, col+1, 1, header); err != nil {
			return nil, err
		}
	}
	for i, row := range rows {
		grades := make([]string, 0, len(row.Grades))
		for _, g := range row.Grades {
			grades = append(grades, g.CourseName+": "+g.Value)
		}
		values := []string{row.StudentName, row.StudentEmail, row.Attendance, strings.Join(grades, ", ")}
		for col, val := range values {
			if err := setCell(f, col+1, i+2, val); err != nil {
				return nil, err
			}
		}
	}
	if err := f.SetColWidth(reportSheet, "A", "D", 30); err != nil {
		return nil, errors.Wrap(err, "setting column width")
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, errors.Wrap(err, "writing workbook")
	}
	return buf, nil
}

func setCell(f *excelize.File, col, row int, val string) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return errors.Wrap(err, "computing cell name")
	}
	return errors.Wrapf(f.SetCellValue(reportSheet, cell, val), "setting cell %s", cell)
}
