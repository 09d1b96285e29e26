package excel

import (
	"io"
	"strings"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"

	"github.com/MarMar-mg/school-managment-system-sub000/core"
	"github.com/MarMar-mg/school-managment-system-sub000/core/school"
)

const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

var (
	studentColumns  = []string{"name", "code", "username", "email", "password"}
	requiredColumns = []string{"name", "code", "password"}
)

func invalidFile(msg string) error {
	return core.NewValidationError(nil, core.FieldError{Field: "file", Error: msg})
}

// ReadStudents parses the first sheet of a workbook into student rows.
// The first row is the header; columns are matched by name, case-insensitively.
// Element i of the result is sheet row i+2.
func ReadStudents(r io.Reader) ([]school.NewStudent, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, invalidFile("not a valid xlsx workbook")
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, invalidFile("workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, errors.Wrap(err, "excel.ReadStudents")
	}
	if len(rows) == 0 {
		return nil, invalidFile("sheet is empty")
	}

	cols := make(map[string]int, len(studentColumns))
	for i, h := range rows[0] {
		h = core.CleanString(h, true /* lower */)
		for _, c := range studentColumns {
			if h == c {
				cols[c] = i
			}
		}
	}
	var missing []string
	for _, c := range requiredColumns {
		if _, ok := cols[c]; !ok {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return nil, invalidFile("missing columns: " + strings.Join(missing, ", "))
	}

	cell := func(row []string, col string) string {
		i, ok := cols[col]
		if !ok || i >= len(row) {
			return ""
		}
		return row[i]
	}

	students := make([]school.NewStudent, 0, len(rows)-1)
	for _, row := range rows[1:] {
		students = append(students, school.NewStudent{
			Name:     cell(row, "name"),
			Code:     cell(row, "code"),
			Username: cell(row, "username"),
			Email:    cell(row, "email"),
			Password: cell(row, "password"),
		})
	}
	return students, nil
}

// WriteSheets writes a workbook with one worksheet per sheet.
func WriteSheets(w io.Writer, sheets ...core.Sheet) error {
	f := excelize.NewFile()
	defer f.Close()

	for i, sh := range sheets {
		name := sh.Name
		if i == 0 {
			if err := f.SetSheetName(f.GetSheetName(0), name); err != nil {
				return errors.Wrap(err, "excel.WriteSheets")
			}
		} else if _, err := f.NewSheet(name); err != nil {
			return errors.Wrap(err, "excel.WriteSheets")
		}

		header := make([]interface{}, len(sh.Header))
		for j, h := range sh.Header {
			header[j] = h
		}
		if err := f.SetSheetRow(name, "A1", &header); err != nil {
			return errors.Wrap(err, "excel.WriteSheets")
		}
		for j, row := range sh.Rows {
			row := row
			axis, err := excelize.CoordinatesToCellName(1, j+2)
			if err != nil {
				return errors.Wrap(err, "excel.WriteSheets")
			}
			if err := f.SetSheetRow(name, axis, &row); err != nil {
				return errors.Wrap(err, "excel.WriteSheets")
			}
		}
	}
	_, err := f.WriteTo(w)
	return errors.Wrap(err, "excel.WriteSheets")
}
