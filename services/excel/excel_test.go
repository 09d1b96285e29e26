package excel

import (
	"bytes"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/MarMar-mg/school-managment-system-sub000/core"
)

func TestWriteThenReadStudents(t *testing.T) {
	sheet := core.Sheet{
		Name:   "students",
		Header: []string{"Code", "Name", "Password", "Email"},
		Rows: [][]interface{}{
			{"s1001", "Reza Karimi", "secret1", "reza@school.test"},
			{"s1002", "Mina Rahimi", "secret2"},
		},
	}
	buf := new(bytes.Buffer)
	require.NoError(t, WriteSheets(buf, sheet))

	rows, err := ReadStudents(buf)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Reza Karimi", rows[0].Name)
	assert.Equal(t, "s1001", rows[0].Code)
	assert.Equal(t, "reza@school.test", rows[0].Email)
	assert.Equal(t, "secret2", rows[1].Password)
	assert.Empty(t, rows[1].Email)
}

func TestReadStudentsMissingColumns(t *testing.T) {
	buf := new(bytes.Buffer)
	require.NoError(t, WriteSheets(buf, core.Sheet{Name: "s", Header: []string{"name"}}))

	_, err := ReadStudents(buf)
	vErr, ok := errors.Cause(err).(*core.ValidationError)
	require.True(t, ok)
	assert.Equal(t, "missing columns: code, password", vErr.Fields[0].Error)

	_, err = ReadStudents(bytes.NewBufferString("not a workbook"))
	assert.IsType(t, &core.ValidationError{}, err)
}

func TestWriteSheetsMultiple(t *testing.T) {
	buf := new(bytes.Buffer)
	require.NoError(t, WriteSheets(buf,
		core.Sheet{Name: "a", Header: []string{"x"}, Rows: [][]interface{}{{1}}},
		core.Sheet{Name: "b", Header: []string{"y"}},
	))

	f, err := excelize.OpenReader(buf)
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{"a", "b"}, f.GetSheetList())
	v, err := f.GetCellValue("a", "A2")
	require.NoError(t, err)
	assert.Equal(t, "1", v)
}
