package export

import (
	"bytes"
	"encoding/csv"
	"testing"

	"github.com/parisxmas/fsdash/pkg/fsclient"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func sample() []fsclient.Submission {
	failed := fsclient.StatusFailed
	return []fsclient.Submission{
		{
			ID:        "s1",
			CreatedAt: "2024-05-01T10:00:00Z",
			Status:    &failed,
			CreateSubmissionRequest: fsclient.CreateSubmissionRequest{
				FullLegalName: "Doe, Jane",
				Email:         "jane@example.com",
				CompanyName:   "ACME",
			},
		},
		{ID: "s2"},
	}
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("CSV")
	require.NoError(t, err)
	assert.Equal(t, CSV, f)

	f, err = ParseFormat("excel")
	require.NoError(t, err)
	assert.Equal(t, XLSX, f)
	assert.Equal(t, "submissions.xlsx", f.Filename())

	_, err = ParseFormat("pdf")
	assert.Error(t, err)
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, CSV, sample()))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, Header, records[0])
	assert.Equal(t, []string{"s1", "Doe, Jane", "jane@example.com", "ACME", "failed", "2024-05-01T10:00:00Z"}, records[1])
	assert.Equal(t, []string{"s2", "", "", "", "", ""}, records[2])
}

func TestWriteXLSX(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, XLSX, sample()))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(SheetName)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, Header, rows[0])
	assert.Equal(t, "Doe, Jane", rows[1][1])
	assert.Equal(t, "failed", rows[1][4])
	assert.Equal(t, "s2", rows[2][0])
}

func TestNeutralize(t *testing.T) {
	for _, tc := range [][2]string{
		{`=HYPERLINK("http://x")`, `'=HYPERLINK("http://x")`},
		{"+1", "'+1"},
		{"-2+3", "'-2+3"},
		{"@SUM(A1)", "'@SUM(A1)"},
		{"\tx", "'\tx"},
		{"Jane", "Jane"},
		{"a=b", "a=b"},
		{"", ""},
	} {
		assert.Equal(t, tc[1], Neutralize(tc[0]), tc[0])
	}
}

func TestWrite_NeutralizesFormulas(t *testing.T) {
	items := []fsclient.Submission{{
		ID: "s1",
		CreateSubmissionRequest: fsclient.CreateSubmissionRequest{
			FullLegalName: "=cmd|' /C calc'!A0",
			Email:         "@evil.example",
			CompanyName:   "+ACME",
		},
	}}

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, CSV, items))
	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, "'=cmd|' /C calc'!A0", records[1][1])
	assert.Equal(t, "'@evil.example", records[1][2])
	assert.Equal(t, "'+ACME", records[1][3])

	buf.Reset()
	require.NoError(t, Write(&buf, XLSX, items))
	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()
	formula, err := f.GetCellFormula(SheetName, "B2")
	require.NoError(t, err)
	assert.Empty(t, formula)
	v, err := f.GetCellValue(SheetName, "B2")
	require.NoError(t, err)
	assert.Equal(t, "'=cmd|' /C calc'!A0", v)

	assert.Equal(t, "=cmd|' /C calc'!A0", Row(items[0])[1], "Row keeps the raw value")
}
