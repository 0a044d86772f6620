package export

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample() Dataset {
	return Dataset{
		Headers: []string{"FECHA_REGISTRO", "TITULO_PROYECTO", "AUTOR1_CEDULA"},
		Rows: [][]string{
			{"2024-03-10 09:15", "Puente, \"mixto\"", "V-1"},
			{"2024-03-10 10:00", "Riego"},
		},
	}
}

func TestCSVExporterRender(t *testing.T) {
	out, err := NewCSVExporter().Render(sample())
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "FECHA_REGISTRO,TITULO_PROYECTO,AUTOR1_CEDULA", lines[0])
	assert.Equal(t, `2024-03-10 09:15,"Puente, ""mixto""",V-1`, lines[1])
	assert.Equal(t, "2024-03-10 10:00,Riego,", lines[2])
}

func TestCSVExporterRequiresHeaders(t *testing.T) {
	_, err := NewCSVExporter().Render(Dataset{})
	require.Error(t, err)
}

func TestPDFExporterRender(t *testing.T) {
	out, err := NewPDFExporter().Render(sample(), "Inscripciones")
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}

func TestXLSXRoundTrip(t *testing.T) {
	out, err := NewXLSXExporter("Inscripciones").Render(sample())
	require.NoError(t, err)

	data, err := ReadXLSX(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, sample().Headers, data.Headers)
	require.Len(t, data.Rows, 2)
	assert.Equal(t, "V-1", Cell(data.Rows[0], 2))
	assert.Equal(t, "", Cell(data.Rows[1], 2))
}

func TestReadXLSXRejectsGarbage(t *testing.T) {
	_, err := ReadXLSX(strings.NewReader("not a workbook"))
	require.Error(t, err)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "corto", truncate("corto"))
	long := strings.Repeat("á", 40)
	assert.Len(t, []rune(truncate(long)), maxPDFCellRunes)
}
