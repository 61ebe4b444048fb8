package export

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pairings(n int) Dataset {
	data := Dataset{Headers: []string{"Student", "Instructor", "License"}}
	for i := 0; i < n; i++ {
		data.Rows = append(data.Rows, []string{fmt.Sprintf("Student %d", i), "Budi, S.", "B"})
	}
	return data
}

func TestCSVExporterQuotesCells(t *testing.T) {
	out, err := NewCSVExporter().Render(pairings(1))
	require.NoError(t, err)
	assert.Equal(t, "Student,Instructor,License\nStudent 0,\"Budi, S.\",B\n", string(out))
}

func TestRenderRejectsRaggedRows(t *testing.T) {
	data := pairings(1)
	data.Rows = append(data.Rows, []string{"only one"})
	_, err := NewCSVExporter().Render(data)
	assert.Error(t, err)
	_, err = NewCSVExporter().Render(Dataset{})
	assert.Error(t, err)
}

func TestForFormat(t *testing.T) {
	r, err := ForFormat(FormatCSV)
	require.NoError(t, err)
	assert.Equal(t, "text/csv", r.ContentType())

	r, err = ForFormat("")
	require.NoError(t, err)
	assert.Equal(t, "csv", r.Extension())

	_, err = ForFormat("pdf")
	assert.Error(t, err)
}
