package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDataset() Dataset {
	return Dataset{
		Summary: []Field{{Label: "Grand average", Value: "4.00"}},
		Headers: []string{"Student", "Overall"},
		Rows: []map[string]string{
			{"Student": "Ana Putri", "Overall": "4.00"},
			{"Student": "Budi", "Overall": "3.25"},
		},
	}
}

func TestCSVExporterRender(t *testing.T) {
	out, err := NewCSVExporter().Render(sampleDataset())
	require.NoError(t, err)
	assert.Equal(t, "Grand average,4.00\n\nStudent,Overall\nAna Putri,4.00\nBudi,3.25\n", string(out))
}

func TestCSVExporterRequiresHeaders(t *testing.T) {
	_, err := NewCSVExporter().Render(Dataset{})
	assert.Error(t, err)
}

func TestPDFExporterRender(t *testing.T) {
	out, err := NewPDFExporter().Render(sampleDataset(), "Evaluation summary")
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}
