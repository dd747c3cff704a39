package report

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWritePDF(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WritePDF(&buf, sampleDocument()))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))
	assert.Greater(t, buf.Len(), 500)
}

func TestWritePDFLongReportPaginates(t *testing.T) {
	doc := Document{}
	for i := 0; i < 200; i++ {
		doc.Report += "- finding with a reasonably long description line\n"
	}
	var buf bytes.Buffer
	require.NoError(t, WritePDF(&buf, doc))
	assert.Contains(t, buf.String(), "/Count ")
}
