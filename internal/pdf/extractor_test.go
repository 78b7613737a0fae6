package pdfutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitLines(t *testing.T) {
	assert.Equal(t, []string{"MRP Rs. 99", "Net Qty: 200 g"}, SplitLines("  MRP Rs. 99 \r\n\n\tNet Qty: 200 g\n  \n"))
	assert.Nil(t, SplitLines(" \n \n"))
}

func TestExtractLinesRejectsNonPDF(t *testing.T) {
	_, err := ExtractLines([]byte("MRP Rs. 99"))
	assert.Error(t, err)
}
