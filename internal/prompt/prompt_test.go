package prompt

import (
	"bufio"
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfirm(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		phrase string
		fold   bool
		want   bool
	}{
		{"exact", "DELETE\n", "DELETE", true, true},
		{"lower case folds", "  delete \n", "DELETE", true, true},
		{"no trailing newline", "ARCHIVE", "ARCHIVE", true, true},
		{"yes is not enough", "yes\n", "DELETE", true, false},
		{"empty", "\n", "DELETE", true, false},
		{"eof", "", "DELETE", true, false},
		{"exact phrase", "CLEAR DATABASE\n", "CLEAR DATABASE", false, true},
		{"exact phrase trimmed", "  CLEAR DATABASE  \n", "CLEAR DATABASE", false, true},
		{"exact phrase is case sensitive", "clear database\n", "CLEAR DATABASE", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			got := Confirm(strings.NewReader(tt.input), &out, "Delete 3 orders?", tt.phrase, tt.fold)
			assert.Equal(t, tt.want, got)
			assert.Contains(t, out.String(), "Type '"+tt.phrase+"' to confirm")
		})
	}
}

func TestAskThenConfirmShareReader(t *testing.T) {
	in := bufio.NewReader(strings.NewReader("December 2025\nARCHIVE\n"))
	var out bytes.Buffer

	month, ok := Ask(in, &out, "Archive month")
	assert.True(t, ok)
	assert.Equal(t, "December 2025", month)
	assert.True(t, Confirm(in, &out, "Archive 2 orders?", "ARCHIVE", true))
}

func TestAskEOF(t *testing.T) {
	_, ok := Ask(strings.NewReader(""), &bytes.Buffer{}, "Archive month")
	assert.False(t, ok)
}
