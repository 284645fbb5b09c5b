package progress

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBar_AdvanceAndClose(t *testing.T) {
	var buf bytes.Buffer
	b := New(&buf, "scanning")
	b.Advance(1, 4)
	b.Advance(4, 4)
	b.Close()

	out := buf.String()
	assert.Contains(t, out, "scanning: 1/4")
	assert.Contains(t, out, "scanning: 4/4")
	assert.True(t, len(out) > 0 && out[len(out)-1] == '\n')
}

func TestBar_CloseIsIdempotent(t *testing.T) {
	var buf bytes.Buffer
	b := New(&buf, "x")
	b.Close()
	first := buf.String()
	b.Close()
	assert.Equal(t, first, buf.String())
}

func TestBar_NoAdvanceAfterClose(t *testing.T) {
	var buf bytes.Buffer
	b := New(&buf, "x")
	b.Close()
	before := buf.String()
	b.Advance(1, 2)
	assert.Equal(t, before, buf.String())
}
