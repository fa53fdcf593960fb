package fault

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewReport(t *testing.T) {
	cause := errors.New("disk full")
	r := NewReport("journal", "blocked", "/tmp/x.journal", cause)

	id, err := uuid.Parse(r.ID)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), id.Version())
	assert.False(t, r.At.IsZero())
	assert.Equal(t, "journal: blocked (file /tmp/x.journal): disk full", r.String())
}

func TestReport_IDsAreUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		r := NewReport("c", "m", "", nil)
		assert.False(t, seen[r.ID])
		seen[r.ID] = true
	}
}

func TestLog_Notify(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	Log{Logger: logger}.Notify(NewReport("journal", "write failed", "f.journal", errors.New("EIO")))

	out := buf.String()
	assert.Contains(t, out, "level=ERROR")
	assert.Contains(t, out, "write failed")
	assert.Contains(t, out, "component=journal")
	assert.Contains(t, out, "error=EIO")
}

func TestMulti_Notify(t *testing.T) {
	a, b := &Recorder{}, &Recorder{}
	Multi{a, nil, b}.Notify(NewReport("c", "m", "", nil))

	assert.Len(t, a.Reports(), 1)
	assert.Len(t, b.Reports(), 1)
}
