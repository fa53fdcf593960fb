package journal

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/prevail/internal/testutil"
	"github.com/roach88/prevail/internal/turn"
)

var at = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// received is one delivery to a recordingSubscriber.
type received struct {
	Seq        uint64
	Tx         string
	ExecutedAt time.Time
}

type recordingSubscriber struct {
	mu   sync.Mutex
	got  []received
	fail error
}

func (s *recordingSubscriber) Receive(seq uint64, tx []byte, executedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return s.fail
	}
	s.got = append(s.got, received{Seq: seq, Tx: string(tx), ExecutedAt: executedAt})
	return nil
}

func (s *recordingSubscriber) txs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.got))
	for i, r := range s.got {
		out[i] = r.Tx
	}
	return out
}

// openRecovered opens a journal over dir and runs the first Update.
func openRecovered(t *testing.T, dir string, opts ...Option) (*Journal, *recordingSubscriber) {
	t.Helper()
	j, err := Open(dir, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })

	sub := &recordingSubscriber{}
	require.NoError(t, j.Update(sub, 1))
	return j, sub
}

// appendAll appends each payload under its own turn, one after the other.
func appendAll(t *testing.T, j *Journal, payloads ...string) []uint64 {
	t.Helper()
	issuer := turn.NewIssuer(j.NextTransaction())
	var seqs []uint64
	for _, p := range payloads {
		tu := issuer.Issue()
		seq, err := j.Append([]byte(p), at, tu)
		tu.SignalDone()
		require.NoError(t, err)
		seqs = append(seqs, seq)
	}
	return seqs
}

func segmentPathIn(dir string, seq uint64) string {
	return filepath.Join(dir, SegmentName(seq))
}

func fileSize(t *testing.T, path string) int64 {
	t.Helper()
	st, err := os.Stat(path)
	require.NoError(t, err)
	return st.Size()
}

func frameSize(t *testing.T, payload string) int64 {
	t.Helper()
	frame, err := encodeFrame(Record{ExecutedAt: at, Transaction: []byte(payload)})
	require.NoError(t, err)
	return int64(len(frame))
}

func newManualClock() *testutil.ManualClock {
	return testutil.NewManualClock(at)
}
