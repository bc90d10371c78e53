package trec

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExporter_Write(t *testing.T) {
	var buf bytes.Buffer
	e, err := NewExporter(&buf, "bertrank")
	require.NoError(t, err)

	require.NoError(t, e.Write(
		RankedEntry{QueryID: "1", DocID: "ug7v899j", Rank: 1, Score: 0.93211},
		RankedEntry{QueryID: "1", DocID: "02tnwd4m", Rank: 2, Score: 0.5, RunTag: "bertrank"},
	))
	require.NoError(t, e.Write(RankedEntry{QueryID: "2", DocID: "a1", Rank: 1, Score: -0.0000004}))
	require.NoError(t, e.Flush())

	want := "1 Q0 ug7v899j 1 0.932110 bertrank\n" +
		"1 Q0 02tnwd4m 2 0.500000 bertrank\n" +
		"2 Q0 a1 1 -0.000000 bertrank\n"
	assert.Equal(t, want, buf.String())
	assert.Equal(t, 3, e.Written())
}

func TestExporter_Precision(t *testing.T) {
	tests := []struct {
		name      string
		precision int
		score     float64
		want      string
	}{
		{name: "default", precision: DefaultPrecision, score: 0.123456789, want: "0.123457"},
		{name: "two places", precision: 2, score: 0.126, want: "0.13"},
		{name: "integer", precision: 0, score: 0.7, want: "1"},
		{name: "shortest", precision: ShortestPrecision, score: 0.1 + 0.2, want: "0.30000000000000004"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			e, err := NewExporter(&buf, "tag", WithPrecision(tt.precision))
			require.NoError(t, err)
			require.NoError(t, e.Write(RankedEntry{QueryID: "q", DocID: "d", Rank: 1, Score: tt.score}))
			require.NoError(t, e.Flush())
			assert.Equal(t, "q Q0 d 1 "+tt.want+" tag\n", buf.String())
		})
	}
}

func TestExporter_PreservesOrder(t *testing.T) {
	var buf bytes.Buffer
	e, err := NewExporter(&buf, "t")
	require.NoError(t, err)

	// Out of score order on purpose: the exporter must not reorder.
	in := []RankedEntry{
		{QueryID: "2", DocID: "b", Rank: 1, Score: 0.1},
		{QueryID: "1", DocID: "a", Rank: 1, Score: 0.9},
		{QueryID: "1", DocID: "c", Rank: 2, Score: 0.95},
	}
	require.NoError(t, e.Write(in...))
	require.NoError(t, e.Flush())

	out, err := ParseRun(&buf)
	require.NoError(t, err)
	require.Len(t, out, len(in))
	for i := range in {
		assert.Equal(t, in[i].QueryID, out[i].QueryID)
		assert.Equal(t, in[i].DocID, out[i].DocID)
		assert.Equal(t, in[i].Rank, out[i].Rank)
		assert.InDelta(t, in[i].Score, out[i].Score, 1e-6)
		assert.Equal(t, "t", out[i].RunTag)
	}
}

func TestNewExporter_InvalidTag(t *testing.T) {
	for _, tag := range []string{"", "two words", "tab\there", "nl\n"} {
		_, err := NewExporter(&bytes.Buffer{}, tag)
		assert.ErrorIs(t, err, ErrInvalidTag, "tag %q", tag)
	}

	_, err := NewExporter(&bytes.Buffer{}, "ok", WithPrecision(-2))
	assert.Error(t, err)
}

func TestExporter_TagMismatch(t *testing.T) {
	var buf bytes.Buffer
	e, err := NewExporter(&buf, "mine")
	require.NoError(t, err)

	err = e.Write(RankedEntry{QueryID: "1", DocID: "d", Rank: 1, RunTag: "theirs"})
	assert.ErrorIs(t, err, ErrTagMismatch)
	assert.Zero(t, e.Written())
}

// callRecorder keeps each Write call separately.
type callRecorder struct{ calls []string }

func (r *callRecorder) Write(p []byte) (int, error) {
	r.calls = append(r.calls, string(p))
	return len(p), nil
}

func TestExporter_GroupWrites(t *testing.T) {
	rec := &callRecorder{}
	e, err := NewExporter(rec, "bertrank-long-run-tag", WithGroupWrites())
	require.NoError(t, err)

	// Larger than a default bufio buffer, so a buffered exporter would
	// split it mid-line.
	group := make([]RankedEntry, 200)
	for i := range group {
		group[i] = RankedEntry{QueryID: "1", DocID: fmt.Sprintf("doc-%04d", i), Rank: i + 1, Score: 0.5}
	}
	require.NoError(t, e.Write(group...))
	require.NoError(t, e.Write(RankedEntry{QueryID: "2", DocID: "a", Rank: 1, Score: 0.1}))
	require.NoError(t, e.Write())
	require.NoError(t, e.Flush())

	require.Len(t, rec.calls, 2)
	assert.Greater(t, len(rec.calls[0]), 4096)
	for _, call := range rec.calls {
		assert.True(t, strings.HasSuffix(call, "\n"))
	}
	assert.Equal(t, 200, strings.Count(rec.calls[0], "\n"))
	assert.Equal(t, 201, e.Written())
}

func TestExporter_TagMismatchWritesNothing(t *testing.T) {
	rec := &callRecorder{}
	e, err := NewExporter(rec, "mine", WithGroupWrites())
	require.NoError(t, err)

	err = e.Write(
		RankedEntry{QueryID: "1", DocID: "a", Rank: 1},
		RankedEntry{QueryID: "1", DocID: "b", Rank: 2, RunTag: "theirs"},
	)
	assert.ErrorIs(t, err, ErrTagMismatch)
	assert.Empty(t, rec.calls)
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestExporter_FlushError(t *testing.T) {
	e, err := NewExporter(failingWriter{}, "t")
	require.NoError(t, err)
	require.NoError(t, e.Write(RankedEntry{QueryID: "1", DocID: "d", Rank: 1}))
	assert.ErrorContains(t, e.Flush(), "disk full")
}

func TestParseRun_Malformed(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "too few fields", input: "1 Q0 d 1 0.5\n"},
		{name: "bad literal", input: "1 Q1 d 1 0.5 t\n"},
		{name: "bad rank", input: "1 Q0 d zero 0.5 t\n"},
		{name: "zero rank", input: "1 Q0 d 0 0.5 t\n"},
		{name: "bad score", input: "1 Q0 d 1 high t\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseRun(strings.NewReader(tt.input))
			assert.ErrorIs(t, err, ErrMalformedLine)
		})
	}
}

func TestParseRun_SkipsBlankLines(t *testing.T) {
	entries, err := ParseRun(strings.NewReader("\n1 Q0 d 1 0.5 t\n\n"))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
