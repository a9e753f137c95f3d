package protocol

import (
	"errors"
	"io"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(t *testing.T, d *Decoder) []Message {
	t.Helper()
	var out []Message
	for d.Next() {
		out = append(out, d.Message())
	}
	return out
}

func TestDecoderSkipsOversizeLine(t *testing.T) {
	huge := `{"type":"error","message":"` + strings.Repeat("x", MaxLineBytes) + `"}`
	input := huge + "\n" + `{"type":"status","state":"connected"}` + "\n"

	var drops []error
	d := NewDecoder(strings.NewReader(input), Options{
		OnDrop: func(_ []byte, err error) { drops = append(drops, err) },
	})
	msgs := collect(t, d)

	require.NoError(t, d.Err())
	require.Len(t, msgs, 1)
	assert.Equal(t, &Status{State: "connected"}, msgs[0])
	require.Len(t, drops, 1)
	assert.ErrorIs(t, drops[0], ErrLineTooLong)
	assert.Equal(t, "oversize", DropReason(drops[0]))
}

func TestDecoderLineAtLimitIsAccepted(t *testing.T) {
	prefix := `{"type":"error","message":"`
	suffix := `"}`
	body := strings.Repeat("y", 100-len(prefix)-len(suffix))
	line := prefix + body + suffix
	require.Len(t, line, 100)

	d := NewDecoder(strings.NewReader(line+"\r\n"+line+"x\n"), Options{MaxLineBytes: 100})
	msgs := collect(t, d)
	require.Len(t, msgs, 1)
	assert.Equal(t, &Error{Message: body}, msgs[0])
}

func TestDecoderSkipsBlankAndMalformedLines(t *testing.T) {
	input := strings.Join([]string{
		"",
		"   ",
		"not json",
		`{"type":"mystery"}`,
		`{"type":"status","state":"discovering"}`,
		"\t",
		`{"type":"error","message":"late"}`,
	}, "\n")

	drops := 0
	var lines []string
	d := NewDecoder(strings.NewReader(input), Options{
		OnDrop: func([]byte, error) { drops++ },
		OnLine: func(l []byte) { lines = append(lines, string(l)) },
	})
	msgs := collect(t, d)

	require.Len(t, msgs, 2)
	assert.Equal(t, &Status{State: "discovering"}, msgs[0])
	assert.Equal(t, &Error{Message: "late"}, msgs[1])
	assert.Equal(t, 2, drops)
	assert.Len(t, lines, 4)
}

func TestDecoderHandlesCRLF(t *testing.T) {
	d := NewDecoder(strings.NewReader("{\"type\":\"status\",\"state\":\"connected\"}\r\n"), Options{})
	msgs := collect(t, d)
	require.Len(t, msgs, 1)
}

func TestDecoderStopFlag(t *testing.T) {
	var stop atomic.Bool
	input := `{"type":"status","state":"connected"}` + "\n" + `{"type":"status","state":"disconnected"}` + "\n"
	d := NewDecoder(strings.NewReader(input), Options{Stop: stop.Load})

	require.True(t, d.Next())
	stop.Store(true)
	assert.False(t, d.Next())
	assert.NoError(t, d.Err())
}

type failingReader struct{ err error }

func (f failingReader) Read([]byte) (int, error) { return 0, f.err }

func TestDecoderReportsReadError(t *testing.T) {
	boom := errors.New("pipe broken")
	d := NewDecoder(io.MultiReader(strings.NewReader(`{"type":"error","message":"a"}`+"\n"), failingReader{boom}), Options{})
	msgs := collect(t, d)
	assert.Len(t, msgs, 1)
	assert.ErrorIs(t, d.Err(), boom)
}

func TestLineScanner(t *testing.T) {
	input := "starting up\n\n  connecting to core  \r\n" + strings.Repeat("z", 50) + "\nbad \xff byte"
	var drops int
	s := NewLineScanner(strings.NewReader(input), Options{
		MaxLineBytes: 40,
		OnDrop:       func([]byte, error) { drops++ },
	})

	var lines []string
	for s.Next() {
		lines = append(lines, s.Text())
	}
	require.NoError(t, s.Err())
	assert.Equal(t, []string{"starting up", "connecting to core", "bad � byte"}, lines)
	assert.Equal(t, 1, drops)
}
