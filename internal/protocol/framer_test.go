package protocol

import (
	"bufio"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func frame(body string, n int) string {
	return body + " $" + strconv.Itoa(n) + ` = "##ignore##"` + "\r\n# "
}

func TestFramerExtractsSingleFrame(t *testing.T) {
	f := NewFramer()
	f.Feed([]byte(frame(`{"id":1,"success":1,"result":2,"error":null}`, 3)))

	body, ok := f.Next()
	require.True(t, ok)
	assert.Equal(t, `{"id":1,"success":1,"result":2,"error":null}`, body)

	_, ok = f.Next()
	assert.False(t, ok)
}

func TestFramerExtractsBatchedFrames(t *testing.T) {
	f := NewFramer()
	f.Feed([]byte(frame(`{"id":1}`, 1) + frame(`{"id":2}`, 2) + frame(`{"id":3}`, 3)))

	frames := f.Drain()
	require.Len(t, frames, 3)
	assert.Equal(t, `{"id":1}`, frames[0])
	assert.Equal(t, `{"id":2}`, strings.TrimSpace(frames[1]))
	assert.Equal(t, `{"id":3}`, strings.TrimSpace(frames[2]))
}

func TestFramerIsChunkBoundaryInvariant(t *testing.T) {
	stream := frame(`{"id":7,"success":1,"result":({ 1, 2, }),"error":nil}`, 12) +
		frame(`{"id":8,"success":0,"result":nil,"error":"Bad"}`, 13)

	whole := NewFramer()
	whole.Feed([]byte(stream))
	want := whole.Drain()
	require.Len(t, want, 2)

	for cut := 1; cut < len(stream); cut++ {
		f := NewFramer()
		f.Feed([]byte(stream[:cut]))
		got := f.Drain()
		f.Feed([]byte(stream[cut:]))
		got = append(got, f.Drain()...)

		require.Equal(t, want, got, "split at %d", cut)
	}
}

func TestFramerWaitsForPrompt(t *testing.T) {
	f := NewFramer()
	f.Feed([]byte(`{"id":1} $4 = "##ignore##"` + "\r\n"))

	_, ok := f.Next()
	assert.False(t, ok, "frame must not be emitted before the prompt arrives")
	assert.Greater(t, f.Pending(), 0)

	f.Feed([]byte("# "))
	body, ok := f.Next()
	require.True(t, ok)
	assert.Equal(t, `{"id":1}`, body)
}

func TestFramerIgnoresMarkerInsidePayload(t *testing.T) {
	f := NewFramer()
	payload := `{"id":1,"success":1,"result":"##ignore##","error":null}`
	f.Feed([]byte(frame(payload, 1)))

	body, ok := f.Next()
	require.True(t, ok)
	assert.Equal(t, payload, body)
}

func TestFramerReset(t *testing.T) {
	f := NewFramer()
	f.Feed([]byte(`{"id":1} $4 = "##ig`))
	f.Reset()
	assert.Equal(t, 0, f.Pending())
}

func TestScanFramesWithScanner(t *testing.T) {
	stream := frame(`{"id":1}`, 1) + frame(`{"id":2}`, 2)
	scanner := bufio.NewScanner(strings.NewReader(stream))
	scanner.Split(ScanFrames)

	var bodies []string
	for scanner.Scan() {
		bodies = append(bodies, strings.TrimSpace(scanner.Text()))
	}
	require.NoError(t, scanner.Err())
	assert.Equal(t, []string{`{"id":1}`, `{"id":2}`}, bodies)
}

func TestScanFramesReportsTruncatedStream(t *testing.T) {
	scanner := bufio.NewScanner(strings.NewReader(frame(`{"id":1}`, 1) + `{"id":2} $2 = "##ign`))
	scanner.Split(ScanFrames)

	require.True(t, scanner.Scan())
	assert.False(t, scanner.Scan())
	assert.ErrorIs(t, scanner.Err(), ErrIncompleteFrame)
}
