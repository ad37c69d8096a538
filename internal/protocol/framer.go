package protocol

import (
	"bytes"
	"errors"
)

// ErrIncompleteFrame is returned by ScanFrames when the stream ends before a
// sentinel completes.
var ErrIncompleteFrame = errors.New("stream ended inside a frame")

var sentinelMarker = []byte(SentinelMarker)

// ScanFrames is a bufio.SplitFunc that yields one frame body per sentinel.
//
// A sentinel is `<ws>$<digits> = "##ignore##"<ws>*#`. The token is everything
// before the sentinel; the sentinel itself, including the trailing prompt
// character, is consumed. Nothing is returned until the prompt character has
// arrived, so a sentinel split across reads never produces a premature frame.
func ScanFrames(data []byte, atEOF bool) (advance int, token []byte, err error) {
	from := 0
	for {
		i := bytes.Index(data[from:], sentinelMarker)
		if i < 0 {
			break
		}
		m := from + i
		end := m + len(sentinelMarker)

		start, ok := sentinelStart(data, m)
		if !ok {
			from = end
			continue
		}

		j := end
		for j < len(data) && isSpace(data[j]) {
			j++
		}
		if j == len(data) {
			// Prompt not here yet.
			break
		}
		if data[j] != '#' {
			from = end
			continue
		}

		return j + 1, data[:start], nil
	}

	if atEOF && len(bytes.TrimSpace(data)) > 0 {
		return 0, nil, ErrIncompleteFrame
	}
	if atEOF {
		return len(data), nil, nil
	}
	return 0, nil, nil
}

// sentinelStart walks back from the marker at m over ` = `, the history
// number, `$` and one whitespace byte. It returns the offset where the
// sentinel begins.
func sentinelStart(data []byte, m int) (int, bool) {
	k := m
	if k < 3 || string(data[k-3:k]) != " = " {
		return 0, false
	}
	k -= 3

	digits := 0
	for k > 0 && data[k-1] >= '0' && data[k-1] <= '9' {
		k--
		digits++
	}
	if digits == 0 || k == 0 || data[k-1] != '$' {
		return 0, false
	}
	k--

	if k == 0 || !isSpace(data[k-1]) {
		return 0, false
	}
	return k - 1, true
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\r' || b == '\n' || b == '\v' || b == '\f'
}

// Framer incrementally extracts frame bodies from a byte stream that arrives
// in arbitrary chunks. Unconsumed bytes stay buffered until a complete
// sentinel is seen.
type Framer struct {
	buf []byte
}

// NewFramer creates an empty framer
func NewFramer() *Framer {
	return &Framer{}
}

// Feed appends a received chunk
func (f *Framer) Feed(chunk []byte) {
	f.buf = append(f.buf, chunk...)
}

// Next returns the next complete frame body, if one is buffered.
func (f *Framer) Next() (string, bool) {
	advance, token, _ := ScanFrames(f.buf, false)
	if advance == 0 {
		return "", false
	}

	body := string(token)
	rest := f.buf[advance:]
	if len(rest) == 0 {
		f.buf = nil
	} else {
		f.buf = append(make([]byte, 0, len(rest)), rest...)
	}
	return body, true
}

// Drain returns every complete frame currently buffered
func (f *Framer) Drain() []string {
	var frames []string
	for {
		body, ok := f.Next()
		if !ok {
			return frames
		}
		frames = append(frames, body)
	}
}

// Pending returns the number of buffered, unconsumed bytes
func (f *Framer) Pending() int {
	return len(f.buf)
}

// Reset discards all buffered bytes
func (f *Framer) Reset() {
	f.buf = nil
}
