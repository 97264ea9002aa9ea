package ingest

import (
	"bufio"
	"io"
	"strings"
)

const maxFrameSize = 8 << 20

// Frame is one dispatch unit of the event stream.
type Frame struct {
	Heartbeat bool
	Data      string
}

// FrameReader splits an event stream into frames. A comment line yields a
// heartbeat immediately; data lines replace the pending buffer and a blank
// line dispatches it. Other fields are ignored.
type FrameReader struct {
	sc      *bufio.Scanner
	pending string
}

func NewFrameReader(r io.Reader) *FrameReader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxFrameSize)
	return &FrameReader{sc: sc}
}

// Next returns the next frame. At end of input it returns io.EOF; a
// dispatch that never saw its blank line is dropped.
func (fr *FrameReader) Next() (Frame, error) {
	for fr.sc.Scan() {
		line := strings.TrimSuffix(fr.sc.Text(), "\r")
		switch {
		case line == "":
			if fr.pending == "" {
				continue
			}
			data := fr.pending
			fr.pending = ""
			return Frame{Data: data}, nil
		case strings.HasPrefix(line, ":"):
			return Frame{Heartbeat: true}, nil
		case strings.HasPrefix(line, "data:"):
			fr.pending = strings.TrimSpace(line[len("data:"):])
		}
	}
	if err := fr.sc.Err(); err != nil {
		return Frame{}, err
	}
	return Frame{}, io.EOF
}
