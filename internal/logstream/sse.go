package logstream

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

// event is one dispatched server-sent event. Err is set instead of Data
// when the event was discarded for exceeding the size limits.
type event struct {
	ID   string
	Type string
	Data string
	Err  error
}

// Size limits for one line and for the joined data of one event.
const (
	maxLine  = 1 << 20
	maxEvent = 4 << 20
)

// errOversized marks an event dropped for exceeding maxLine or maxEvent.
var errOversized = errors.New("event exceeds size limit")

// lineReader splits an event stream into lines ended by CR, LF or CRLF.
// Bytes past maxLine are dropped and the line is flagged.
type lineReader struct {
	r         *bufio.Reader
	buf       []byte
	skipLF    bool
	truncated bool
}

func (lr *lineReader) next() (string, error) {
	lr.buf, lr.truncated = lr.buf[:0], false
	for {
		b, err := lr.r.ReadByte()
		if err != nil {
			return "", err
		}
		if lr.skipLF {
			lr.skipLF = false
			if b == '\n' {
				continue
			}
		}
		switch b {
		case '\n':
			return string(lr.buf), nil
		case '\r':
			lr.skipLF = true
			return string(lr.buf), nil
		}
		if len(lr.buf) < maxLine {
			lr.buf = append(lr.buf, b)
		} else {
			lr.truncated = true
		}
	}
}

// readEvents parses the event-stream format from r and calls fn for every
// dispatched event. An oversized event is reported through fn with Err set
// and reading continues. It returns the first read error, nil on clean EOF.
// An unterminated event at EOF is dropped.
func readEvents(r io.Reader, fn func(event)) error {
	lr := &lineReader{r: bufio.NewReader(r)}

	var (
		cur      event
		data     []string
		size     int
		hasData  bool
		oversize bool
	)
	for {
		line, err := lr.next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		if lr.truncated {
			oversize = true
			continue
		}
		if line == "" {
			switch {
			case oversize:
				fn(event{ID: cur.ID, Type: cur.Type, Err: fmt.Errorf("%w (%d bytes per line, %d per event)", errOversized, maxLine, maxEvent)})
			case hasData:
				cur.Data = strings.Join(data, "\n")
				fn(cur)
			}
			cur, data, size, hasData, oversize = event{}, data[:0], 0, false, false
			continue
		}
		if oversize || strings.HasPrefix(line, ":") {
			continue
		}

		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")
		switch field {
		case "data":
			if size += len(value) + 1; size > maxEvent {
				oversize, data = true, data[:0]
				continue
			}
			data = append(data, value)
			hasData = true
		case "event":
			cur.Type = value
		case "id":
			cur.ID = value
		}
	}
}
