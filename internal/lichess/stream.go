package lichess

import (
	"bufio"
	"context"
	"errors"
	"io"

	"github.com/valyala/fasthttp"

	"github.com/coursova/lichess-stats-bot/pkg/statsdto"
)

// errRecordTooLong marks a single export line past maxGameLine. The line
// is discarded in full and the stream stays usable, so callers count the
// record as skipped instead of failing the batch.
var errRecordTooLong = errors.New("game record exceeds size limit")

// GameStream is a lazy, finite, non-restartable sequence of raw game
// payloads, one NDJSON line each. Consume with Next until io.EOF, then
// Close. Stopping early is fine; Close discards the remainder of the body.
type GameStream struct {
	req    *fasthttp.Request
	resp   *fasthttp.Response
	br     *bufio.Reader
	closed bool
}

// Next returns the next raw game record. io.EOF signals a cleanly finished
// stream; a cancelled context yields the Cancelled outcome; an oversized
// record yields errRecordTooLong and leaves the stream positioned at the
// following record.
func (s *GameStream) Next(ctx context.Context) ([]byte, error) {
	if s.closed {
		return nil, io.EOF
	}
	for {
		if err := ctx.Err(); err != nil {
			return nil, statsdto.Cancelled(err)
		}
		line, err := s.readLine()
		if err == io.EOF || err == errRecordTooLong {
			return nil, err
		}
		if err != nil {
			return nil, statsdto.Unavailable("reading game stream", err)
		}
		if len(line) == 0 {
			continue
		}
		return line, nil
	}
}

// readLine reads one newline-terminated record, growing past the reader's
// buffer as needed up to maxGameLine. Anything larger is drained to its
// newline and reported as errRecordTooLong.
func (s *GameStream) readLine() ([]byte, error) {
	var line []byte
	overflow := false
	for {
		chunk, err := s.br.ReadSlice('\n')
		if !overflow {
			line = append(line, chunk...)
			if len(line) > maxGameLine {
				line = nil
				overflow = true
			}
		}
		if err == bufio.ErrBufferFull {
			continue
		}
		if err == io.EOF {
			if overflow {
				return nil, errRecordTooLong
			}
			line = trimEOL(line)
			if len(line) == 0 {
				return nil, io.EOF
			}
			return line, nil
		}
		if err != nil {
			return nil, err
		}
		if overflow {
			return nil, errRecordTooLong
		}
		return trimEOL(line), nil
	}
}

func trimEOL(line []byte) []byte {
	for len(line) > 0 && (line[len(line)-1] == '\n' || line[len(line)-1] == '\r') {
		line = line[:len(line)-1]
	}
	return line
}

// Close releases the underlying connection. Safe to call more than once.
func (s *GameStream) Close() {
	if s.closed {
		return
	}
	s.closed = true
	if s.req != nil {
		fasthttp.ReleaseRequest(s.req)
	}
	if s.resp != nil {
		fasthttp.ReleaseResponse(s.resp)
	}
}
