package ai

import (
	"bufio"
	"encoding/json"
	"io"
	"strings"
)

const (
	dataPrefix   = "data: "
	doneSentinel = "[DONE]"
)

// DeltaScanner walks an SSE-framed completion stream one content delta at a
// time, in the style of bufio.Scanner:
//
//	sc := NewDeltaScanner(body)
//	for sc.Scan() {
//		use(sc.Delta())
//	}
//	if err := sc.Err(); err != nil { ... }
//
// Lines without the data prefix are ignored, the [DONE] sentinel ends the
// sequence without being yielded, frames whose delta is null or empty yield
// nothing, and frames that fail to parse are skipped so one bad frame cannot
// kill an otherwise healthy stream. The sequence is single-use.
type DeltaScanner struct {
	r     *bufio.Reader
	delta string
	done  bool
	err   error
}

// NewDeltaScanner wraps r, which must produce `data: <json>` lines.
func NewDeltaScanner(r io.Reader) *DeltaScanner {
	return &DeltaScanner{r: bufio.NewReader(r)}
}

// Scan advances to the next non-empty content delta. It returns false when
// the stream terminates, whether via [DONE], connection end, or a transport
// error (check Err).
func (s *DeltaScanner) Scan() bool {
	for !s.done {
		line, err := s.r.ReadString('\n')
		if err != nil {
			s.done = true
			if err != io.EOF {
				s.err = err
			}
			if line == "" {
				return false
			}
			// fall through: a final unterminated line may still hold a frame
		}

		payload, ok := strings.CutPrefix(strings.TrimRight(line, "\r\n"), dataPrefix)
		if !ok {
			continue
		}

		payload = strings.TrimSpace(payload)
		if payload == doneSentinel {
			s.done = true
			return false
		}

		var chunk StreamChunk
		if jsonErr := json.Unmarshal([]byte(payload), &chunk); jsonErr != nil {
			continue
		}

		if content := chunk.DeltaContent(); content != "" {
			s.delta = content
			return true
		}
	}
	return false
}

// Delta returns the token produced by the last successful Scan.
func (s *DeltaScanner) Delta() string { return s.delta }

// Err reports the transport error that ended the stream, nil after a clean
// [DONE] or plain connection end.
func (s *DeltaScanner) Err() error { return s.err }

// DeltaStream couples a live response body with its frame scanner so callers
// can range over deltas and release the connection afterwards.
type DeltaStream struct {
	*DeltaScanner
	body io.Closer
}

// NewDeltaStream builds a stream over any readable SSE source. Close releases
// the underlying body.
func NewDeltaStream(rc io.ReadCloser) *DeltaStream {
	return &DeltaStream{DeltaScanner: NewDeltaScanner(rc), body: rc}
}

// Close releases the underlying connection.
func (s *DeltaStream) Close() error {
	return s.body.Close()
}
