package ai_test

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/yongyiq/Persona/internal/service/ai"
)

func collect(t *testing.T, sc *ai.DeltaScanner) []string {
	t.Helper()
	var tokens []string
	for sc.Scan() {
		tokens = append(tokens, sc.Delta())
	}
	return tokens
}

func TestDeltaScannerYieldsTokensInOrder(t *testing.T) {
	stream := "data: {\"choices\":[{\"delta\":{\"content\":\"He\"}}]}\n" +
		"\n" +
		"data: {\"choices\":[{\"delta\":{\"content\":\"llo\"}}]}\n" +
		"\n" +
		"data: [DONE]\n"

	sc := ai.NewDeltaScanner(strings.NewReader(stream))
	tokens := collect(t, sc)

	if err := sc.Err(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tokens) != 2 || tokens[0] != "He" || tokens[1] != "llo" {
		t.Fatalf("unexpected tokens: %v", tokens)
	}
}

func TestDeltaScannerSkipsNullAndEmptyDeltas(t *testing.T) {
	stream := "data: {\"choices\":[{\"delta\":{\"role\":\"assistant\"}}]}\n" +
		"data: {\"choices\":[{\"delta\":{\"content\":null}}]}\n" +
		"data: {\"choices\":[{\"delta\":{\"content\":\"\"}}]}\n" +
		"data: {\"choices\":[]}\n" +
		"data: {\"choices\":[{\"delta\":{\"content\":\"ok\"}}]}\n" +
		"data: [DONE]\n"

	sc := ai.NewDeltaScanner(strings.NewReader(stream))
	tokens := collect(t, sc)

	if len(tokens) != 1 || tokens[0] != "ok" {
		t.Fatalf("expected only the non-empty delta, got %v", tokens)
	}
}

func TestDeltaScannerIgnoresNonDataLines(t *testing.T) {
	stream := ": keep-alive comment\n" +
		"event: message\n" +
		"id: 42\n" +
		"data: {\"choices\":[{\"delta\":{\"content\":\"hi\"}}]}\n" +
		"data: [DONE]\n"

	sc := ai.NewDeltaScanner(strings.NewReader(stream))
	tokens := collect(t, sc)

	if len(tokens) != 1 || tokens[0] != "hi" {
		t.Fatalf("unexpected tokens: %v", tokens)
	}
}

func TestDeltaScannerSkipsMalformedFrames(t *testing.T) {
	stream := "data: {this is not json\n" +
		"data: {\"choices\":[{\"delta\":{\"content\":\"still\"}}]}\n" +
		"data: also broken}\n" +
		"data: {\"choices\":[{\"delta\":{\"content\":\" alive\"}}]}\n" +
		"data: [DONE]\n"

	sc := ai.NewDeltaScanner(strings.NewReader(stream))
	tokens := collect(t, sc)

	if err := sc.Err(); err != nil {
		t.Fatalf("malformed frames must not surface an error, got %v", err)
	}
	if len(tokens) != 2 || tokens[0] != "still" || tokens[1] != " alive" {
		t.Fatalf("unexpected tokens: %v", tokens)
	}
}

func TestDeltaScannerStopsAtDone(t *testing.T) {
	stream := "data: {\"choices\":[{\"delta\":{\"content\":\"before\"}}]}\n" +
		"data: [DONE]\n" +
		"data: {\"choices\":[{\"delta\":{\"content\":\"after\"}}]}\n"

	sc := ai.NewDeltaScanner(strings.NewReader(stream))
	tokens := collect(t, sc)

	if len(tokens) != 1 || tokens[0] != "before" {
		t.Fatalf("frames past [DONE] must not be yielded, got %v", tokens)
	}
	if sc.Scan() {
		t.Fatal("scanner must stay exhausted after [DONE]")
	}
}

type failingReader struct {
	r   io.Reader
	err error
}

func (f *failingReader) Read(p []byte) (int, error) {
	n, err := f.r.Read(p)
	if err == io.EOF {
		return n, f.err
	}
	return n, err
}

func TestDeltaScannerReportsTransportError(t *testing.T) {
	boom := errors.New("connection reset")
	stream := "data: {\"choices\":[{\"delta\":{\"content\":\"He\"}}]}\n"

	sc := ai.NewDeltaScanner(&failingReader{r: strings.NewReader(stream), err: boom})
	tokens := collect(t, sc)

	if len(tokens) != 1 || tokens[0] != "He" {
		t.Fatalf("tokens before the failure must still be yielded, got %v", tokens)
	}
	if !errors.Is(sc.Err(), boom) {
		t.Fatalf("expected transport error, got %v", sc.Err())
	}
}
