package wirebase_test

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/coreservice-io/transmitter/wire/wirebase"
)

// testMsg is a minimal Message implementation for exercising the generic
// frame plumbing without pulling in a concrete protocol message.
type testMsg struct {
	body string
	max  uint32
}

func (m *testMsg) MaxHeaderLength() uint32 { return m.max }

func (m *testMsg) Decode(r io.Reader) error {
	b, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.body = string(b)
	return nil
}

func (m *testMsg) Encode(w io.Writer) error {
	_, err := io.WriteString(w, m.body)
	return err
}

func isMessageError(err error) bool {
	var merr *wirebase.MessageError
	return errors.As(err, &merr)
}

func TestWriteFrameLengthField(t *testing.T) {
	var buf bytes.Buffer
	payload := []byte("abc")

	n, err := wirebase.WriteFrame(&buf, payload)
	if err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}
	if want := wirebase.LEN_FIELD_SIZE + len(payload); n != want {
		t.Fatalf("WriteFrame wrote %d bytes, want %d", n, want)
	}

	got := buf.String()
	if got[:wirebase.LEN_FIELD_SIZE] != "         3" {
		t.Fatalf("length field = %q, want right justified space padded %q",
			got[:wirebase.LEN_FIELD_SIZE], "         3")
	}
	if got[wirebase.LEN_FIELD_SIZE:] != "abc" {
		t.Fatalf("payload = %q, want %q", got[wirebase.LEN_FIELD_SIZE:], "abc")
	}
}

func TestWriteFrameRejectsEmptyPayload(t *testing.T) {
	var buf bytes.Buffer
	_, err := wirebase.WriteFrame(&buf, nil)
	if !isMessageError(err) {
		t.Fatalf("WriteFrame(empty) = %v, want MessageError", err)
	}
	if buf.Len() != 0 {
		t.Fatalf("WriteFrame(empty) wrote %d bytes, want none", buf.Len())
	}
}

func TestWriteFrameRejectsOversizedPayload(t *testing.T) {
	var buf bytes.Buffer
	payload := make([]byte, wirebase.HDR_MAX_SIZE+1)
	_, err := wirebase.WriteFrame(&buf, payload)
	if !isMessageError(err) {
		t.Fatalf("WriteFrame(oversized) = %v, want MessageError", err)
	}
}

func TestReadFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	payload := []byte("report.txt|500000")
	if _, err := wirebase.WriteFrame(&buf, payload); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}

	n, got, final, err := wirebase.ReadFrame(&buf)
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if final {
		t.Fatal("ReadFrame flagged a data frame as the terminator")
	}
	if want := wirebase.LEN_FIELD_SIZE + len(payload); n != want {
		t.Fatalf("ReadFrame consumed %d bytes, want %d", n, want)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("ReadFrame payload = %q, want %q", got, payload)
	}
}

func TestReadFrameAcceptsLeftJustifiedLength(t *testing.T) {
	// Writers on other platforms may left justify the decimal.  Any
	// whitespace padded form is valid on the read side.
	stream := "3         " + "abc"

	_, got, final, err := wirebase.ReadFrame(strings.NewReader(stream))
	if err != nil || final {
		t.Fatalf("ReadFrame = (%v, final=%v), want clean data frame", err, final)
	}
	if string(got) != "abc" {
		t.Fatalf("ReadFrame payload = %q, want %q", got, "abc")
	}
}

func TestReadFrameTerminator(t *testing.T) {
	var buf bytes.Buffer
	if _, err := wirebase.WriteTerminator(&buf); err != nil {
		t.Fatalf("WriteTerminator: %v", err)
	}
	if buf.String() != wirebase.FRAME_TERMINATOR {
		t.Fatalf("terminator bytes = %q, want %q", buf.String(),
			wirebase.FRAME_TERMINATOR)
	}

	n, payload, final, err := wirebase.ReadFrame(&buf)
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if !final {
		t.Fatal("ReadFrame did not flag the terminator")
	}
	if payload != nil {
		t.Fatalf("terminator carried payload %q", payload)
	}
	if n != wirebase.LEN_FIELD_SIZE {
		t.Fatalf("ReadFrame consumed %d bytes, want %d", n, wirebase.LEN_FIELD_SIZE)
	}
}

func TestReadFramePaddedZeroIsNotTerminator(t *testing.T) {
	// Only the literal all zeros field closes a stream.  A space padded
	// zero parses to a headerless frame, which is a protocol error.
	_, _, final, err := wirebase.ReadFrame(strings.NewReader("         0"))
	if final {
		t.Fatal("padded zero length was taken for the terminator")
	}
	if !isMessageError(err) {
		t.Fatalf("ReadFrame(padded zero) = %v, want MessageError", err)
	}
}

func TestReadFrameMalformedLength(t *testing.T) {
	tests := []string{
		"abcdefghij",
		"12.5      ",
		"-1        ",
		"          ",
	}
	for _, field := range tests {
		_, _, _, err := wirebase.ReadFrame(strings.NewReader(field))
		if !isMessageError(err) {
			t.Fatalf("ReadFrame(%q) = %v, want MessageError", field, err)
		}
	}
}

func TestReadFrameRogueLength(t *testing.T) {
	// A forged length field must be rejected before any allocation.
	_, _, _, err := wirebase.ReadFrame(strings.NewReader("4294967295"))
	if !isMessageError(err) {
		t.Fatalf("ReadFrame(rogue length) = %v, want MessageError", err)
	}
}

func TestReadFrameShortLengthField(t *testing.T) {
	_, _, _, err := wirebase.ReadFrame(strings.NewReader("123"))
	if err != io.ErrUnexpectedEOF {
		t.Fatalf("ReadFrame(short field) = %v, want %v", err, io.ErrUnexpectedEOF)
	}
}

func TestReadFrameShortPayload(t *testing.T) {
	// Header declares 100 bytes but the stream ends after 5.
	stream := "       100" + "hello"
	_, _, _, err := wirebase.ReadFrame(strings.NewReader(stream))
	if err != io.ErrUnexpectedEOF {
		t.Fatalf("ReadFrame(short payload) = %v, want %v", err, io.ErrUnexpectedEOF)
	}
}

func TestReadFrameCleanEOF(t *testing.T) {
	_, _, _, err := wirebase.ReadFrame(strings.NewReader(""))
	if err != io.EOF {
		t.Fatalf("ReadFrame(empty stream) = %v, want %v", err, io.EOF)
	}
}

func TestMessageRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	in := &testMsg{body: "some header", max: 64}

	if _, err := wirebase.WriteMessage(&buf, in); err != nil {
		t.Fatalf("WriteMessage: %v", err)
	}

	out := &testMsg{max: 64}
	_, final, err := wirebase.ReadMessage(&buf, out)
	if err != nil || final {
		t.Fatalf("ReadMessage = (%v, final=%v), want clean message", err, final)
	}
	if out.body != in.body {
		t.Fatalf("ReadMessage body = %q, want %q", out.body, in.body)
	}
}

func TestReadMessageEnforcesMaxHeaderLength(t *testing.T) {
	var buf bytes.Buffer
	in := &testMsg{body: "this header is far too long", max: 64}
	if _, err := wirebase.WriteMessage(&buf, in); err != nil {
		t.Fatalf("WriteMessage: %v", err)
	}

	out := &testMsg{max: 8}
	_, _, err := wirebase.ReadMessage(&buf, out)
	if !isMessageError(err) {
		t.Fatalf("ReadMessage(oversized header) = %v, want MessageError", err)
	}
	if out.body != "" {
		t.Fatalf("rejected message was decoded anyway: %q", out.body)
	}
}

func TestReadMessageTerminator(t *testing.T) {
	var buf bytes.Buffer
	if _, err := wirebase.WriteTerminator(&buf); err != nil {
		t.Fatalf("WriteTerminator: %v", err)
	}

	out := &testMsg{body: "untouched", max: 64}
	_, final, err := wirebase.ReadMessage(&buf, out)
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	if !final {
		t.Fatal("ReadMessage did not flag the terminator")
	}
	if out.body != "untouched" {
		t.Fatalf("terminator mutated the message: %q", out.body)
	}
}

func TestBodyRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	body := bytes.Repeat([]byte{0xa5}, 4096)

	n, err := wirebase.WriteBody(&buf, body)
	if err != nil {
		t.Fatalf("WriteBody: %v", err)
	}
	if n != len(body) {
		t.Fatalf("WriteBody wrote %d bytes, want %d", n, len(body))
	}

	nr, got, err := wirebase.ReadBody(&buf, uint32(len(body)))
	if err != nil {
		t.Fatalf("ReadBody: %v", err)
	}
	if nr != len(body) || !bytes.Equal(got, body) {
		t.Fatalf("ReadBody returned %d bytes, want the %d written", nr, len(body))
	}
}

func TestReadBodyRogueLength(t *testing.T) {
	_, _, err := wirebase.ReadBody(strings.NewReader("x"),
		wirebase.CHUNK_BODY_MAX_SIZE+1)
	if !isMessageError(err) {
		t.Fatalf("ReadBody(rogue length) = %v, want MessageError", err)
	}
}

func TestReadBodyShort(t *testing.T) {
	_, _, err := wirebase.ReadBody(strings.NewReader("abc"), 10)
	if err != io.ErrUnexpectedEOF {
		t.Fatalf("ReadBody(short) = %v, want %v", err, io.ErrUnexpectedEOF)
	}
}