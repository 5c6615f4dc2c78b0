package wirebase

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// writes a header frame to w: the fixed width decimal length field
// followed by the header payload.
// It returns the number of bytes written.
func WriteFrame(w io.Writer, payload []byte) (int, error) {
	lenp := len(payload)

	// The all zeros length field is reserved for the terminator.
	if lenp == 0 {
		return 0, NewMessageError("WriteFrame",
			"header payload is empty, only the terminator frame is headerless")
	}

	// Enforce maximum header payload.
	if lenp > HDR_MAX_SIZE {
		str := fmt.Sprintf("header payload is too large - encoded "+
			"%d bytes, but maximum header payload is %d bytes",
			lenp, HDR_MAX_SIZE)
		return 0, NewMessageError("WriteFrame", str)
	}

	totalBytes := 0

	n, err := fmt.Fprintf(w, "%*d", LEN_FIELD_SIZE, lenp)
	totalBytes += n
	if err != nil {
		return totalBytes, err
	}

	n, err = w.Write(payload)
	totalBytes += n
	return totalBytes, err
}

// writes the frame that closes a transfer stream.
func WriteTerminator(w io.Writer) (int, error) {
	return io.WriteString(w, FRAME_TERMINATOR)
}

// reads the next frame from r.
// It returns the number of bytes consumed, the header payload and whether
// the frame was the stream terminator.
func ReadFrame(r io.Reader) (int, []byte, bool, error) {
	// The length field is a fixed size, read it whole so a short read is
	// detected here instead of surfacing as a garbled parse.
	var lenBytes [LEN_FIELD_SIZE]byte
	totalBytes, err := io.ReadFull(r, lenBytes[:])
	if err != nil {
		return totalBytes, nil, false, err
	}

	// The terminator is matched on the literal field bytes before any
	// numeric parsing, a padded zero length can never close the stream.
	if string(lenBytes[:]) == FRAME_TERMINATOR {
		return totalBytes, nil, true, nil
	}

	// The field is written right justified and space padded, but any
	// whitespace padded decimal is accepted.
	hdrLen, perr := strconv.ParseUint(
		strings.TrimSpace(string(lenBytes[:])), 10, 32)
	if perr != nil {
		str := fmt.Sprintf("malformed frame length field %q", lenBytes[:])
		return totalBytes, nil, false, NewMessageError("ReadFrame", str)
	}

	if hdrLen == 0 {
		str := "zero header length, only the terminator frame is headerless"
		return totalBytes, nil, false, NewMessageError("ReadFrame", str)
	}

	// Enforce maximum header payload before allocating.  This prevents
	// rogue peers from causing massive memory allocation through forging
	// the length field.
	if hdrLen > HDR_MAX_SIZE {
		str := fmt.Sprintf("header payload is too large - length field "+
			"indicates %d bytes, but max header payload is %d bytes.",
			hdrLen, HDR_MAX_SIZE)
		return totalBytes, nil, false, NewMessageError("ReadFrame", str)
	}

	payload := make([]byte, hdrLen)
	n, err := io.ReadFull(r, payload)
	totalBytes += n
	if err != nil {
		return totalBytes, nil, false, err
	}

	return totalBytes, payload, false, nil
}

// writes a Message to w as a single frame and returns the number of bytes
// written.
func WriteMessage(w io.Writer, msg Message) (int, error) {
	// Encode the message payload.  This is done to a buffer rather than
	// directly to the writer since Encode doesn't return the number of
	// bytes written.
	var bw bytes.Buffer
	err := msg.Encode(&bw)
	if err != nil {
		return 0, err
	}

	return WriteFrame(w, bw.Bytes())
}

// reads the next frame from r and parses it into msg.
// The wire format carries no type tag, so the caller supplies the concrete
// message the protocol position calls for.
// The returned bool reports whether the stream terminator was read instead,
// in which case msg is left untouched.
func ReadMessage(r io.Reader, msg Message) (int, bool, error) {
	totalBytes, payload, final, err := ReadFrame(r)
	if err != nil || final {
		return totalBytes, final, err
	}

	// Enforce maximum header payload based on the expected message type.
	mhl := msg.MaxHeaderLength()
	if uint32(len(payload)) > mhl {
		str := fmt.Sprintf("header exceeds max length - frame "+
			"carries %d bytes, but max header size for "+
			"messages of type %T is %d.", len(payload), msg, mhl)
		return totalBytes, false, NewMessageError("ReadMessage", str)
	}

	pr := bytes.NewBuffer(payload)
	if err := msg.Decode(pr); err != nil {
		return totalBytes, false, err
	}

	return totalBytes, false, nil
}

// writes a raw chunk body to w.
// The body is not framed, it simply follows its chunk header on the wire.
func WriteBody(w io.Writer, body []byte) (int, error) {
	if len(body) > CHUNK_BODY_MAX_SIZE {
		str := fmt.Sprintf("chunk body is too large - %d bytes, but "+
			"maximum chunk body is %d bytes",
			len(body), CHUNK_BODY_MAX_SIZE)
		return 0, NewMessageError("WriteBody", str)
	}
	return w.Write(body)
}

// reads the n raw body bytes that follow a chunk header.
func ReadBody(r io.Reader, n uint32) (int, []byte, error) {
	// Enforce the body limit before allocating, as with ReadFrame.
	if n > CHUNK_BODY_MAX_SIZE {
		str := fmt.Sprintf("chunk body is too large - header "+
			"indicates %d bytes, but max chunk body is %d bytes.",
			n, CHUNK_BODY_MAX_SIZE)
		return 0, nil, NewMessageError("ReadBody", str)
	}

	body := make([]byte, n)
	nr, err := io.ReadFull(r, body)
	if err != nil {
		return nr, nil, err
	}
	return nr, body, nil
}
