package wirebase

import (
	"io"
)

// LEN_FIELD_SIZE is the fixed size of the decimal length field that
// starts every frame.  The value is rendered right justified and space
// padded, e.g. "      4096".
const LEN_FIELD_SIZE = 10

// FRAME_TERMINATOR is the length field of the frame that closes a
// transfer stream.  It is matched on the literal field bytes, a numeric
// zero padded any other way is not a terminator.
const FRAME_TERMINATOR = "0000000000"

// FIELD_DELIM separates the fields of a header payload.
const FIELD_DELIM = "|"

// HDR_MAX_SIZE is the maximum bytes a header payload can be regardless of
// other individual limits imposed by messages themselves.
const HDR_MAX_SIZE = 1024 * 4

// CHUNK_BODY_MAX_SIZE is the maximum bytes of raw data that may follow a
// single chunk header.
const CHUNK_BODY_MAX_SIZE = 1024 * 1024 * 64

// Message is an interface that describes a header payload carried inside
// a frame.  A type that implements Message has complete control over the
// text representation of its fields on the wire.
//
// The wire format carries no type tag, the protocol position alone decides
// which concrete message a frame holds.
type Message interface {
	MaxHeaderLength() uint32
	Decode(io.Reader) error
	Encode(io.Writer) error
}
