package wmsg

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/coreservice-io/transmitter/wire/wirebase"
)

// implements the Message interface and represents the header that
// precedes every raw chunk body on a transfer stream.  It carries the
// body length and the digest the receiver verifies the body against.
//
// wire form: <bodyLen>|<checksumHex>
type MsgChunkHead struct {
	// byte length of the raw body that follows this header on the wire.
	Body_len uint32

	// hex encoded digest of the body, see wirebase.ChecksumHex.
	Checksum string
}

func (msg *MsgChunkHead) Decode(r io.Reader) error {
	buf, ok := r.(*bytes.Buffer)
	if !ok {
		return fmt.Errorf("MsgChunkHead.Decode reader is not a *bytes.Buffer")
	}

	parts := strings.Split(buf.String(), wirebase.FIELD_DELIM)
	if len(parts) != 2 {
		str := fmt.Sprintf("malformed chunk header [%d fields, want 2]",
			len(parts))
		return wirebase.NewMessageError("MsgChunkHead.Decode", str)
	}

	bodyLen, err := strconv.ParseUint(parts[0], 10, 32)
	if err != nil {
		str := fmt.Sprintf("malformed chunk body length %q", parts[0])
		return wirebase.NewMessageError("MsgChunkHead.Decode", str)
	}

	// The checksum field is not validated here.  A digest of unexpected
	// shape surfaces later as an integrity mismatch on the chunk, not as
	// a protocol error.
	msg.Body_len = uint32(bodyLen)
	msg.Checksum = parts[1]
	return nil
}

func (msg *MsgChunkHead) Encode(w io.Writer) error {
	if strings.Contains(msg.Checksum, wirebase.FIELD_DELIM) {
		str := fmt.Sprintf("checksum %q contains the field delimiter",
			msg.Checksum)
		return wirebase.NewMessageError("MsgChunkHead.Encode", str)
	}

	_, err := fmt.Fprintf(w, "%d%s%s", msg.Body_len, wirebase.FIELD_DELIM,
		msg.Checksum)
	return err
}

// MaxHeaderLength returns the maximum length the header payload can be for
// the receiver.  This is part of the Message interface implementation.
func (msg *MsgChunkHead) MaxHeaderLength() uint32 {
	// Up to 10 decimal digits of a uint32 body length + delimiter + a
	// generous allowance for the checksum field, which is not pinned to
	// one digest size on the wire.
	return 10 + 1 + 128
}

// returns a new chunk header message that conforms to the Message
// interface using the passed body length and digest.
func NewMsgChunkHead(bodyLen uint32, checksum string) *MsgChunkHead {
	return &MsgChunkHead{
		Body_len: bodyLen,
		Checksum: checksum,
	}
}
