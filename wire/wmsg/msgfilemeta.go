package wmsg

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/coreservice-io/transmitter/wire/wirebase"
)

// MAX_FILE_NAME_SIZE is the maximum allowed byte length for the file name
// field in a file metadata message (MsgFileMeta).
const MAX_FILE_NAME_SIZE = 1024

// implements the Message interface and represents the metadata message
// that opens a transfer.  It announces the file about to be streamed so
// the receiver can resolve a destination path and track progress.
// It is the first frame on every transfer stream.
//
// wire form: <name>|<size>
type MsgFileMeta struct {
	// base name of the file.  Senders strip any path components before
	// encoding.
	Name string

	// total size of the file content in bytes.
	Size uint64
}

func (msg *MsgFileMeta) Decode(r io.Reader) error {
	buf, ok := r.(*bytes.Buffer)
	if !ok {
		return fmt.Errorf("MsgFileMeta.Decode reader is not a *bytes.Buffer")
	}

	parts := strings.Split(buf.String(), wirebase.FIELD_DELIM)
	if len(parts) != 2 {
		str := fmt.Sprintf("malformed file header [%d fields, want 2]",
			len(parts))
		return wirebase.NewMessageError("MsgFileMeta.Decode", str)
	}

	err := validateFileName(parts[0])
	if err != nil {
		return err
	}

	size, err := strconv.ParseUint(parts[1], 10, 64)
	if err != nil {
		str := fmt.Sprintf("malformed file size %q", parts[1])
		return wirebase.NewMessageError("MsgFileMeta.Decode", str)
	}

	msg.Name = parts[0]
	msg.Size = size
	return nil
}

func (msg *MsgFileMeta) Encode(w io.Writer) error {
	err := validateFileName(msg.Name)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintf(w, "%s%s%d", msg.Name, wirebase.FIELD_DELIM, msg.Size)
	return err
}

// MaxHeaderLength returns the maximum length the header payload can be for
// the receiver.  This is part of the Message interface implementation.
func (msg *MsgFileMeta) MaxHeaderLength() uint32 {
	// file name + delimiter + up to 20 decimal digits of a uint64 size.
	return MAX_FILE_NAME_SIZE + 1 + 20
}

// returns a new file metadata message that conforms to the Message
// interface using the passed file name and content size.
func NewMsgFileMeta(name string, size uint64) *MsgFileMeta {
	return &MsgFileMeta{
		Name: name,
		Size: size,
	}
}

// validateFileName checks name against the constraints the wire format
// puts on the file name field.
func validateFileName(name string) error {
	if name == "" {
		return wirebase.NewMessageError("MsgFileMeta", "empty file name")
	}
	if len(name) > MAX_FILE_NAME_SIZE {
		str := fmt.Sprintf("file name too long [len %v, max %v]",
			len(name), MAX_FILE_NAME_SIZE)
		return wirebase.NewMessageError("MsgFileMeta", str)
	}
	if strings.Contains(name, wirebase.FIELD_DELIM) {
		str := fmt.Sprintf("file name %q contains the field delimiter", name)
		return wirebase.NewMessageError("MsgFileMeta", str)
	}
	return nil
}
