package transfer

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/coreservice-io/transmitter/wire/wirebase"
	"github.com/coreservice-io/transmitter/wire/wmsg"

	"github.com/davecgh/go-spew/spew"
	"golang.org/x/sys/unix"
)

const (
	// the amount of time to wait for an outbound connection to complete.
	connectTimeout = 30 * time.Second
)

// Sender streams single files to a listening Receiver.
//
// A Sender holds no state between transfers, one instance can be reused
// for any number of files.  Transfers are fully sequential, SendFile does
// not return until the stream has been handed to the transport or failed.
type Sender struct {
	cfg Config
}

// returns a new sender.
// The config is copied so the caller can not mutate it afterwards.
func NewSender(origCfg *Config) *Sender {
	return &Sender{cfg: normalizeConfig(origCfg)}
}

// SendFile connects to host:port and streams the file at path as one
// metadata frame, a chunk frame per data chunk and the stream terminator.
//
// A nil result means the whole stream was handed to the transport.  The
// protocol has no application level acknowledgment, so a nil result does
// not prove the receiver stored the file.
// Every failure is also surfaced as a status callback before it is
// returned.
func (s *Sender) SendFile(path string, host string, port uint16) error {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		s.cfg.statusf("Error: File '%s' not found", path)
		if err == nil {
			err = fmt.Errorf("not a regular file: %s", path)
		}
		return err
	}

	fileName := filepath.Base(path)
	fileSize := uint64(info.Size())

	s.cfg.statusf("Sending file: %s (%d bytes)", fileName, fileSize)
	s.cfg.statusf("Connecting to %s:%d...", host, port)

	addr := net.JoinHostPort(host, fmt.Sprintf("%d", port))
	conn, err := net.DialTimeout("tcp", addr, connectTimeout)
	if err != nil {
		return s.connectError(err, host, port)
	}
	defer conn.Close()

	log.Debugf("Connected to %s", conn.RemoteAddr())

	err = s.streamFile(conn, path, fileName, fileSize)
	if err != nil {
		s.cfg.statusf("Error sending file: %v", err)
		return err
	}

	s.cfg.status("File sent successfully!")
	return nil
}

// maps a dial failure onto the status line the caller sees.
func (s *Sender) connectError(err error, host string, port uint16) error {
	var dnsErr *net.DNSError
	switch {
	case errors.Is(err, unix.ECONNREFUSED):
		s.cfg.statusf("Error: Connection refused. "+
			"Make sure the receiver is running at %s:%d", host, port)
	case errors.As(err, &dnsErr):
		s.cfg.statusf("Error: Invalid address or hostname: %s", host)
	default:
		s.cfg.statusf("Error sending file: %v", err)
	}
	return err
}

// streams the metadata frame, the chunk frames and the stream terminator
// over conn.
func (s *Sender) streamFile(conn net.Conn, path string, fileName string, fileSize uint64) error {
	fp, err := os.Open(path)
	if err != nil {
		return err
	}
	defer fp.Close()

	// Buffer writes so a chunk header and its body reach the transport
	// together.
	bw := bufio.NewWriterSize(conn, s.cfg.ioBufSize())

	err = s.writeMessage(bw, wmsg.NewMsgFileMeta(fileName, fileSize))
	if err != nil {
		return err
	}

	chunkSize := uint64(s.cfg.ChunkSize)
	totalChunks := (fileSize + chunkSize - 1) / chunkSize

	var sentChunks uint64
	var sentBytes uint64

	buf := make([]byte, chunkSize)
	for {
		n, err := io.ReadFull(fp, buf)
		if err == io.EOF {
			break
		}
		if err != nil && err != io.ErrUnexpectedEOF {
			return err
		}

		// The final chunk is allowed to be short, every other chunk
		// carries exactly ChunkSize bytes.
		body := buf[:n]
		head := wmsg.NewMsgChunkHead(uint32(n), wirebase.ChecksumHex(body))
		if err := s.writeMessage(bw, head); err != nil {
			return err
		}
		if _, err := wirebase.WriteBody(bw, body); err != nil {
			return err
		}

		sentChunks++
		sentBytes += uint64(n)
		s.reportProgress(sentChunks, totalChunks, sentBytes, fileSize)
	}

	if _, err := wirebase.WriteTerminator(bw); err != nil {
		return err
	}
	if err := bw.Flush(); err != nil {
		return err
	}

	// A zero byte file produces no chunk frames, so the single progress
	// report happens once the terminator is out.
	if fileSize == 0 {
		s.reportProgress(0, 0, 0, 0)
	}

	return nil
}

// emits a sender progress callback.
// The percentage tracks bytes, a zero byte file counts as fully sent.
func (s *Sender) reportProgress(sentChunks, totalChunks, sentBytes, fileSize uint64) {
	pct := float64(100)
	if fileSize > 0 {
		pct = float64(sentBytes) / float64(fileSize) * 100
	}
	s.cfg.progress(pct, fmt.Sprintf("%d/%d chunks (%d/%d bytes - %.1f%%)",
		sentChunks, totalChunks, sentBytes, fileSize, pct))
}

// sends a message to the receiver with logging.
func (s *Sender) writeMessage(w io.Writer, msg wirebase.Message) error {
	// Use closures to log expensive operations so they are only run when
	// the logging level requires it.
	log.Debugf("%v", newLogClosure(func() string {
		// Debug summary of message.
		summary := messageSummary(msg)
		if len(summary) > 0 {
			summary = " (" + summary + ")"
		}
		return fmt.Sprintf("Sending %T%s", msg, summary)
	}))
	log.Tracef("%v", newLogClosure(func() string {
		return spew.Sdump(msg)
	}))
	log.Tracef("%v", newLogClosure(func() string {
		var buf bytes.Buffer
		_, err := wirebase.WriteMessage(&buf, msg)
		if err != nil {
			return err.Error()
		}
		return spew.Sdump(buf.Bytes())
	}))

	_, err := wirebase.WriteMessage(w, msg)
	return err
}
