package transfer

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"

	"github.com/coreservice-io/transmitter/wire/wirebase"
	"github.com/coreservice-io/transmitter/wire/wmsg"

	"github.com/davecgh/go-spew/spew"
)

// session carries the state for one accepted transfer connection, from
// the metadata frame to the stream terminator.
type session struct {
	cfg  *Config
	conn net.Conn
	br   *bufio.Reader

	bytes_received   uint64
	chunks_received  uint64
	corrupted_chunks uint64
}

func newSession(cfg *Config, conn net.Conn) *session {
	return &session{
		cfg:  cfg,
		conn: conn,
		br:   bufio.NewReaderSize(conn, cfg.ioBufSize()),
	}
}

// run drives the session through its states: metadata, chunk stream,
// terminator, summary.  It returns the destination path when a file was
// stored completely, even one with failed chunk verifications.
//
// A failure mid stream leaves the partial output file on disk.
func (s *session) run() (string, error) {
	meta, err := s.readFileMeta()
	if err != nil {
		return "", err
	}

	s.cfg.statusf("Receiving file: %s (%d bytes)", meta.Name, meta.Size)

	savePath := resolveSavePath(s.cfg.SaveDir, meta.Name)
	out, err := os.Create(savePath)
	if err != nil {
		s.cfg.statusf("Error during file transfer: %v", err)
		return "", err
	}

	err = s.receiveChunks(out, meta.Size)
	closeErr := out.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		s.cfg.statusf("Error during file transfer: %v", err)
		return "", err
	}

	if s.corrupted_chunks > 0 {
		s.cfg.statusf("File received with %d corrupted chunks. "+
			"Data integrity might be compromised.", s.corrupted_chunks)
	} else {
		s.cfg.status("File received successfully with verified integrity.")
	}
	s.cfg.statusf("Saved as: %s", savePath)

	return savePath, nil
}

// reads the metadata frame that opens a transfer.
// The two failure modes get distinct status lines: a peer that connected
// and went away without a single frame, and a peer that sent something
// unusable as a file header.
func (s *session) readFileMeta() (*wmsg.MsgFileMeta, error) {
	meta := &wmsg.MsgFileMeta{}
	final, err := s.readMessage(meta)
	if err == io.EOF {
		s.cfg.status("Error: Connection closed before receiving header")
		return nil, err
	}
	if err != nil || final {
		s.cfg.status("Invalid file header received.")
		if err == nil {
			err = wirebase.NewMessageError("readFileMeta",
				"terminator in place of a file header")
		}
		return nil, err
	}
	return meta, nil
}

// receives chunk frames into out until the stream terminator.
// A chunk failing digest verification is counted and written anyway, only
// I/O and protocol errors abort the stream.
func (s *session) receiveChunks(out *os.File, fileSize uint64) error {
	for {
		head := &wmsg.MsgChunkHead{}
		final, err := s.readMessage(head)
		if err != nil {
			return err
		}
		if final {
			break
		}

		_, body, err := wirebase.ReadBody(s.br, head.Body_len)
		if err != nil {
			return err
		}

		if wirebase.ChecksumHex(body) != head.Checksum {
			s.corrupted_chunks++
			s.cfg.statusf("Warning: Checksum mismatch on chunk %d. "+
				"Data may be corrupted.", s.chunks_received+1)
			log.Warnf("Chunk %d from %s failed verification, declared digest %s",
				s.chunks_received+1, s.conn.RemoteAddr(),
				sanitizeString(head.Checksum, wirebase.CHECKSUM_HEX_SIZE))
		}

		if _, err := out.Write(body); err != nil {
			return err
		}

		s.chunks_received++
		s.bytes_received += uint64(len(body))
		s.reportProgress(fileSize)
	}

	// A zero byte file produces no chunk frames, the single progress
	// report happens once the terminator arrives.
	if s.chunks_received == 0 && fileSize == 0 {
		s.reportProgress(fileSize)
	}

	return nil
}

// emits a receiver progress callback.
// The percentage tracks bytes against the announced file size, a zero
// byte file counts as fully received.
func (s *session) reportProgress(fileSize uint64) {
	pct := float64(100)
	if fileSize > 0 {
		pct = float64(s.bytes_received) / float64(fileSize) * 100
	}
	s.cfg.progress(pct, fmt.Sprintf("%d chunks (%d/%d bytes - %.1f%%)",
		s.chunks_received, s.bytes_received, fileSize, pct))
}

// reads the next expected message from the connection with logging.
// The returned bool reports whether the stream terminator arrived instead.
func (s *session) readMessage(msg wirebase.Message) (bool, error) {
	_, final, err := wirebase.ReadMessage(s.br, msg)
	if err != nil {
		return false, err
	}
	if final {
		log.Debugf("Received stream terminator from %s", s.conn.RemoteAddr())
		return true, nil
	}

	// Use closures to log expensive operations so they are only run when
	// the logging level requires it.
	log.Debugf("%v", newLogClosure(func() string {
		// Debug summary of message.
		summary := messageSummary(msg)
		if len(summary) > 0 {
			summary = " (" + summary + ")"
		}
		return fmt.Sprintf("Received %T%s from %s",
			msg, summary, s.conn.RemoteAddr())
	}))
	log.Tracef("%v", newLogClosure(func() string {
		return spew.Sdump(msg)
	}))

	return false, nil
}

// picks a destination under dir for a file named name, counting _1, _2,
// ... up before the extension until there is no collision with an
// existing file.
// Any path components in name are stripped first, a remote peer cannot
// steer the destination outside dir.
// The existence check and the create that follows are not atomic, a
// writer outside this process can still take the picked name first.
func resolveSavePath(dir string, name string) string {
	name = filepath.Base(name)

	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	if stem == "" {
		// Dot files keep their whole name as the stem, ".env" collides
		// into ".env_1" rather than "_1.env".
		stem, ext = name, ""
	}

	savePath := filepath.Join(dir, name)
	for counter := 1; fileExists(savePath); counter++ {
		savePath = filepath.Join(dir, fmt.Sprintf("%s_%d%s", stem, counter, ext))
	}
	return savePath
}

// reports whether path names anything stat-able.  A path that cannot be
// statted counts as free, the create that follows surfaces the real
// error.
func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
