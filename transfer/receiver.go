package transfer

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/decred/dcrd/lru"
	"golang.org/x/sys/unix"
)

const (
	// how long a single Accept call may block before the stop state is
	// polled again.  Cancellation of an idle receiver is observed within
	// this bound.
	acceptPollInterval = time.Second

	// number of destination paths kept for RecentlySaved queries.
	recentSavedSize = 50
)

// Receiver accepts transfer connections and stores the incoming files.
//
// Connections are serviced strictly one at a time on the goroutine that
// called Listen.  A transfer arriving while another is in flight waits in
// the TCP accept queue.
type Receiver struct {
	listening int32

	cfg Config

	addrMtx sync.Mutex // protects addr below
	addr    net.Addr

	// savedPaths houses the destination paths of recently completed
	// transfers, see RecentlySaved.
	savedPaths lru.Cache
}

// returns a new receiver.
// The config is copied so the caller can not mutate it afterwards.
func NewReceiver(origCfg *Config) *Receiver {
	return &Receiver{
		cfg:        normalizeConfig(origCfg),
		savedPaths: lru.NewCache(recentSavedSize),
	}
}

// Listen binds to host:port and services incoming file transfers until
// ctx is canceled.
//
// The result is nil when the receiver stopped because ctx was canceled,
// any other return means binding failed.  Per connection failures never
// stop the service, they are reported through the status callback and the
// next connection is awaited.
//
// Cancellation is cooperative.  It is observed between connections, a
// transfer already in flight runs to completion or connection drop first.
func (r *Receiver) Listen(ctx context.Context, host string, port uint16) error {
	if !atomic.CompareAndSwapInt32(&r.listening, 0, 1) {
		return errors.New("receiver already listening")
	}
	defer atomic.StoreInt32(&r.listening, 0)

	addr := net.JoinHostPort(host, fmt.Sprintf("%d", port))

	lc := net.ListenConfig{Control: reuseAddrControl}
	listener, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return r.bindError(err, host, port)
	}
	defer listener.Close()

	tcpListener, ok := listener.(*net.TCPListener)
	if !ok {
		return fmt.Errorf("unexpected listener type %T", listener)
	}

	r.addrMtx.Lock()
	r.addr = listener.Addr()
	r.addrMtx.Unlock()

	r.cfg.statusf("Listening on %s:%d for incoming file transfers...", host, port)
	log.Infof("Server listening on %s", listener.Addr())

	for {
		if ctx.Err() != nil {
			break
		}

		// Bound the accept so the loop keeps observing ctx while idle.
		tcpListener.SetDeadline(time.Now().Add(acceptPollInterval))
		conn, err := tcpListener.Accept()
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			if ctx.Err() != nil {
				break
			}
			log.Errorf("Can't accept connection: %v", err)
			continue
		}

		r.handleConn(conn)
	}

	r.cfg.status("Stopping receiver...")
	log.Infof("Listener handler done for %s", listener.Addr())
	return nil
}

// services one accepted transfer connection to completion.
func (r *Receiver) handleConn(conn net.Conn) {
	defer conn.Close()

	r.cfg.statusf("Connected by %s", conn.RemoteAddr())
	log.Debugf("Accepted connection from %s", conn.RemoteAddr())

	sess := newSession(&r.cfg, conn)
	savedPath, err := sess.run()
	if err != nil {
		log.Debugf("Transfer from %s failed: %v", conn.RemoteAddr(), err)
	}
	if savedPath != "" {
		r.savedPaths.Add(savedPath)
	}

	r.cfg.status("Waiting for next file transfer...")
}

// Addr returns the address the receiver last bound, or nil before the
// first successful bind.  With port 0 this is how a caller learns the
// ephemeral port that was picked.
//
// This function is safe for concurrent access.
func (r *Receiver) Addr() net.Addr {
	r.addrMtx.Lock()
	addr := r.addr
	r.addrMtx.Unlock()
	return addr
}

// RecentlySaved reports whether path was stored by one of the recently
// completed transfers of this receiver.
//
// This function is safe for concurrent access.
func (r *Receiver) RecentlySaved(path string) bool {
	return r.savedPaths.Contains(path)
}

// maps a bind failure onto the status line the caller sees.
func (r *Receiver) bindError(err error, host string, port uint16) error {
	var dnsErr *net.DNSError
	switch {
	case errors.As(err, &dnsErr):
		r.cfg.statusf("Error: Invalid address: %s", host)
	case errors.Is(err, unix.EADDRINUSE):
		r.cfg.statusf("Error: Port %d is already in use", port)
	default:
		r.cfg.statusf("Error binding to %s:%d: %v", host, port, err)
	}
	return err
}

// sets SO_REUSEADDR on the listening socket before it binds, so a
// restarted receiver can take a port back while old connections linger
// in TIME_WAIT.
func reuseAddrControl(network string, address string, c syscall.RawConn) error {
	var sockErr error
	err := c.Control(func(fd uintptr) {
		sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET,
			unix.SO_REUSEADDR, 1)
	})
	if err != nil {
		return err
	}
	return sockErr
}
