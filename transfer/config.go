package transfer

import (
	"fmt"

	"github.com/coreservice-io/transmitter/wire/wirebase"
)

const (
	// DefaultChunkSize is the chunk size used when the config does not
	// specify one.
	DefaultChunkSize = 4096
)

// TransferWatcher houses callback functions to be invoked as a transfer
// progresses.
//
// Callbacks run synchronously on the goroutine executing the transfer, in
// event order.  A callback that blocks stalls the transfer, marshaling
// onto another thread is the caller's job.
type TransferWatcher struct {
	// invoked with a completion percentage and a progress line every
	// time a chunk has been handled.
	OnProgress func(percentage float64, message string)

	// invoked with a human readable status line on every lifecycle
	// event and failure.
	OnStatus func(message string)
}

// Config is the struct to hold configuration options useful to Sender and
// Receiver.
type Config struct {
	// size of the data chunks a file is split into on the wire.
	// Defaults to 4096.  Only used by the Sender, the receive side
	// follows whatever chunking the remote declares.
	ChunkSize uint32

	// directory incoming files are saved into.  Defaults to the working
	// directory.  Only used by the Receiver.
	SaveDir string

	// callback functions to be invoked on transfer events.
	OnTransferHook TransferWatcher
}

// returns a copy of origCfg with defaults applied.
func normalizeConfig(origCfg *Config) Config {
	cfg := *origCfg // Copy to avoid mutating caller.
	if cfg.ChunkSize == 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	if cfg.ChunkSize > wirebase.CHUNK_BODY_MAX_SIZE {
		cfg.ChunkSize = wirebase.CHUNK_BODY_MAX_SIZE
	}
	if cfg.SaveDir == "" {
		cfg.SaveDir = "."
	}
	return cfg
}

// size of the bufio buffers wrapping a transfer connection, large enough
// to hold a full chunk frame.
func (cfg *Config) ioBufSize() int {
	return int(cfg.ChunkSize) + wirebase.HDR_MAX_SIZE
}

func (cfg *Config) status(message string) {
	if cfg.OnTransferHook.OnStatus != nil {
		cfg.OnTransferHook.OnStatus(message)
	}
}

func (cfg *Config) statusf(format string, args ...interface{}) {
	cfg.status(fmt.Sprintf(format, args...))
}

func (cfg *Config) progress(percentage float64, message string) {
	if cfg.OnTransferHook.OnProgress != nil {
		cfg.OnTransferHook.OnProgress(percentage, message)
	}
}
