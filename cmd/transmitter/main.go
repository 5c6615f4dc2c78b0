package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/btcsuite/btclog"
	"github.com/spf13/cobra"

	"github.com/coreservice-io/transmitter/transfer"
)

var (
	chunkSize uint32
	saveDir   string
	debugLog  bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "transmitter",
		Short: "Send and receive single files over TCP",
		Long: "Transmitter moves one file at a time over a plain TCP connection. " +
			"Every chunk travels with a BLAKE2b digest so the receiver can flag " +
			"corrupted data without aborting the transfer.",
	}

	rootCmd.PersistentFlags().BoolVar(&debugLog, "debug", false,
		"Log wire level activity to stderr")

	rootCmd.AddCommand(
		sendCmd(),
		recvCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func sendCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "send [file] [host] [port]",
		Short: "Send a file to a listening receiver",
		Args:  cobra.ExactArgs(3),
		Run:   runSend,
	}
	cmd.Flags().Uint32Var(&chunkSize, "chunk-size", transfer.DefaultChunkSize,
		"Bytes of file data per chunk frame")
	return cmd
}

func runSend(cmd *cobra.Command, args []string) {
	setupLog()

	snd := transfer.NewSender(&transfer.Config{
		ChunkSize:      chunkSize,
		OnTransferHook: consoleWatcher(),
	})
	if err := snd.SendFile(args[0], args[1], parsePort(args[2])); err != nil {
		os.Exit(1)
	}
}

func recvCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recv [host] [port]",
		Short: "Listen for incoming file transfers",
		Args:  cobra.ExactArgs(2),
		Run:   runRecv,
	}
	cmd.Flags().StringVar(&saveDir, "save-dir", ".",
		"Directory received files are saved into")
	return cmd
}

func runRecv(cmd *cobra.Command, args []string) {
	setupLog()
	port := parsePort(args[1])

	interrupt := interruptListener()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-interrupt
		cancel()
	}()

	rcv := transfer.NewReceiver(&transfer.Config{
		SaveDir:        saveDir,
		OnTransferHook: consoleWatcher(),
	})
	if interruptRequested(interrupt) {
		return
	}
	if err := rcv.Listen(ctx, args[0], port); err != nil {
		os.Exit(1)
	}
}

// parsePort keeps the historical behavior of reporting a bad port on
// stdout and quitting instead of surfacing a usage error.
func parsePort(raw string) uint16 {
	port, err := strconv.ParseUint(raw, 10, 16)
	if err != nil {
		fmt.Printf("Error: Invalid port number: %s\n", raw)
		os.Exit(1)
	}
	return uint16(port)
}

// consoleWatcher renders transfer callbacks for an interactive
// terminal. A progress update redraws one line in place and the next
// status line first pushes the cursor past any pending progress output.
func consoleWatcher() transfer.TransferWatcher {
	progressShown := false
	return transfer.TransferWatcher{
		OnStatus: func(msg string) {
			if progressShown {
				fmt.Println()
				progressShown = false
			}
			fmt.Println(msg)
		},
		OnProgress: func(pct float64, msg string) {
			fmt.Printf("\r%s", msg)
			progressShown = true
		},
	}
}

func setupLog() {
	if !debugLog {
		return
	}
	backend := btclog.NewBackend(os.Stderr)
	logger := backend.Logger("XFER")
	logger.SetLevel(btclog.LevelTrace)
	transfer.UseLogger(logger)
}
