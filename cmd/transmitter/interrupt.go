package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

// interruptSignals defines the signals that trigger a proper shutdown.
var interruptSignals = []os.Signal{os.Interrupt, syscall.SIGTERM}

// interruptListener returns a channel that is closed when the first
// interrupt signal arrives. Repeated signals while shutting down are
// only reported, so the process is not killed mid cleanup.
func interruptListener() <-chan struct{} {
	c := make(chan struct{})
	go func() {
		interruptChannel := make(chan os.Signal, 1)
		signal.Notify(interruptChannel, interruptSignals...)

		sig := <-interruptChannel
		fmt.Printf("\nReceived signal (%s). Shutting down...\n", sig)
		close(c)

		for {
			sig := <-interruptChannel
			fmt.Printf("Received signal (%s). Already shutting down...\n", sig)
		}
	}()
	return c
}

// interruptRequested returns true when the channel returned by
// interruptListener was closed already.
func interruptRequested(interrupted <-chan struct{}) bool {
	select {
	case <-interrupted:
		return true
	default:
	}
	return false
}
