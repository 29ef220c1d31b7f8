//go:build !windows

package main

import (
	"os"
	"os/signal"
	"syscall"
)

// enableANSI is a no-op: Unix terminals handle escape sequences natively.
func enableANSI() {}

// registerSignals routes interrupt and terminate to ch so a running scan
// can wind down cooperatively.
func registerSignals(ch chan<- os.Signal) {
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
}
