//go:build windows

package main

import (
	"os"
	"os/signal"
	"syscall"
	"unsafe"
)

const (
	// STD_OUTPUT_HANDLE (-11) as the unsigned handle constant.
	stdOutputHandle = ^uintptr(0) - 10 + 1

	enableVirtualTerminalProcessing = 0x0004
)

var (
	kernel32       = syscall.NewLazyDLL("kernel32.dll")
	getStdHandle   = kernel32.NewProc("GetStdHandle")
	getConsoleMode = kernel32.NewProc("GetConsoleMode")
	setConsoleMode = kernel32.NewProc("SetConsoleMode")
)

// enableANSI switches the console to virtual terminal processing so the
// colored status output renders on Windows 10 and later. Failures leave
// the console as-is; output then shows raw escape codes at worst.
func enableANSI() {
	handle, _, _ := getStdHandle.Call(stdOutputHandle)
	if handle == 0 {
		return
	}
	var mode uint32
	if ok, _, _ := getConsoleMode.Call(handle, uintptr(unsafe.Pointer(&mode))); ok == 0 {
		return
	}
	setConsoleMode.Call(handle, uintptr(mode|enableVirtualTerminalProcessing))
}

// registerSignals routes Ctrl+C to ch. SIGTERM does not exist on Windows.
func registerSignals(ch chan<- os.Signal) {
	signal.Notify(ch, syscall.SIGINT)
}
