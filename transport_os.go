package main

// osSpoolerTransport is implemented per-platform in transport_os_unix.go,
// transport_os_windows.go and transport_os_other.go, selected by build tags
// (spec.md §4.B). Platform adapters are isolated behind this narrow interface
// so the core never branches on the platform outside of these three files
// (spec.md §9 "Platform-specific adapters").
type osSpoolerTransport interface {
	discoverOsPrinters() []OSPrinterRecord
	printOs(name string, data []byte) error
}

var osSpooler osSpoolerTransport = newOSSpooler()
