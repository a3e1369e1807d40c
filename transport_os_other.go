//go:build !windows && !linux && !darwin

package main

import "fmt"

// otherSpooler backs platforms with neither a Windows spooler nor CUPS
// (spec.md §4.B "Other platforms: return empty" / "Unsupported platform:
// fail with unsupported").
type otherSpooler struct{}

func newOSSpooler() osSpoolerTransport { return otherSpooler{} }

func (otherSpooler) discoverOsPrinters() []OSPrinterRecord {
	return nil
}

func (otherSpooler) printOs(name string, data []byte) error {
	return fmt.Errorf("%s", ErrUnsupported)
}
