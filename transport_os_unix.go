//go:build linux || darwin

package main

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
	"time"
)

type cupsSpooler struct{}

func newOSSpooler() osSpoolerTransport { return cupsSpooler{} }

var (
	defaultDestRe = regexp.MustCompile(`system default destination:\s*(\S+)`)
	printerLineRe = regexp.MustCompile(`printer\s+(\S+)\s+is\s+(\w+)`)
)

// discoverOsPrinters shells out to lpstat, the CUPS status tool, exactly as
// other_examples' thereceipt-receipt-engine detectSystemPrinters and
// danklinux's cups-manager do: spawn, parse stdout, never fail the caller
// (spec.md §4.B "Errors are swallowed into an empty list").
func (cupsSpooler) discoverOsPrinters() []OSPrinterRecord {
	if _, err := exec.LookPath("lpstat"); err != nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	out, err := exec.CommandContext(ctx, "lpstat", "-p", "-d").Output()
	if err != nil {
		return nil
	}

	defaultName := ""
	if m := defaultDestRe.FindStringSubmatch(string(out)); len(m) == 2 {
		defaultName = m[1]
	}

	var records []OSPrinterRecord
	for _, line := range strings.Split(string(out), "\n") {
		m := printerLineRe.FindStringSubmatch(line)
		if len(m) != 3 {
			continue
		}
		name, state := m[1], m[2]
		records = append(records, OSPrinterRecord{
			Name:        name,
			Description: translateCupsState(state),
			IsDefault:   name == defaultName,
		})
	}
	return records
}

func translateCupsState(state string) string {
	switch state {
	case "idle":
		return "Ready"
	case "printing":
		return "Printing"
	default:
		return "Unknown"
	}
}

// printOs spawns the CUPS line-printer submission tool with the raw option,
// streams bytes on stdin, and waits for exit, draining both output streams
// to avoid pipe deadlocks (spec.md §4.B, §9).
func (cupsSpooler) printOs(name string, data []byte) error {
	if name == "" {
		return fmt.Errorf("%s: empty printer name", ErrOSPrintError)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, "lp", "-d", name, "-o", "raw")
	cmd.Stdin = bytes.NewReader(data)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		diag := strings.TrimSpace(stderr.String())
		if diag == "" {
			diag = err.Error()
		}
		return fmt.Errorf("%s: %s", ErrOSPrintError, diag)
	}
	return nil
}
