//go:build windows

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
)

type windowsSpooler struct{}

func newOSSpooler() osSpoolerTransport { return windowsSpooler{} }

type psPrinter struct {
	Name    string `json:"Name"`
	Default bool   `json:"Default"`
	Status  string `json:"PrinterStatus"`
}

// discoverOsPrinters invokes the spooler via PowerShell's Get-Printer cmdlet,
// falling back to wmic if the primary parse fails (spec.md §4.B).
func (windowsSpooler) discoverOsPrinters() []OSPrinterRecord {
	if records, ok := discoverViaGetPrinter(); ok {
		return records
	}
	return discoverViaWmic()
}

func discoverViaGetPrinter() ([]OSPrinterRecord, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, "powershell", "-NoProfile", "-NonInteractive", "-Command",
		"Get-Printer | Select-Object Name,Default,PrinterStatus | ConvertTo-Json -Compress")
	out, err := cmd.Output()
	if err != nil {
		return nil, false
	}

	trimmed := bytes.TrimSpace(out)
	if len(trimmed) == 0 {
		return nil, true
	}

	var single psPrinter
	var many []psPrinter
	if trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &many); err != nil {
			return nil, false
		}
	} else {
		if err := json.Unmarshal(trimmed, &single); err != nil {
			return nil, false
		}
		many = []psPrinter{single}
	}

	records := make([]OSPrinterRecord, 0, len(many))
	for _, p := range many {
		records = append(records, OSPrinterRecord{
			Name:        p.Name,
			Description: p.Status,
			IsDefault:   p.Default,
		})
	}
	return records, true
}

func discoverViaWmic() []OSPrinterRecord {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	out, err := exec.CommandContext(ctx, "wmic", "printer", "get", "Name,Default", "/format:csv").Output()
	if err != nil {
		return nil
	}

	var records []OSPrinterRecord
	for _, line := range strings.Split(string(out), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "Node,") {
			continue
		}
		fields := strings.Split(line, ",")
		if len(fields) != 3 {
			continue
		}
		name := strings.TrimSpace(fields[2])
		if name == "" {
			continue
		}
		records = append(records, OSPrinterRecord{
			Name:      name,
			IsDefault: strings.EqualFold(strings.TrimSpace(fields[1]), "TRUE"),
		})
	}
	return records
}

// printOs writes bytes to a temp file and invokes the spooler with a raw
// byte submission referencing that file and printer (spec.md §4.B): the
// well-known "copy /b" raw-datatype trick against the printer's local share.
// The temp file is removed on every exit path.
func (windowsSpooler) printOs(name string, data []byte) error {
	if name == "" {
		return fmt.Errorf("%s: empty printer name", ErrOSPrintError)
	}

	tmp, err := os.CreateTemp("", "printbridge-*.prn")
	if err != nil {
		return fmt.Errorf("%s: %w", ErrOSPrintError, err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("%s: %w", ErrOSPrintError, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%s: %w", ErrOSPrintError, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	target := fmt.Sprintf(`\\localhost\%s`, name)
	cmd := exec.CommandContext(ctx, "cmd", "/c", "copy", "/b", tmpPath, target)

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
