package main

import (
	"testing"
)

func TestJobHistoryRecordAndRecent(t *testing.T) {
	history, err := NewJobHistory(":memory:")
	if err != nil {
		t.Fatalf("NewJobHistory failed: %v", err)
	}
	defer history.Close()

	if err := history.Record(TargetLAN, "192.168.1.50:9100", true, ""); err != nil {
		t.Fatalf("Record (success) failed: %v", err)
	}
	if err := history.Record(TargetOSPrinter, "Kitchen-Printer", false, "os_print_error: spooler down"); err != nil {
		t.Fatalf("Record (failure) failed: %v", err)
	}

	jobs, err := history.Recent(10)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(jobs) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(jobs))
	}

	// newest first
	if jobs[0].Transport != TargetOSPrinter || jobs[0].OK {
		t.Errorf("jobs[0] = %+v, want the failed osPrinter entry first", jobs[0])
	}
	if jobs[1].Transport != TargetLAN || !jobs[1].OK {
		t.Errorf("jobs[1] = %+v, want the successful lan entry second", jobs[1])
	}
}

func TestJobHistoryRecentClampsToMaxCap(t *testing.T) {
	history, err := NewJobHistory(":memory:")
	if err != nil {
		t.Fatalf("NewJobHistory failed: %v", err)
	}
	defer history.Close()

	jobs, err := history.Recent(MaxRecentJobsCap + 500)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if jobs != nil && len(jobs) > MaxRecentJobsCap {
		t.Errorf("expected at most %d jobs, got %d", MaxRecentJobsCap, len(jobs))
	}
}

func TestJobHistoryRecentDefaultsWhenLimitIsZero(t *testing.T) {
	history, err := NewJobHistory(":memory:")
	if err != nil {
		t.Fatalf("NewJobHistory failed: %v", err)
	}
	defer history.Close()

	for i := 0; i < 3; i++ {
		if err := history.Record(TargetLAN, "10.0.0.1:9100", true, ""); err != nil {
			t.Fatalf("Record failed: %v", err)
		}
	}

	jobs, err := history.Recent(0)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(jobs) != 3 {
		t.Errorf("expected 3 jobs with default cap, got %d", len(jobs))
	}
}
