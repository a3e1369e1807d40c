package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestCloudQueuePollerDispatchUnknownTargetIsNonRetryable(t *testing.T) {
	p := &CloudQueuePoller{}

	err, nonRetryable := p.dispatch(PrintJob{Target: PrintTarget{Type: "carrier-pigeon"}}, []byte("data"))
	if err == nil {
		t.Fatalf("expected an error for an unknown target type")
	}
	if !nonRetryable {
		t.Errorf("expected unknown target type to be non-retryable")
	}
}

func TestCloudQueuePollerDispatchMissingLanIPIsNonRetryable(t *testing.T) {
	p := &CloudQueuePoller{}

	err, nonRetryable := p.dispatch(PrintJob{Target: PrintTarget{Type: TargetLAN}}, []byte("data"))
	if err == nil {
		t.Fatalf("expected an error for a lan target with no ip")
	}
	if !nonRetryable {
		t.Errorf("expected a missing lan ip to be non-retryable")
	}
}

func TestCloudQueuePollerDispatchMissingPrinterNameIsNonRetryable(t *testing.T) {
	p := &CloudQueuePoller{}

	err, nonRetryable := p.dispatch(PrintJob{Target: PrintTarget{Type: TargetOSPrinter}}, []byte("data"))
	if err == nil {
		t.Fatalf("expected an error for an osPrinter target with no printerName")
	}
	if !nonRetryable {
		t.Errorf("expected a missing printerName to be non-retryable")
	}
}

func TestCloudQueuePollerReportOutcomeRetriesWhenAttemptsRemain(t *testing.T) {
	var captured map[string]fsValue
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var doc fsDocument
		json.NewDecoder(r.Body).Decode(&doc)
		captured = doc.Fields
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := &cloudStoreClient{baseURL: server.URL, projectID: "p", httpClient: server.Client()}
	p := &CloudQueuePoller{client: client, restaurantID: "r1"}

	job := PrintJob{ID: "job-1", Attempts: 1, MaxAttempts: 3}
	p.reportOutcome(job, false, false, "connect_timeout: dial tcp: i/o timeout")

	if captured["status"].asString() != JobStatusQueued {
		t.Errorf("status = %q, want %s (retry should requeue)", captured["status"].asString(), JobStatusQueued)
	}
}

func TestCloudQueuePollerReportOutcomeFailsTerminallyWhenAttemptsExhausted(t *testing.T) {
	var captured map[string]fsValue
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var doc fsDocument
		json.NewDecoder(r.Body).Decode(&doc)
		captured = doc.Fields
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := &cloudStoreClient{baseURL: server.URL, projectID: "p", httpClient: server.Client()}
	p := &CloudQueuePoller{client: client, restaurantID: "r1"}

	job := PrintJob{ID: "job-1", Attempts: 3, MaxAttempts: 3}
	p.reportOutcome(job, false, false, "connect_timeout: dial tcp: i/o timeout")

	if captured["status"].asString() != JobStatusFailed {
		t.Errorf("status = %q, want %s once attempts are exhausted", captured["status"].asString(), JobStatusFailed)
	}
}

func TestCloudQueuePollerStartStopIsIdempotentAndSingleActive(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := &cloudStoreClient{baseURL: server.URL, projectID: "p", httpClient: server.Client()}
	p := &CloudQueuePoller{client: client, restaurantID: "r1"}
	p.start(50 * time.Millisecond)
	firstGen := p.generation

	// starting again while already running must be a no-op
	p.start(50 * time.Millisecond)
	if p.generation != firstGen {
		t.Errorf("calling start on a running poller changed the generation")
	}

	p.stop()
	p.start(50 * time.Millisecond)
	if p.generation == firstGen {
		t.Errorf("expected generation to advance across a stop/start cycle")
	}

	p.stop()
}

func TestJobTargetDescription(t *testing.T) {
	cases := []struct {
		target PrintTarget
		want   string
	}{
		{PrintTarget{Type: TargetLAN, IP: "192.168.1.50", Port: 9100}, "192.168.1.50:9100"},
		{PrintTarget{Type: TargetOSPrinter, PrinterName: "Kitchen"}, "Kitchen"},
		{PrintTarget{Type: "mystery"}, "mystery"},
	}

	for _, tc := range cases {
		if got := jobTargetDescription(tc.target); got != tc.want {
			t.Errorf("jobTargetDescription(%+v) = %q, want %q", tc.target, got, tc.want)
		}
	}
}
