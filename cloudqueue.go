package main

import (
	"fmt"
	"log"
	"sync"
	"time"
)

// CloudQueuePoller polls the remote document store for queued jobs, claims
// them, dispatches them to the local transports, and reports the outcome
// back (spec.md §4.F). Lifecycle and claim semantics follow spec.md's state
// machine exactly; the HTTP plumbing is the teacher's bare-http.Client shape
// (prusalink.go/spoolman.go), generalized to Firestore-style documents.
type CloudQueuePoller struct {
	client       *cloudStoreClient
	restaurantID string
	deviceID     string
	deviceName   string
	history      *JobHistory

	mu         sync.Mutex
	running    bool
	generation int
	ticker     *time.Ticker
	done       chan struct{}
	processing bool
}

func newCloudQueuePoller(client *cloudStoreClient, cfg RuntimeConfig, history *JobHistory) *CloudQueuePoller {
	return &CloudQueuePoller{
		client:       client,
		restaurantID: cfg.RestaurantID,
		deviceID:     cfg.DeviceID,
		deviceName:   cfg.DeviceName,
		history:      history,
	}
}

// start schedules periodic polls at interval and fires one immediate poll.
// Idempotent: calling start on an already-running poller is a no-op.
func (p *CloudQueuePoller) start(interval time.Duration) {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return
	}
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	p.running = true
	p.generation++
	gen := p.generation
	p.ticker = time.NewTicker(interval)
	done := make(chan struct{})
	p.done = done
	ticker := p.ticker
	p.mu.Unlock()

	go p.loop(gen, ticker, done)
	go p.tick(gen)
}

func (p *CloudQueuePoller) loop(gen int, ticker *time.Ticker, done chan struct{}) {
	for {
		select {
		case <-ticker.C:
			p.tick(gen)
		case <-done:
			return
		}
	}
}

// stop cancels future ticks. An in-flight poll runs to completion
// (spec.md §5). Idempotent.
func (p *CloudQueuePoller) stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	p.generation++
	if p.ticker != nil {
		p.ticker.Stop()
	}
	done := p.done
	p.mu.Unlock()

	if done != nil {
		close(done)
	}
}

// tick runs one poll, guarded by the processing flag (spec.md §4.F "Mutual
// exclusion during processing"). On completion it self-triggers exactly one
// drain poll after DrainPollDelay to catch jobs enqueued during processing;
// the drain poll itself never reschedules another drain (spec.md §4.F "one
// extra poll", not a chain).
func (p *CloudQueuePoller) tick(gen int) {
	p.runOnce(gen, true)
}

// runOnce runs one poll. scheduleDrain controls whether a single follow-up
// drain poll is scheduled after DrainPollDelay; the drain poll passes false
// so the chain terminates after one extra round.
func (p *CloudQueuePoller) runOnce(gen int, scheduleDrain bool) {
	p.mu.Lock()
	if p.generation != gen || p.processing {
		p.mu.Unlock()
		return
	}
	p.processing = true
	p.mu.Unlock()

	p.runBatch()

	p.mu.Lock()
	p.processing = false
	stillCurrent := p.generation == gen
	p.mu.Unlock()

	if stillCurrent && scheduleDrain {
		time.AfterFunc(DrainPollDelay, func() { p.runOnce(gen, false) })
	}
}

func (p *CloudQueuePoller) collectionParent() string {
	return fmt.Sprintf("restaurants/%s", p.restaurantID)
}

func (p *CloudQueuePoller) docPath(jobID string) string {
	return fmt.Sprintf("restaurants/%s/printQueue/%s", p.restaurantID, jobID)
}

// runBatch lists up to DefaultJobBatchSize queued jobs and dispatches them
// one at a time. Transport errors during poll/claim/report are swallowed and
// retried on the next tick (spec.md §4.F "Network-error handling").
func (p *CloudQueuePoller) runBatch() {
	jobs, err := p.client.listQueued("printQueue", p.collectionParent(), DefaultJobBatchSize)
	if err != nil {
		log.Printf("cloud queue: poll failed, will retry: %v", err)
		return
	}

	for _, job := range jobs {
		p.processOne(job)
	}
}

// processOne handles one job; a panic while processing it is recovered and
// logged so the poll loop goes on with the next job.
func (p *CloudQueuePoller) processOne(job PrintJob) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("cloud queue: recovered from panic processing job %s: %v", job.ID, r)
		}
	}()

	claimed, ok := p.claim(job)
	if !ok {
		return // already claimed by someone else, or transport error; move on
	}

	data, err := decodeBase64Payload(claimed.PayloadB64)
	if err != nil {
		p.reportOutcome(claimed, false, true, err.Error())
		return
	}

	err, nonRetryable := p.dispatch(claimed, data)
	if err == nil {
		p.reportOutcome(claimed, true, false, "")
		p.audit(claimed, true, "")
		return
	}

	p.reportOutcome(claimed, false, nonRetryable, err.Error())
	p.audit(claimed, false, err.Error())
}

func (p *CloudQueuePoller) audit(job PrintJob, ok bool, errMsg string) {
	if p.history == nil {
		return
	}
	if err := p.history.Record(job.Target.Type, jobTargetDescription(job.Target), ok, errMsg); err != nil {
		log.Printf("cloud queue: failed to record job history: %v", err)
	}
}

func jobTargetDescription(t PrintTarget) string {
	switch t.Type {
	case TargetLAN:
		return fmt.Sprintf("%s:%d", t.IP, t.Port)
	case TargetOSPrinter:
		return t.PrinterName
	default:
		return t.Type
	}
}

// claim = conditional update: read the job, verify it is still queued, then
// patch it to printing with this device's identity and attempts+1
// (spec.md §4.F). If verification fails or the patch is rejected, that is
// treated as "already claimed", not an error.
func (p *CloudQueuePoller) claim(job PrintJob) (PrintJob, bool) {
	path := p.docPath(job.ID)

	current, found, err := p.client.get(path)
	if err != nil || !found || current.Status != JobStatusQueued {
		return PrintJob{}, false
	}

	now := time.Now().UTC()
	nextAttempts := current.Attempts + 1
	fields := map[string]fsValue{
		"status":        stringVal(JobStatusPrinting),
		"claimedBy":     stringVal(p.deviceID),
		"claimedByName": stringVal(p.deviceName),
		"claimedAt":     timestampVal(now),
		"attempts":      intVal(nextAttempts),
	}
	if err := p.client.patch(path, fields); err != nil {
		return PrintJob{}, false
	}

	current.Status = JobStatusPrinting
	current.Attempts = nextAttempts
	current.ClaimedBy = p.deviceID
	current.ClaimedByName = p.deviceName
	return current, true
}

// dispatch routes the claimed job to the matching transport. The second
// return value marks non-retryable (terminal) errors: unknown/incomplete
// targets can never succeed by retrying (spec.md §4.F, §9 open question).
func (p *CloudQueuePoller) dispatch(job PrintJob, data []byte) (error, bool) {
	switch job.Target.Type {
	case TargetLAN:
		if job.Target.IP == "" {
			return fmt.Errorf("%s", ErrNoLanIP), true
		}
		port := job.Target.Port
		if port == 0 {
			port = DefaultLANPrintPort
		}
		return printTcp(job.Target.IP, port, data), false

	case TargetOSPrinter:
		if job.Target.PrinterName == "" {
			return fmt.Errorf("%s", ErrNoPrinterName), true
		}
		return osSpooler.printOs(job.Target.PrinterName, data), false

	default:
		return fmt.Errorf("%s", ErrUnknownTarget), true
	}
}

// reportOutcome patches the job's terminal/retry state back to the store
// (spec.md §4.F "Outcome reporting").
func (p *CloudQueuePoller) reportOutcome(job PrintJob, ok, nonRetryable bool, errMsg string) {
	path := p.docPath(job.ID)

	var fields map[string]fsValue
	switch {
	case ok:
		fields = map[string]fsValue{
			"status":    stringVal(JobStatusPrinted),
			"printedAt": timestampVal(time.Now().UTC()),
			"error":     nullVal(),
		}
	case !nonRetryable && job.Attempts < job.MaxAttempts:
		fields = map[string]fsValue{
			"status":        stringVal(JobStatusQueued),
			"claimedBy":     nullVal(),
			"claimedByName": nullVal(),
			"claimedAt":     nullVal(),
			"error":         stringVal("Retry: " + errMsg),
		}
	default:
		fields = map[string]fsValue{
			"status": stringVal(JobStatusFailed),
			"error":  stringVal(errMsg),
		}
	}

	if err := p.client.patch(path, fields); err != nil {
		log.Printf("cloud queue: failed to report outcome for job %s: %v", job.ID, err)
	}
}
