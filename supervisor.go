package main

import (
	"fmt"
	"log"
	"os"
	"sync"
	"time"
)

// Supervisor exclusively owns the runtime configuration and the current
// cloud poller (spec.md §3 Ownership, §4.H). It is the single mutator of
// shared mutable runtime config; pollers receive an immutable snapshot at
// construction time and are replaced, never mutated in place (spec.md §5,
// §9 "Global mutable runtime config").
type Supervisor struct {
	mu      sync.Mutex
	config  RuntimeConfig
	poller  *CloudQueuePoller
	store   *cloudStoreClient
	history *JobHistory
}

func NewSupervisor(initial RuntimeConfig, history *JobHistory) *Supervisor {
	return &Supervisor{config: initial, history: history}
}

// Snapshot returns a value copy of the current runtime configuration.
func (s *Supervisor) Snapshot() RuntimeConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.config.Clone()
}

// SetRestaurantID updates the runtime config and restarts the cloud poller
// to reflect it (spec.md §4.G setRestaurantId command).
func (s *Supervisor) SetRestaurantID(restaurantID, deviceName string) {
	s.mu.Lock()
	s.config.RestaurantID = restaurantID
	if deviceName != "" {
		s.config.DeviceName = deviceName
	}
	s.mu.Unlock()

	s.RestartCloud()
}

// RestartCloud stops the current poller if any, then if restaurantId is
// non-empty constructs and starts a new one with a fresh device id
// (spec.md §4.H).
func (s *Supervisor) RestartCloud() {
	s.mu.Lock()
	if s.poller != nil {
		s.poller.stop()
		s.poller = nil
	}

	cfg := s.config.Clone()
	if cfg.RestaurantID == "" {
		s.mu.Unlock()
		return
	}

	cfg.DeviceID = newDeviceID()
	s.config.DeviceID = cfg.DeviceID

	if s.store == nil || s.store.projectID != cfg.CloudProjectID {
		s.store = newCloudStoreClient(cfg.CloudProjectID)
	}
	poller := newCloudQueuePoller(s.store, cfg, s.history)
	s.poller = poller
	s.mu.Unlock()

	log.Printf("cloud queue: starting poller for restaurant %s as device %s", cfg.RestaurantID, cfg.DeviceID)
	poller.start(DefaultPollInterval)
}

// StopCloud stops the active poller, if any (used on shutdown).
func (s *Supervisor) StopCloud() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.poller != nil {
		s.poller.stop()
		s.poller = nil
	}
}

func newDeviceID() string {
	hostname, err := os.Hostname()
	if err != nil || hostname == "" {
		hostname = "printbridge"
	}
	return fmt.Sprintf("%s-%d", hostname, time.Now().UnixMilli())
}
