package main

import "time"

// Default configuration values
const (
	DefaultPort           = "7171"
	DefaultHost           = ""
	DefaultConfigFileName = "printbridge.json"
)

// Config store keys
const (
	ConfigKeyRestaurantID      = "restaurantId"
	ConfigKeyDeviceName        = "deviceName"
	ConfigKeyFirebaseProjectID = "firebaseProjectId"
	ConfigKeyUpdatedAt         = "updatedAt"
)

// Print job statuses (cloud queue)
const (
	JobStatusQueued   = "queued"
	JobStatusPrinting = "printing"
	JobStatusPrinted  = "printed"
	JobStatusFailed   = "failed"
)

// Target kinds
const (
	TargetLAN       = "lan"
	TargetOSPrinter = "osPrinter"
	TargetUSB       = "usb"
)

// Error codes surfaced to callers (WS replies and job.error fields)
const (
	ErrConnectTimeout    = "connect_timeout"
	ErrConnectRefused    = "connect_refused"
	ErrIOError           = "io_error"
	ErrNoLocalIPv4       = "no_local_ipv4"
	ErrLibusbUnavailable = "libusb_unavailable"
	ErrDeviceNotFound    = "device_not_found"
	ErrDeviceBusy        = "device_busy"
	ErrClaimFailed       = "claim_failed"
	ErrBulkTransferError = "bulk_transfer_error"
	ErrUnsupported       = "unsupported"
	ErrOSPrintError      = "os_print_error"
	ErrConfigWriteError  = "config_write_error"
	ErrNoLanIP           = "no_lan_ip"
	ErrNoPrinterName     = "no_printer_name"
	ErrUnknownTarget     = "unknown_target"
	ErrPayloadTooLarge   = "payload_too_large"
)

// Timeouts (spec.md §5)
const (
	TCPPrintConnectTimeout = 5 * time.Second
	ScanConnectTimeout     = 180 * time.Millisecond
	USBBulkTransferTimeout = 5 * time.Second
)

// Cloud queue tuning (spec.md §4.F)
const (
	DefaultPollInterval  = 1 * time.Second
	DefaultJobBatchSize  = 20
	DefaultMaxAttempts   = 3
	DrainPollDelay       = 500 * time.Millisecond
	MaxCloudJobPayload   = 4 * 1024 * 1024 // 4 MiB decoded
	MaxWSFrameBytes      = 1 * 1024 * 1024 // 1 MiB
	ScanBatchSize        = 32
	ScanLastOctetMin     = 1
	ScanLastOctetMax     = 254
	DefaultLANPrintPort  = 9100
	DefaultRecentJobsCap = 50
	MaxRecentJobsCap     = 500
)
