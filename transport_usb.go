package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/gousb"
)

// withUSBContext opens a libusb context and recovers from the panic gousb
// raises when libusb itself is unavailable on the host, turning it into the
// libusb_unavailable error spec.md §4.C requires. This recover pattern is
// grounded on other_examples' thereceipt-receipt-engine detectUSB, which
// guards the same gousb.NewContext() call the same way.
func withUSBContext(fn func(ctx *gousb.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s: %v", ErrLibusbUnavailable, r)
		}
	}()

	ctx := gousb.NewContext()
	if ctx == nil {
		return fmt.Errorf("%s", ErrLibusbUnavailable)
	}
	defer ctx.Close()

	return fn(ctx)
}

// discoverUsb enumerates all USB devices, keeps those with a class-7
// (printer) interface, and records the first bulk-OUT endpoint on each
// qualifying interface (spec.md §4.C). Devices with no qualifying interface
// are omitted.
func discoverUsb() ([]USBDeviceRecord, error) {
	var records []USBDeviceRecord

	err := withUSBContext(func(ctx *gousb.Context) error {
		devs, openErr := ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool { return true })
		for _, dev := range devs {
			defer dev.Close()
		}
		if openErr != nil && len(devs) == 0 {
			return nil
		}

		for _, dev := range devs {
			ifaces := printerInterfaces(dev.Desc)
			if len(ifaces) == 0 {
				continue
			}

			manufacturer, _ := dev.Manufacturer()
			product, _ := dev.Product()
			serial, _ := dev.SerialNumber()

			records = append(records, USBDeviceRecord{
				VendorID:      int(dev.Desc.Vendor),
				ProductID:     int(dev.Desc.Product),
				VendorName:    manufacturer,
				ProductName:   product,
				SerialNumber:  serial,
				BusNumber:     dev.Desc.Bus,
				DeviceAddress: dev.Desc.Address,
				Interfaces:    ifaces,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// printerInterfaces walks every configuration in the device descriptor, not
// only the active one, and returns, for each class-7 interface, its first
// bulk-OUT endpoint; an interface present in several configurations is listed
// once per configuration. gousb
// parses the raw libusb configuration-descriptor bytes internally (inside
// libusb_get_config_descriptor); by delegating to it here instead of casting
// a raw byte block ourselves, the padding/alignment hazard spec.md §9 warns
// about never arises in this codebase.
func printerInterfaces(desc *gousb.DeviceDesc) []USBInterfaceEndpoint {
	var out []USBInterfaceEndpoint
	for _, cfg := range desc.Configs {
		for _, iface := range cfg.Interfaces {
			for _, alt := range iface.AltSettings {
				if alt.Class != gousb.ClassPrinter {
					continue
				}
				if ep, ok := firstBulkOut(alt.Endpoints); ok {
					out = append(out, USBInterfaceEndpoint{
						InterfaceNumber: iface.Number,
						OutEndpoint:     ep,
					})
				}
				break
			}
		}
	}
	return out
}

// firstBulkOut returns the lowest-numbered bulk-OUT endpoint. gousb hands the
// endpoints over as a map, so descriptor order is not available and map
// iteration order is random; the lowest number makes the choice stable.
func firstBulkOut(endpoints map[gousb.EndpointAddress]gousb.EndpointDesc) (int, bool) {
	best, found := 0, false
	for addr, ep := range endpoints {
		if ep.Direction == gousb.EndpointDirectionOut && ep.TransferType == gousb.TransferTypeBulk {
			if n := addr.Number(); !found || n < best {
				best, found = n, true
			}
		}
	}
	return best, found
}

// printUsb selects the device by VID/PID (and bus/address if given), claims
// the printer-class interface, writes the whole payload to the bulk-OUT
// endpoint with a 5s timeout, and releases everything on every exit path
// (spec.md §4.C).
func printUsb(target USBPrintTarget, data []byte) error {
	return withUSBContext(func(ctx *gousb.Context) error {
		devs, openErr := ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
			if int(desc.Vendor) != target.VendorID || int(desc.Product) != target.ProductID {
				return false
			}
			if target.BusNumber != 0 && desc.Bus != target.BusNumber {
				return false
			}
			if target.DeviceAddress != 0 && desc.Address != target.DeviceAddress {
				return false
			}
			return true
		})
		if openErr != nil && len(devs) == 0 {
			return fmt.Errorf("%s", ErrDeviceNotFound)
		}
		if len(devs) == 0 {
			return fmt.Errorf("%s", ErrDeviceNotFound)
		}

		dev := devs[0]
		defer dev.Close()
		for _, extra := range devs[1:] {
			extra.Close()
		}

		dev.SetAutoDetach(true)

		cfg, err := dev.Config(1)
		if err != nil && !strings.Contains(strings.ToLower(err.Error()), "already") {
			return fmt.Errorf("%s: %w", ErrClaimFailed, err)
		}
		if cfg == nil {
			return fmt.Errorf("%s: config unavailable after claim", ErrClaimFailed)
		}
		defer cfg.Close()

		intf, err := cfg.Interface(target.InterfaceNumber, 0)
		if err != nil {
			return classifyUSBClaimError(err)
		}
		defer intf.Close()

		epOut, err := intf.OutEndpoint(target.OutEndpoint)
		if err != nil {
			return fmt.Errorf("%s: %w", ErrClaimFailed, err)
		}

		n, err := writeWithTimeout(epOut, data, USBBulkTransferTimeout)
		if err != nil {
			return fmt.Errorf("%s: %w", ErrBulkTransferError, err)
		}
		if n != len(data) {
			return fmt.Errorf("partial_transfer{written=%d,total=%d}", n, len(data))
		}
		return nil
	})
}

type usbWriter interface {
	Write(p []byte) (int, error)
}

func writeWithTimeout(w usbWriter, data []byte, timeout time.Duration) (int, error) {
	type result struct {
		n   int
		err error
	}
	done := make(chan result, 1)
	go func() {
		n, err := w.Write(data)
		done <- result{n, err}
	}()

	select {
	case r := <-done:
		return r.n, r.err
	case <-time.After(timeout):
		return 0, fmt.Errorf("bulk write timed out after %s", timeout)
	}
}

func classifyUSBClaimError(err error) error {
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "busy") {
		return fmt.Errorf("%s: %w", ErrDeviceBusy, err)
	}
	return fmt.Errorf("%s: %w", ErrClaimFailed, err)
}
