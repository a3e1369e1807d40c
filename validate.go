package main

import (
	"fmt"
	"net"
	"regexp"
)

var (
	hostnameLabelRe = regexp.MustCompile(`^[A-Za-z0-9]([A-Za-z0-9-]*[A-Za-z0-9])?$`)
	allDigitsRe     = regexp.MustCompile(`^[0-9]+$`)
)

// validateIPAddress accepts either a dotted-quad IPv4 literal or a DNS-style
// hostname (printers are commonly addressed by mDNS name on the LAN). It never
// resolves the name; it only checks shape. The printRawTcp command relies on it
// before handing the string to net.Dial; cloud jobs' target.lan.ip is only
// checked for being non-empty.
func validateIPAddress(s string) error {
	if s == "" {
		return fmt.Errorf("address is empty")
	}
	if ip := net.ParseIP(s); ip != nil {
		if ip.To4() == nil {
			return fmt.Errorf("address %q is not IPv4", s)
		}
		return nil
	}
	return validateHostname(s)
}

func validateHostname(s string) error {
	if len(s) == 0 || len(s) > 253 {
		return fmt.Errorf("invalid hostname length")
	}
	labels := splitHostname(s)
	if len(labels) == 0 {
		return fmt.Errorf("invalid hostname %q", s)
	}
	for _, label := range labels {
		if !hostnameLabelRe.MatchString(label) {
			return fmt.Errorf("invalid hostname label %q in %q", label, s)
		}
		// A purely numeric label means the caller almost certainly meant to
		// type an IPv4 address and got it wrong (e.g. "192.168.1" or
		// "192.168.1.a"); treat it as a malformed address, not a hostname.
		if allDigitsRe.MatchString(label) {
			return fmt.Errorf("invalid address %q: numeric label %q is not a valid hostname component", s, label)
		}
	}
	return nil
}

func splitHostname(s string) []string {
	var labels []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == '.' {
			if i == start {
				return nil
			}
			labels = append(labels, s[start:i])
			start = i + 1
		}
	}
	return labels
}
