package main

import (
	"net"
	"testing"
)

func TestPrivateRangesContainExpectedAddresses(t *testing.T) {
	cases := []struct {
		ip   string
		want bool
	}{
		{"10.1.2.3", true},
		{"172.16.0.5", true},
		{"172.31.255.255", true},
		{"192.168.1.1", true},
		{"8.8.8.8", false},
		{"172.32.0.1", false},
	}

	for _, tc := range cases {
		ip := net.ParseIP(tc.ip).To4()
		matched := false
		for _, r := range privateRanges {
			if r.Contains(ip) {
				matched = true
				break
			}
		}
		if matched != tc.want {
			t.Errorf("privateRanges contains %s = %v, want %v", tc.ip, matched, tc.want)
		}
	}
}
