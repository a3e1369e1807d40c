package main

import (
	"errors"
	"net"
)

// privateRanges are the RFC1918 blocks preferred for LAN discovery (spec.md §4.D).
var privateRanges = []*net.IPNet{
	mustParseCIDR("10.0.0.0/8"),
	mustParseCIDR("172.16.0.0/12"),
	mustParseCIDR("192.168.0.0/16"),
}

func mustParseCIDR(s string) *net.IPNet {
	_, n, err := net.ParseCIDR(s)
	if err != nil {
		panic(err)
	}
	return n
}

// localIPv4 enumerates non-loopback IPv4 addresses and prefers the first one
// in a private range, falling back to the first IPv4 address found.
func localIPv4() (net.IP, error) {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return nil, err
	}

	var firstIPv4 net.IP
	for _, addr := range addrs {
		ipNet, ok := addr.(*net.IPNet)
		if !ok || ipNet.IP.IsLoopback() {
			continue
		}
		ip4 := ipNet.IP.To4()
		if ip4 == nil {
			continue
		}
		if firstIPv4 == nil {
			firstIPv4 = ip4
		}
		for _, r := range privateRanges {
			if r.Contains(ip4) {
				return ip4, nil
			}
		}
	}

	if firstIPv4 != nil {
		return firstIPv4, nil
	}
	return nil, errors.New(ErrNoLocalIPv4)
}
