// Package discovery finds live hosts on a subnet with an ICMP echo sweep.
package discovery

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/breeze-rmm/patchaudit/internal/logging"
)

const (
	// HostnameNotFound is reported for responders without a PTR record.
	HostnameNotFound = "Hostname not found"

	StatusUp = "up"

	maxSweepHosts = 65536
)

// Device is a host that answered the sweep.
type Device struct {
	IP       string `csv:"ip"`
	Hostname string `csv:"hostname"`
	Status   string `csv:"status"`
}

// SweepOptions tunes a sweep.
type SweepOptions struct {
	Timeout          time.Duration
	ResolveHostnames bool
}

// Sweeper pings every host address of a subnet, one at a time.
type Sweeper struct {
	pinger Pinger
	lookup func(ctx context.Context, addr string) ([]string, error)
}

// NewSweeper creates a Sweeper that resolves names with the default resolver.
func NewSweeper(pinger Pinger) *Sweeper {
	return &Sweeper{pinger: pinger, lookup: net.DefaultResolver.LookupAddr}
}

// Sweep pings the host addresses of cidr in ascending order and returns
// the responders in that order.
func (s *Sweeper) Sweep(ctx context.Context, cidr string, opts SweepOptions) ([]Device, error) {
	log := logging.Component(logging.FromContext(ctx), "sweep")
	if opts.Timeout <= 0 {
		opts.Timeout = time.Second
	}

	targets, err := HostAddresses(cidr)
	if err != nil {
		return nil, err
	}
	log.Info("scanning network", slog.String("network", cidr), slog.Int("hosts", len(targets)))

	start := time.Now()
	devices := []Device{}
	for _, ip := range targets {
		if err := ctx.Err(); err != nil {
			return devices, err
		}
		rtt, ok := s.pinger.Ping(ctx, ip, opts.Timeout)
		if !ok {
			continue
		}

		d := Device{IP: ip.String(), Status: StatusUp}
		if opts.ResolveHostnames {
			d.Hostname = s.resolveHostname(ctx, d.IP)
		}
		devices = append(devices, d)
		log.Info("device found",
			slog.String("ip", d.IP),
			slog.String("hostname", d.Hostname),
			slog.Int64("rttMs", rtt.Milliseconds()))
	}

	log.Info("scan complete",
		slog.Int("devices", len(devices)),
		slog.Int64(logging.KeyDurationMs, time.Since(start).Milliseconds()))
	return devices, nil
}

func (s *Sweeper) resolveHostname(ctx context.Context, ip string) string {
	names, err := s.lookup(ctx, ip)
	if err != nil || len(names) == 0 {
		return HostnameNotFound
	}
	return strings.TrimSuffix(names[0], ".")
}

// HostAddresses lists the usable IPv4 host addresses of cidr: the network
// and broadcast addresses are left out unless the prefix is /31 or /32.
// A bare address is treated as a /32.
func HostAddresses(cidr string) ([]net.IP, error) {
	cidr = strings.TrimSpace(cidr)
	if !strings.Contains(cidr, "/") {
		cidr += "/32"
	}
	_, subnet, err := net.ParseCIDR(cidr)
	if err != nil {
		return nil, fmt.Errorf("invalid network %q: %w", cidr, err)
	}
	if subnet.IP.To4() == nil {
		return nil, fmt.Errorf("network %q is not IPv4", cidr)
	}

	ones, bits := subnet.Mask.Size()
	total := uint64(1) << uint(bits-ones)
	if total > maxSweepHosts {
		return nil, fmt.Errorf("network %q has %d addresses, more than %d", cidr, total, maxSweepHosts)
	}

	targets := make([]net.IP, 0, total)
	for ip := subnet.IP.Mask(subnet.Mask).To4(); subnet.Contains(ip); incIP(ip) {
		ipCopy := make(net.IP, len(ip))
		copy(ipCopy, ip)
		targets = append(targets, ipCopy)
	}

	if total > 2 {
		targets = targets[1 : len(targets)-1]
	}
	return targets, nil
}

func incIP(ip net.IP) {
	for j := len(ip) - 1; j >= 0; j-- {
		ip[j]++
		if ip[j] != 0 {
			break
		}
	}
}
