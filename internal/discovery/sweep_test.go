package discovery

import (
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

type fakePinger struct {
	up      map[string]bool
	pinged  []string
	timeout time.Duration
}

func (p *fakePinger) Ping(_ context.Context, ip net.IP, timeout time.Duration) (time.Duration, bool) {
	p.pinged = append(p.pinged, ip.String())
	p.timeout = timeout
	return time.Millisecond, p.up[ip.String()]
}

func (p *fakePinger) Close() error { return nil }

func TestHostAddresses(t *testing.T) {
	ips, err := HostAddresses("192.168.1.0/24")
	if err != nil {
		t.Fatalf("HostAddresses: %v", err)
	}
	if len(ips) != 254 {
		t.Fatalf("got %d hosts, want 254", len(ips))
	}
	if ips[0].String() != "192.168.1.1" || ips[253].String() != "192.168.1.254" {
		t.Fatalf("range %s-%s, want .1-.254", ips[0], ips[253])
	}
}

func TestHostAddressesSmallPrefixes(t *testing.T) {
	tests := []struct {
		cidr string
		want []string
	}{
		{"10.0.0.5", []string{"10.0.0.5"}},
		{"10.0.0.4/31", []string{"10.0.0.4", "10.0.0.5"}},
		{"10.0.0.9/30", []string{"10.0.0.9", "10.0.0.10"}},
	}
	for _, tt := range tests {
		ips, err := HostAddresses(tt.cidr)
		if err != nil {
			t.Fatalf("HostAddresses(%q): %v", tt.cidr, err)
		}
		var got []string
		for _, ip := range ips {
			got = append(got, ip.String())
		}
		if !reflect.DeepEqual(got, tt.want) {
			t.Fatalf("HostAddresses(%q) = %v, want %v", tt.cidr, got, tt.want)
		}
	}
}

func TestHostAddressesRejects(t *testing.T) {
	for _, cidr := range []string{"not-a-network", "fd00::/64", "10.0.0.0/8"} {
		if _, err := HostAddresses(cidr); err == nil {
			t.Fatalf("HostAddresses(%q) should fail", cidr)
		}
	}
}

func TestSweep(t *testing.T) {
	pinger := &fakePinger{up: map[string]bool{"192.168.1.1": true, "192.168.1.20": true}}
	s := NewSweeper(pinger)
	s.lookup = func(_ context.Context, addr string) ([]string, error) {
		if addr == "192.168.1.1" {
			return []string{"router.lan."}, nil
		}
		return nil, errors.New("no PTR")
	}

	devices, err := s.Sweep(context.Background(), "192.168.1.0/24", SweepOptions{Timeout: time.Second, ResolveHostnames: true})
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	want := []Device{
		{IP: "192.168.1.1", Hostname: "router.lan", Status: StatusUp},
		{IP: "192.168.1.20", Hostname: HostnameNotFound, Status: StatusUp},
	}
	if !reflect.DeepEqual(devices, want) {
		t.Fatalf("Sweep = %+v, want %+v", devices, want)
	}
	if len(pinger.pinged) != 254 || pinger.pinged[0] != "192.168.1.1" {
		t.Fatalf("pinged %d hosts starting at %v", len(pinger.pinged), pinger.pinged[:1])
	}
	if pinger.timeout != time.Second {
		t.Fatalf("timeout = %s", pinger.timeout)
	}
}

func TestSweepWithoutResolution(t *testing.T) {
	pinger := &fakePinger{up: map[string]bool{"10.0.0.2": true}}
	s := NewSweeper(pinger)
	s.lookup = func(context.Context, string) ([]string, error) {
		t.Fatal("lookup should not run")
		return nil, nil
	}

	devices, err := s.Sweep(context.Background(), "10.0.0.0/29", SweepOptions{})
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if len(devices) != 1 || devices[0].Hostname != "" {
		t.Fatalf("unexpected devices %+v", devices)
	}
	if pinger.timeout != time.Second {
		t.Fatalf("default timeout = %s, want 1s", pinger.timeout)
	}
}

func TestSweepStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewSweeper(&fakePinger{}).Sweep(ctx, "10.0.0.0/24", SweepOptions{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestFileName(t *testing.T) {
	ts := time.Date(2025, 6, 3, 14, 5, 9, 0, time.Local)
	if got := FileName(ts); got != "network_scan_20250603_140509.csv" {
		t.Fatalf("FileName = %q", got)
	}
}

func TestExport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scan.csv")
	abs, err := Export(path, []Device{{IP: "192.168.1.1", Hostname: "router.lan", Status: StatusUp}})
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		t.Fatal(err)
	}
	want := "ip,hostname,status\n192.168.1.1,router.lan,up\n"
	if string(data) != want {
		t.Fatalf("exported %q, want %q", data, want)
	}
}

func TestExportEmpty(t *testing.T) {
	abs, err := Export(filepath.Join(t.TempDir(), "scan.csv"), nil)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "ip,hostname,status\n" {
		t.Fatalf("exported %q", data)
	}
}
