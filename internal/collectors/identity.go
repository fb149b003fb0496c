package collectors

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"slices"
	"strings"

	"github.com/shirou/gopsutil/v3/host"
	psnet "github.com/shirou/gopsutil/v3/net"

	"github.com/breeze-rmm/patchaudit/internal/patching"
)

// resolver is the subset of *net.Resolver the identity lookup uses.
type resolver interface {
	LookupHost(ctx context.Context, host string) ([]string, error)
	LookupAddr(ctx context.Context, addr string) ([]string, error)
}

// IdentityCollector reports hostname, domain, IP address and OS version of
// the local host.
type IdentityCollector struct {
	includeDomain bool
	resolver      resolver
	hostInfo      func(ctx context.Context) (*host.InfoStat, error)
	interfaces    func(ctx context.Context) (psnet.InterfaceStatList, error)
	domain        func(ctx context.Context, r resolver, hostname, ip string) (string, error)
}

// NewIdentityCollector creates an IdentityCollector. With includeDomain
// false the domain lookup is skipped.
func NewIdentityCollector(includeDomain bool) *IdentityCollector {
	return &IdentityCollector{
		includeDomain: includeDomain,
		resolver:      net.DefaultResolver,
		hostInfo:      host.InfoWithContext,
		interfaces:    psnet.InterfacesWithContext,
		domain:        domainName,
	}
}

// HostIdentity returns whatever fields could be determined. Failed lookups
// leave their field blank and are reported in the joined error.
func (c *IdentityCollector) HostIdentity(ctx context.Context) (patching.Identity, error) {
	var id patching.Identity
	var errs []error

	info, err := c.hostInfo(ctx)
	if err != nil || info == nil {
		errs = append(errs, fmt.Errorf("host info: %w", errOrEmpty(err)))
	} else {
		id.Hostname = info.Hostname
		id.OSVersion = osLabel(info)
	}
	if id.Hostname == "" {
		if name, err := os.Hostname(); err == nil {
			id.Hostname = name
		}
	}

	if id.Hostname != "" {
		ip, err := c.lookupIP(ctx, id.Hostname)
		if err != nil {
			errs = append(errs, fmt.Errorf("ip address: %w", err))
		}
		id.IPAddress = ip
	}

	if c.includeDomain && id.Hostname != "" {
		domain, err := c.domain(ctx, c.resolver, id.Hostname, id.IPAddress)
		if err != nil {
			errs = append(errs, fmt.Errorf("domain: %w", err))
		}
		id.Domain = domain
	}

	return id, errors.Join(errs...)
}

// lookupIP resolves hostname to an IPv4 address, falling back to the first
// usable address of an interface that is up.
func (c *IdentityCollector) lookupIP(ctx context.Context, hostname string) (string, error) {
	var resolveErr error
	addrs, err := c.resolver.LookupHost(ctx, hostname)
	if err != nil {
		resolveErr = err
	}
	for _, a := range addrs {
		if ip := net.ParseIP(a); usableIPv4(ip) {
			return ip.String(), nil
		}
	}

	ifaces, err := c.interfaces(ctx)
	if err != nil {
		return "", errors.Join(resolveErr, err)
	}
	for _, iface := range ifaces {
		if !slices.Contains(iface.Flags, "up") || slices.Contains(iface.Flags, "loopback") {
			continue
		}
		for _, addr := range iface.Addrs {
			ip, _, err := net.ParseCIDR(addr.Addr)
			if err != nil {
				ip = net.ParseIP(addr.Addr)
			}
			if usableIPv4(ip) {
				return ip.String(), nil
			}
		}
	}
	if resolveErr != nil {
		return "", resolveErr
	}
	return "", errors.New("no usable IPv4 address")
}

// osLabel returns a short OS name such as "Windows 10 Pro" or
// "ubuntu 22.04". Windows product names already carry the release, so the
// build string gopsutil reports in PlatformVersion is left out.
func osLabel(info *host.InfoStat) string {
	platform := strings.TrimSpace(strings.TrimPrefix(info.Platform, "Microsoft "))
	if platform == "" {
		platform = info.OS
	}
	if strings.EqualFold(info.OS, "windows") || strings.HasPrefix(platform, "Windows") {
		return platform
	}
	if fields := strings.Fields(info.PlatformVersion); len(fields) > 0 {
		return platform + " " + fields[0]
	}
	return platform
}

func usableIPv4(ip net.IP) bool {
	ip = ip.To4()
	return ip != nil && !ip.IsLoopback() && !ip.IsLinkLocalUnicast() && !ip.IsUnspecified()
}

// fqdnDomain derives the DNS domain from the host's fully qualified name:
// the hostname itself when it is dotted, else a reverse lookup of ip.
func fqdnDomain(ctx context.Context, r resolver, hostname, ip string) (string, error) {
	if _, suffix, ok := strings.Cut(hostname, "."); ok && suffix != "" {
		return suffix, nil
	}
	if ip == "" {
		return "", errors.New("no address to reverse-resolve")
	}

	names, err := r.LookupAddr(ctx, ip)
	if err != nil {
		return "", err
	}
	prefix := strings.ToLower(hostname) + "."
	for _, name := range names {
		name = strings.TrimSuffix(name, ".")
		if strings.HasPrefix(strings.ToLower(name), prefix) {
			return name[len(prefix):], nil
		}
	}
	return "", fmt.Errorf("no fully qualified name for %s", hostname)
}

func errOrEmpty(err error) error {
	if err == nil {
		return errors.New("empty result")
	}
	return err
}
