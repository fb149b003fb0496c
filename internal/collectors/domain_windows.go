//go:build windows

package collectors

import (
	"context"

	"golang.org/x/sys/windows"
)

// domainName asks Windows for the DNS domain the machine is joined to.
// Workgroup machines have none, so the FQDN suffix is tried next.
func domainName(ctx context.Context, r resolver, hostname, ip string) (string, error) {
	n := uint32(256)
	buf := make([]uint16, n)
	err := windows.GetComputerNameEx(windows.ComputerNameDnsDomain, &buf[0], &n)
	if err == windows.ERROR_MORE_DATA {
		buf = make([]uint16, n)
		err = windows.GetComputerNameEx(windows.ComputerNameDnsDomain, &buf[0], &n)
	}
	if err == nil {
		if domain := windows.UTF16ToString(buf[:n]); domain != "" {
			return domain, nil
		}
	}
	return fqdnDomain(ctx, r, hostname, ip)
}
