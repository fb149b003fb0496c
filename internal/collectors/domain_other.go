//go:build !windows

package collectors

import "context"

func domainName(ctx context.Context, r resolver, hostname, ip string) (string, error) {
	return fqdnDomain(ctx, r, hostname, ip)
}
