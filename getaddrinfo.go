package uvloop

import (
	"context"
	"net"
	"net/netip"
)

// GetaddrinfoCallback receives the resolved addresses, or the resolver
// error, on the loop goroutine.
type GetaddrinfoCallback func(addrs []netip.Addr, err error)

// Getaddrinfo resolves host on the background work pool and delivers
// the result on the loop goroutine. The request keeps the loop alive
// until the callback has run. Must be called on the loop goroutine.
func (l *Loop) Getaddrinfo(host string, cb GetaddrinfoCallback) error {
	if host == "" || cb == nil {
		return ErrArgument
	}
	var addrs []netip.Addr
	return l.QueueWork(func() error {
		ips, err := net.DefaultResolver.LookupNetIP(context.Background(), "ip", host)
		if err != nil {
			return err
		}
		addrs = ips
		return nil
	}, func(err error) {
		cb(addrs, err)
	})
}
