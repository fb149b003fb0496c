package discovery

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net"
	"os"
	"sync/atomic"
	"time"

	"golang.org/x/net/icmp"
	"golang.org/x/net/ipv4"
)

var pingSequence uint32

// Pinger sends one echo request and reports whether the target answered
// within timeout.
type Pinger interface {
	Ping(ctx context.Context, ip net.IP, timeout time.Duration) (time.Duration, bool)
	Close() error
}

// ICMPPinger pings over a single ICMP socket. It prefers a raw socket and
// falls back to an unprivileged datagram socket where the OS allows one.
type ICMPPinger struct {
	conn       *icmp.PacketConn
	privileged bool
}

// NewICMPPinger opens the ICMP socket used for every ping.
func NewICMPPinger() (*ICMPPinger, error) {
	conn, rawErr := icmp.ListenPacket("ip4:icmp", "0.0.0.0")
	if rawErr == nil {
		return &ICMPPinger{conn: conn, privileged: true}, nil
	}
	conn, dgramErr := icmp.ListenPacket("udp4", "0.0.0.0")
	if dgramErr == nil {
		return &ICMPPinger{conn: conn}, nil
	}
	return nil, fmt.Errorf("ICMP unavailable (requires root/elevated privileges): %w", errors.Join(rawErr, dgramErr))
}

// Privileged reports whether the pinger uses a raw socket.
func (p *ICMPPinger) Privileged() bool {
	return p.privileged
}

func (p *ICMPPinger) Close() error {
	return p.conn.Close()
}

// Ping returns the round-trip time and true if the target responded.
func (p *ICMPPinger) Ping(ctx context.Context, ip net.IP, timeout time.Duration) (time.Duration, bool) {
	ip = ip.To4()
	if ip == nil {
		return 0, false
	}

	seq := int(atomic.AddUint32(&pingSequence, 1) & 0xffff)
	id := os.Getpid() & 0xffff
	message := icmp.Message{
		Type: ipv4.ICMPTypeEcho,
		Code: 0,
		Body: &icmp.Echo{
			ID:   id,
			Seq:  seq,
			Data: []byte{0x50, 0x41, 0x55, byte(rand.IntN(256))},
		},
	}
	payload, err := message.Marshal(nil)
	if err != nil {
		return 0, false
	}

	deadline := time.Now().Add(timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := p.conn.SetDeadline(deadline); err != nil {
		return 0, false
	}

	var dst net.Addr = &net.IPAddr{IP: ip}
	if !p.privileged {
		dst = &net.UDPAddr{IP: ip}
	}

	sendTime := time.Now()
	if _, err := p.conn.WriteTo(payload, dst); err != nil {
		return 0, false
	}

	targetStr := ip.String()
	buffer := make([]byte, 1500)
	for {
		n, peer, err := p.conn.ReadFrom(buffer)
		if err != nil {
			return 0, false
		}
		if peer == nil || peerIP(peer) != targetStr {
			continue
		}

		parsed, err := icmp.ParseMessage(1, buffer[:n])
		if err != nil {
			return 0, false
		}
		if parsed.Type != ipv4.ICMPTypeEchoReply {
			continue
		}

		echo, ok := parsed.Body.(*icmp.Echo)
		if !ok || echo.Seq != seq {
			continue
		}
		// Datagram sockets get their echo ID rewritten by the kernel.
		if p.privileged && echo.ID != id {
			continue
		}
		return time.Since(sendTime), true
	}
}

func peerIP(addr net.Addr) string {
	switch a := addr.(type) {
	case *net.IPAddr:
		return a.IP.String()
	case *net.UDPAddr:
		return a.IP.String()
	default:
		return ""
	}
}
