package camera

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"
)

// DefaultConnectTimeout bounds connection establishment.
const DefaultConnectTimeout = 5 * time.Second

// DefaultReadTimeout is the per-read deadline applied to every protocol
// unit. A stream that stalls longer than this is considered dead; it is
// also what bounds worst-case shutdown latency for a read in flight.
const DefaultReadTimeout = 10 * time.Second

// ErrConnectionClosed reports that the server closed the stream before a
// full protocol unit arrived.
var ErrConnectionClosed = errors.New("connection closed by server")

// Conn is the transport surface the receive loop needs: blocking reads, a
// per-read deadline, and idempotent close. *net.TCPConn satisfies it; tests
// substitute a scripted connection.
type Conn interface {
	io.ReadCloser
	SetReadDeadline(t time.Time) error
}

// Dialer establishes transport connections.
type Dialer interface {
	Dial(ctx context.Context, address string) (Conn, error)
}

// TCPDialer dials the camera server over TCP.
type TCPDialer struct {
	ConnectTimeout time.Duration
}

// Dial connects to address ("host:port"). Refusal, timeout and DNS failures
// all surface as a wrapped dial error.
func (d TCPDialer) Dial(ctx context.Context, address string) (Conn, error) {
	timeout := d.ConnectTimeout
	if timeout <= 0 {
		timeout = DefaultConnectTimeout
	}
	nd := net.Dialer{Timeout: timeout}
	c, err := nd.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", address, err)
	}
	return c, nil
}

// ReadFull blocks until exactly len(buf) bytes have been read. EOF before
// the buffer fills maps to ErrConnectionClosed; deadline expiry keeps its
// net.Error timeout identity so callers can classify it.
func ReadFull(conn Conn, buf []byte) error {
	if _, err := io.ReadFull(conn, buf); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return ErrConnectionClosed
		}
		return err
	}
	return nil
}

// IsTimeout reports whether err is a transport read timeout.
func IsTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
