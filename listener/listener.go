// Package listener provides the net.Listener wrappers liftoff serves on.
//
// SniffListener serves plain HTTP and HTTPS on the same port by peeking at the first
// bytes of every connection off the accept path. ResilientListener keeps the accept loop alive when a
// single connection fails, so one bad client cannot stop the server.
package listener

import (
	"bufio"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"
)

const (
	// DefaultPeekTimeout bounds the wait for the first bytes and for the TLS handshake
	DefaultPeekTimeout = 10 * time.Second

	minRetryDelay = 5 * time.Millisecond
	maxRetryDelay = time.Second
)

// connWrapper wraps a net.Conn and reads through the buffered reader used for peeking
type connWrapper struct {
	net.Conn
	io.Reader
}

// Read will read from the io.Reader instead of the net.Conn so peeked bytes are not lost
func (cw *connWrapper) Read(b []byte) (int, error) {
	return cw.Reader.Read(b)
}

// SniffListener wraps net.Listener and terminates TLS for connections that open with a TLS record.
// Every other connection is returned as plain TCP.
// Sniffing runs in one goroutine per connection, so a client that stays silent never delays the next one.
// Create it with NewSniffListener.
type SniffListener struct {
	net.Listener
	TLSConfig   *tls.Config
	PeekTimeout time.Duration // 0 uses DefaultPeekTimeout

	start   sync.Once
	stop    sync.Once
	results chan sniffResult
	done    chan struct{}
}

type sniffResult struct {
	conn net.Conn
	err  error
}

func NewSniffListener(listener net.Listener, tlsConfig *tls.Config) *SniffListener {
	return &SniffListener{
		Listener:    listener,
		TLSConfig:   tlsConfig,
		PeekTimeout: DefaultPeekTimeout,
		results:     make(chan sniffResult),
		done:        make(chan struct{}),
	}
}

func (l *SniffListener) timeout() time.Duration {
	if l.PeekTimeout <= 0 {
		return DefaultPeekTimeout
	}
	return l.PeekTimeout
}

// Accept returns the next sniffed connection in the order sniffing completes.
// Per-connection failures (silent clients, broken handshakes) are returned as errors.
func (l *SniffListener) Accept() (net.Conn, error) {
	l.start.Do(func() { go l.acceptLoop() })
	select {
	case result := <-l.results:
		return result.conn, result.err
	case <-l.done:
		return nil, fmt.Errorf("accepting connection : %w", net.ErrClosed)
	}
}

// Close stops the accept loop and closes the wrapped listener.
func (l *SniffListener) Close() error {
	l.shutdown()
	return l.Listener.Close()
}

func (l *SniffListener) shutdown() {
	l.stop.Do(func() { close(l.done) })
}

func (l *SniffListener) acceptLoop() {
	for {
		rawConnection, err := l.Listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				l.shutdown()
				return
			}
			if !l.deliver(sniffResult{err: fmt.Errorf("accepting connection : %w", err)}) {
				return
			}
			continue
		}
		go func() {
			conn, err := l.sniff(rawConnection)
			if !l.deliver(sniffResult{conn: conn, err: err}) && conn != nil {
				conn.Close()
			}
		}()
	}
}

// deliver hands a result to Accept, it reports false once the listener is closed.
func (l *SniffListener) deliver(result sniffResult) bool {
	select {
	case l.results <- result:
		return true
	case <-l.done:
		return false
	}
}

// sniff peeks at the first bytes of a connection. A TLS handshake record (0x16 0x03)
// is completed before the connection is returned.
func (l *SniffListener) sniff(rawConnection net.Conn) (net.Conn, error) {
	bufferedReader := bufio.NewReader(rawConnection)

	if err := rawConnection.SetReadDeadline(time.Now().Add(l.timeout())); err != nil {
		rawConnection.Close()
		return nil, fmt.Errorf("setting read deadline for peek : %w", err)
	}

	peekedBytes, peekErr := bufferedReader.Peek(5)

	if err := rawConnection.SetReadDeadline(time.Time{}); err != nil {
		rawConnection.Close()
		return nil, fmt.Errorf("clearing read deadline after peek : %w", err)
	}
	if peekErr != nil && !errors.Is(peekErr, bufio.ErrBufferFull) {
		rawConnection.Close()
		return nil, fmt.Errorf("peeking initial bytes : %w", peekErr)
	}

	wrapped := &connWrapper{
		Conn:   rawConnection,
		Reader: bufferedReader,
	}
	if len(peekedBytes) < 2 || peekedBytes[0] != 0x16 || peekedBytes[1] != 0x03 {
		return wrapped, nil
	}

	tlsConn := tls.Server(wrapped, l.TLSConfig)
	if err := rawConnection.SetReadDeadline(time.Now().Add(l.timeout())); err != nil {
		tlsConn.Close()
		return nil, fmt.Errorf("setting read deadline for handshake : %w", err)
	}
	if err := tlsConn.Handshake(); err != nil {
		tlsConn.Close()
		return nil, fmt.Errorf("performing tls handshake : %w", err)
	}
	if err := rawConnection.SetReadDeadline(time.Time{}); err != nil {
		tlsConn.Close()
		return nil, fmt.Errorf("clearing read deadline after handshake : %w", err)
	}
	return tlsConn, nil
}

// ResilientListener wraps net.Listener so that per-connection errors are logged and skipped.
// Only a closed listener ends the accept loop.
type ResilientListener struct {
	net.Listener
	Logger  *slog.Logger
	OnError func(err error) // Optional hook run for every rejected connection
}

func NewResilientListener(listenerToWrap net.Listener, logger *slog.Logger) *ResilientListener {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &ResilientListener{Listener: listenerToWrap, Logger: logger}
}

// Accept retries until a connection is accepted or the listener is closed.
// Consecutive failures back off from 5ms up to one second.
func (l *ResilientListener) Accept() (net.Conn, error) {
	var delay time.Duration
	for {
		conn, err := l.Listener.Accept()
		if err == nil {
			return conn, nil
		}
		if errors.Is(err, net.ErrClosed) {
			return nil, err
		}

		l.Logger.Warn("connection rejected", "error", err)
		if l.OnError != nil {
			l.OnError(err)
		}

		if delay == 0 {
			delay = minRetryDelay
		} else {
			delay = min(delay*2, maxRetryDelay)
		}
		time.Sleep(delay)
	}
}
