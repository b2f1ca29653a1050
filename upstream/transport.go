package upstream

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	utls "github.com/refraction-networking/utls"
)

// NewChromeTransport returns an http.Transport whose TLS handshake mimics Chrome through utls.
// InsecureSkipVerify is taken from TLSClientConfig when one is set on the returned transport.
func NewChromeTransport() *http.Transport {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
	}
	transport.DialTLSContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
		tcpConn, err := (&net.Dialer{}).DialContext(ctx, network, addr)
		if err != nil {
			return nil, err
		}
		sniHost, _, err := net.SplitHostPort(addr)
		if err != nil {
			sniHost = addr
		}

		uTlsConfig := &utls.Config{
			ServerName: sniHost,
		}
		if transport.TLSClientConfig != nil {
			uTlsConfig.InsecureSkipVerify = transport.TLSClientConfig.InsecureSkipVerify
		}

		uConn := utls.UClient(tcpConn, uTlsConfig, utls.HelloChrome_Auto)
		if err := uConn.BuildHandshakeState(); err != nil {
			tcpConn.Close()
			return nil, fmt.Errorf("building handshake state : %w", err)
		}

		// HelloChrome_Auto ignores NextProtos and offers h2, the transport only speaks http/1.1 over a custom dialer
		foundALPN := false
		for _, ext := range uConn.Extensions {
			if alpnExt, ok := ext.(*utls.ALPNExtension); ok {
				alpnExt.AlpnProtocols = []string{"http/1.1"}
				foundALPN = true
				break
			}
		}
		if !foundALPN {
			tcpConn.Close()
			return nil, errors.New("could not find ALPNExtension")
		}

		if err := uConn.HandshakeContext(ctx); err != nil {
			tcpConn.Close()
			return nil, err
		}
		return uConn, nil
	}
	return transport
}

// WithChromeFingerprint sends upstream requests through NewChromeTransport.
func WithChromeFingerprint() func(*Client) error {
	return func(client *Client) error {
		client.HTTPClient.Transport = NewChromeTransport()
		return nil
	}
}
