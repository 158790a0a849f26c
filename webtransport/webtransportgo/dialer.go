package webtransportgo

import (
	"context"
	"crypto/tls"
	"net/http"

	quicgo_webtransportgo "github.com/quic-go/webtransport-go"
)

// Dial opens a WebTransport session with the server at addr. The returned
// Session delivers no events until Serve is called.
func Dial(ctx context.Context, addr string, header http.Header, tlsConfig *tls.Config) (*http.Response, *Session, error) {
	d := quicgo_webtransportgo.Dialer{
		TLSClientConfig: tlsConfig,
	}
	rsp, wtsess, err := d.Dial(ctx, addr, header)
	if err != nil {
		return rsp, nil, err
	}
	return rsp, New(wtsess), nil
}
