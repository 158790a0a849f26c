package webtransportgo

import (
	"crypto/tls"
	"net/http"

	quicgo_quicgo "github.com/quic-go/quic-go"
	"github.com/quic-go/quic-go/http3"
	quicgo_webtransportgo "github.com/quic-go/webtransport-go"
)

// Handler prepares a freshly upgraded session, typically by attaching a
// visitor. The server runs the session's event loop after the handler
// returns, on the same goroutine.
type Handler func(session *Session, r *http.Request)

// Server accepts WebTransport sessions over HTTP/3.
type Server struct {
	Addr        string
	TLSConfig   *tls.Config
	QUICConfig  *quicgo_quicgo.Config
	CheckOrigin func(r *http.Request) bool

	// Path is the request path sessions are accepted on, "/" by default.
	Path string

	Handler Handler

	inner *quicgo_webtransportgo.Server
}

// ListenAndServe blocks until Close is called or the listener fails.
func (s *Server) ListenAndServe() error {
	path := s.Path
	if path == "" {
		path = "/"
	}
	mux := http.NewServeMux()
	s.inner = &quicgo_webtransportgo.Server{
		H3: http3.Server{
			Addr:       s.Addr,
			TLSConfig:  s.TLSConfig,
			QUICConfig: s.QUICConfig,
			Handler:    mux,
		},
		CheckOrigin: s.CheckOrigin,
	}
	mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
		wtsess, err := s.inner.Upgrade(w, r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		session := New(wtsess)
		s.Handler(session, r)
		// Returning from the HTTP handler tears the session down, so the
		// event loop has to run here.
		session.Serve()
	})
	return s.inner.ListenAndServe()
}

func (s *Server) Close() error {
	if s.inner == nil {
		return nil
	}
	return s.inner.Close()
}
