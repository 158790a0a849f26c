package moqt

import (
	"log/slog"

	"github.com/quicmoq/moqt/internal/message"
	"github.com/quicmoq/moqt/telemetry"
)

// Version is a protocol version as negotiated during setup.
type Version = message.Version

const (
	Draft07        = message.Draft07
	DefaultVersion = message.DefaultVersion
)

// Role declares which directions of the protocol an endpoint intends to use.
type Role = message.Role

const (
	RolePublisher  = message.RolePublisher
	RoleSubscriber = message.RoleSubscriber
	RolePubSub     = message.RolePubSub
)

// Perspective tells the session which side of the setup handshake it plays.
type Perspective uint8

const (
	PerspectiveClient Perspective = iota
	PerspectiveServer
)

func (p Perspective) String() string {
	if p == PerspectiveServer {
		return "server"
	}
	return "client"
}

const defaultMaxBufferedControlBytes = 1 << 20

// SessionParameters configures a single session. The zero value is a
// WebTransport client speaking the default version with both roles.
type SessionParameters struct {
	Version     Version
	Perspective Perspective
	Role        Role

	// UsingWebTransport distinguishes sessions carried over WebTransport
	// from sessions on a raw QUIC connection, which exchange Path instead.
	UsingWebTransport bool
	Path              string

	// MaxSubscribeID is the number of subscribe ids granted to the peer
	// during setup. Session.GrantMoreSubscribes raises it later.
	MaxSubscribeID uint64

	// DeliverPartialObjects hands incoming object fragments to the visitor
	// as they arrive instead of reassembling full objects first.
	DeliverPartialObjects bool

	// SupportObjectAcks advertises OBJECT_ACK support during setup. The
	// extension activates only when both endpoints advertise it.
	SupportObjectAcks bool

	// MaxBufferedControlBytes caps outgoing control data queued while the
	// control stream is blocked. Zero means the 1 MiB default. Exceeding
	// the cap terminates the session.
	MaxBufferedControlBytes int

	Logger  *slog.Logger
	Metrics *telemetry.Metrics
}

func (p *SessionParameters) version() Version {
	if p.Version == 0 {
		return DefaultVersion
	}
	return p.Version
}

func (p *SessionParameters) role() Role {
	if !p.Role.IsValid() {
		return RolePubSub
	}
	return p.Role
}

func (p *SessionParameters) maxBufferedControlBytes() int {
	if p.MaxBufferedControlBytes <= 0 {
		return defaultMaxBufferedControlBytes
	}
	return p.MaxBufferedControlBytes
}

func (p *SessionParameters) logger() *slog.Logger {
	if p.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return p.Logger
}

// SessionCallbacks are the application hooks of a session. All of them run
// on the session's event loop.
type SessionCallbacks struct {
	// OnSessionEstablished fires once when the setup handshake completes.
	OnSessionEstablished func()

	// OnSessionTerminated fires at most once when the session dies. The
	// error is nil after a clean local close and a *SessionError otherwise.
	OnSessionTerminated func(err error)

	// OnIncomingAnnounce decides the fate of a peer ANNOUNCE. Returning
	// nil accepts the namespace. Returning an *AnnounceRejectedError sends
	// its code and reason; any other error maps to the internal code. When
	// the callback itself is nil, announcements are rejected as
	// unsupported.
	OnIncomingAnnounce func(namespace FullTrackName) error
}
