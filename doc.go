// Package moqt implements the session layer of Media over QUIC Transport.
//
// A Session speaks the MoQT control protocol over one bidirectional stream
// and moves track objects over unidirectional streams and datagrams. The
// package covers the full subscription lifecycle on both sides of a
// connection: publishing tracks to subscribers, subscribing to remote
// tracks, announcing namespaces, fetching past objects and acknowledging
// delivered ones.
//
// # Key Features
//
//   - Session establishment over WebTransport or raw QUIC
//   - Track publishing with per-track forwarding preferences (one stream
//     per track, one stream per subgroup, or datagrams)
//   - Subscription windows with live updates via SUBSCRIBE_UPDATE
//   - Priority-aware scheduling of outgoing data streams, honoring
//     subscriber priority, publisher priority and delivery order
//   - FETCH of already-published objects alongside live subscriptions
//   - Partial object delivery or whole-object reassembly, per session
//
// # Basic Usage
//
// To serve a track:
//
//	registry := moqt.NewTrackRegistry()
//	queue := moqt.NewOutgoingQueue(
//	    moqt.NewFullTrackName("clock", "seconds"),
//	    moqt.ForwardingPreferenceSubgroup)
//	registry.Add(queue)
//
//	session := moqt.NewSession(transport, moqt.SessionParameters{
//	    Perspective:       moqt.PerspectiveServer,
//	    UsingWebTransport: true,
//	    MaxSubscribeID:    16,
//	}, moqt.SessionCallbacks{}, registry)
//
//	queue.AddObject(payload, true)
//
// To consume one:
//
//	session.SubscribeCurrentGroup(
//	    moqt.NewFullTrackName("clock", "seconds"), visitor)
//
// # Threading Model
//
// A Session is single-threaded by construction: the transport delivers
// every event on one loop, and all Session methods must be called from that
// loop. The webtransportgo adapter provides a Post method to get onto it.
//
// # Core Components
//
//   - Session: the protocol state machine for one connection
//   - TrackPublisher: the contract a published track implements
//   - OutgoingQueue: a TrackPublisher that caches recent groups
//   - TrackRegistry: maps track names to publishers for incoming requests
//   - RemoteTrackVisitor: receives replies and objects for upstream tracks
//
// The wire protocol follows draft-ietf-moq-transport-07; see
// https://datatracker.ietf.org/doc/draft-ietf-moq-transport/ for the
// message definitions this package encodes.
package moqt
