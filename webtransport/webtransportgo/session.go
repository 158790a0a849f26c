// Package webtransportgo runs the transport contract of package webtransport
// on top of github.com/quic-go/webtransport-go. Each session owns one event
// loop goroutine; pump goroutines turn the library's blocking calls into
// posted tasks so every visitor callback stays serialized.
package webtransportgo

import (
	"errors"
	"sync"

	quicgo_webtransportgo "github.com/quic-go/webtransport-go"

	"github.com/quicmoq/moqt/webtransport"
)

var errSessionClosed = errors.New("webtransportgo: session closed")

var _ webtransport.Session = (*Session)(nil)

// Session adapts one webtransport-go session. Serve must run on exactly one
// goroutine; that goroutine becomes the event loop, and every Session method
// except Post must be called from it.
type Session struct {
	sess    *quicgo_webtransportgo.Session
	visitor webtransport.SessionVisitor

	tasks taskQueue

	// Loop-confined.
	streams       map[webtransport.StreamID]*stream
	finished      bool
	closeNotified bool
	bidiWaiting   bool
	uniWaiting    bool
	preopenedBidi quicgo_webtransportgo.Stream
	preopenedUni  quicgo_webtransportgo.SendStream

	// Streams the accept pumps delivered but the visitor has not claimed yet.
	pendingMu   sync.Mutex
	pendingBidi []quicgo_webtransportgo.Stream
	pendingUni  []quicgo_webtransportgo.ReceiveStream
}

func New(sess *quicgo_webtransportgo.Session) *Session {
	return &Session{
		sess:    sess,
		tasks:   newTaskQueue(),
		streams: make(map[webtransport.StreamID]*stream),
	}
}

func (s *Session) SetVisitor(visitor webtransport.SessionVisitor) {
	s.visitor = visitor
}

// Serve runs the event loop until the session finishes. The visitor must be
// installed first; OnSessionReady is the first callback it receives.
func (s *Session) Serve() {
	go s.acceptBidiPump()
	go s.acceptUniPump()
	go s.datagramPump()
	s.tasks.push(func() { s.visitor.OnSessionReady() })
	for !s.finished {
		for _, task := range s.tasks.wait() {
			task()
		}
	}
}

// Post schedules task on the event loop. It is safe to call from any
// goroutine. Tasks posted after the session finishes never run.
func (s *Session) Post(task func()) {
	s.tasks.push(task)
}

/*
 * Pumps
 */

func (s *Session) acceptBidiPump() {
	for {
		raw, err := s.sess.AcceptStream(s.sess.Context())
		if err != nil {
			s.tasks.push(func() { s.finish(err) })
			return
		}
		s.pendingMu.Lock()
		s.pendingBidi = append(s.pendingBidi, raw)
		s.pendingMu.Unlock()
		s.tasks.push(func() {
			if !s.finished {
				s.visitor.OnIncomingBidirectionalStreamAvailable()
			}
		})
	}
}

func (s *Session) acceptUniPump() {
	for {
		raw, err := s.sess.AcceptUniStream(s.sess.Context())
		if err != nil {
			s.tasks.push(func() { s.finish(err) })
			return
		}
		s.pendingMu.Lock()
		s.pendingUni = append(s.pendingUni, raw)
		s.pendingMu.Unlock()
		s.tasks.push(func() {
			if !s.finished {
				s.visitor.OnIncomingUnidirectionalStreamAvailable()
			}
		})
	}
}

func (s *Session) datagramPump() {
	for {
		data, err := s.sess.ReceiveDatagram(s.sess.Context())
		if err != nil {
			s.tasks.push(func() { s.finish(err) })
			return
		}
		s.tasks.push(func() {
			if !s.finished {
				s.visitor.OnDatagramReceived(data)
			}
		})
	}
}

/*
 * Opening and accepting streams
 */

func (s *Session) OpenOutgoingBidirectionalStream() webtransport.Stream {
	raw := s.preopenedBidi
	s.preopenedBidi = nil
	if raw == nil {
		var err error
		raw, err = s.sess.OpenStream()
		if err != nil {
			s.waitForBidi()
			return nil
		}
	}
	return s.wrapStream(webtransport.StreamID(raw.StreamID()), raw, raw)
}

func (s *Session) OpenOutgoingUnidirectionalStream() webtransport.Stream {
	raw := s.preopenedUni
	s.preopenedUni = nil
	if raw == nil {
		var err error
		raw, err = s.sess.OpenUniStream()
		if err != nil {
			s.waitForUni()
			return nil
		}
	}
	return s.wrapStream(webtransport.StreamID(raw.StreamID()), nil, raw)
}

func (s *Session) AcceptIncomingBidirectionalStream() webtransport.Stream {
	s.pendingMu.Lock()
	if len(s.pendingBidi) == 0 {
		s.pendingMu.Unlock()
		return nil
	}
	raw := s.pendingBidi[0]
	s.pendingBidi = s.pendingBidi[1:]
	s.pendingMu.Unlock()
	return s.wrapStream(webtransport.StreamID(raw.StreamID()), raw, raw)
}

func (s *Session) AcceptIncomingUnidirectionalStream() webtransport.Stream {
	s.pendingMu.Lock()
	if len(s.pendingUni) == 0 {
		s.pendingMu.Unlock()
		return nil
	}
	raw := s.pendingUni[0]
	s.pendingUni = s.pendingUni[1:]
	s.pendingMu.Unlock()
	return s.wrapStream(webtransport.StreamID(raw.StreamID()), raw, nil)
}

func (s *Session) GetStreamByID(id webtransport.StreamID) webtransport.Stream {
	st, ok := s.streams[id]
	if !ok {
		return nil
	}
	return st
}

// CanOpenNextOutgoingBidirectionalStream probes flow control by opening the
// stream eagerly and stashing it for the next Open call.
func (s *Session) CanOpenNextOutgoingBidirectionalStream() bool {
	if s.preopenedBidi != nil {
		return true
	}
	raw, err := s.sess.OpenStream()
	if err != nil {
		s.waitForBidi()
		return false
	}
	s.preopenedBidi = raw
	return true
}

func (s *Session) CanOpenNextOutgoingUnidirectionalStream() bool {
	if s.preopenedUni != nil {
		return true
	}
	raw, err := s.sess.OpenUniStream()
	if err != nil {
		s.waitForUni()
		return false
	}
	s.preopenedUni = raw
	return true
}

// waitForBidi arranges a single OnCanCreateNewOutgoingBidirectionalStream
// callback once the peer raises the stream limit.
func (s *Session) waitForBidi() {
	if s.bidiWaiting || s.finished {
		return
	}
	s.bidiWaiting = true
	go func() {
		raw, err := s.sess.OpenStreamSync(s.sess.Context())
		s.tasks.push(func() {
			s.bidiWaiting = false
			if err != nil || s.finished {
				return
			}
			s.preopenedBidi = raw
			s.visitor.OnCanCreateNewOutgoingBidirectionalStream()
		})
	}()
}

func (s *Session) waitForUni() {
	if s.uniWaiting || s.finished {
		return
	}
	s.uniWaiting = true
	go func() {
		raw, err := s.sess.OpenUniStreamSync(s.sess.Context())
		s.tasks.push(func() {
			s.uniWaiting = false
			if err != nil || s.finished {
				return
			}
			s.preopenedUni = raw
			s.visitor.OnCanCreateNewOutgoingUnidirectionalStream()
		})
	}()
}

func (s *Session) wrapStream(id webtransport.StreamID, reader readHalf, writer writeHalf) *stream {
	st := newStream(s, id, reader, writer)
	s.streams[id] = st
	return st
}

/*
 * Datagrams and teardown
 */

func (s *Session) SendOrQueueDatagram(data []byte) error {
	return s.sess.SendDatagram(data)
}

func (s *Session) CloseSession(code webtransport.SessionErrorCode, reason string) error {
	err := s.sess.CloseWithError(quicgo_webtransportgo.SessionErrorCode(code), reason)
	s.finishWith(code, reason)
	return err
}

func (s *Session) finish(err error) {
	code, reason := sessionCloseDetails(err)
	s.finishWith(code, reason)
}

// finishWith delivers OnSessionClosed once and stops the loop after the
// current task batch.
func (s *Session) finishWith(code webtransport.SessionErrorCode, reason string) {
	if s.finished {
		return
	}
	s.finished = true
	for _, st := range s.streams {
		st.shutdown()
	}
	if !s.closeNotified {
		s.closeNotified = true
		s.visitor.OnSessionClosed(code, reason)
	}
}

func sessionCloseDetails(err error) (webtransport.SessionErrorCode, string) {
	var sessErr *quicgo_webtransportgo.SessionError
	if errors.As(err, &sessErr) {
		return webtransport.SessionErrorCode(sessErr.ErrorCode), sessErr.Message
	}
	if err != nil {
		return 0, err.Error()
	}
	return 0, ""
}

/*
 * Task queue
 */

type taskQueue struct {
	mu    sync.Mutex
	queue []func()
	wake  chan struct{}
}

func newTaskQueue() taskQueue {
	return taskQueue{wake: make(chan struct{}, 1)}
}

func (q *taskQueue) push(task func()) {
	q.mu.Lock()
	q.queue = append(q.queue, task)
	q.mu.Unlock()
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// wait blocks until at least one task is queued, then drains the queue.
func (q *taskQueue) wait() []func() {
	for {
		q.mu.Lock()
		batch := q.queue
		q.queue = nil
		q.mu.Unlock()
		if len(batch) > 0 {
			return batch
		}
		<-q.wake
	}
}
