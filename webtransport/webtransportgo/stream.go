package webtransportgo

import (
	"errors"
	"io"
	"sync"

	quicgo_webtransportgo "github.com/quic-go/webtransport-go"

	"github.com/quicmoq/moqt/webtransport"
)

// writeBufferLimit is the buffered-bytes level at which CanWrite turns false.
const writeBufferLimit = 64 << 10

var (
	errStreamFinished = errors.New("webtransportgo: stream already finished")
	errReadOnlyStream = errors.New("webtransportgo: stream is read-only")
)

// Halves of a webtransport-go stream. Bidirectional streams satisfy both.
type readHalf interface {
	Read(p []byte) (int, error)
	CancelRead(code quicgo_webtransportgo.StreamErrorCode)
}

type writeHalf interface {
	Write(p []byte) (int, error)
	Close() error
	CancelWrite(code quicgo_webtransportgo.StreamErrorCode)
}

var _ webtransport.Stream = (*stream)(nil)

// stream bridges the blocking read and write calls of webtransport-go onto
// the session's event loop. The visitor and priority fields are
// loop-confined; everything guarded by mu is shared with the pumps.
type stream struct {
	session *Session
	id      webtransport.StreamID
	reader  readHalf
	writer  writeHalf

	visitor   webtransport.StreamVisitor
	priority  webtransport.StreamPriority
	discarded bool

	mu           sync.Mutex
	readBuf      []byte
	readFin      bool
	finDelivered bool
	readDone     bool
	writeBuf     []byte
	finQueued    bool
	resetSent    bool
	wantCanWrite bool
	writeErr     error
	writeDone    bool
	writeCond    *sync.Cond
}

func newStream(session *Session, id webtransport.StreamID, reader readHalf, writer writeHalf) *stream {
	st := &stream{
		session: session,
		id:      id,
		reader:  reader,
		writer:  writer,
	}
	st.writeCond = sync.NewCond(&st.mu)
	if reader != nil {
		go st.readPump()
	} else {
		st.readDone = true
	}
	if writer != nil {
		go st.writePump()
	} else {
		st.writeDone = true
	}
	return st
}

/*
 * Pumps
 */

func (st *stream) readPump() {
	buf := make([]byte, 4096)
	for {
		n, err := st.reader.Read(buf)
		if n > 0 {
			st.mu.Lock()
			st.readBuf = append(st.readBuf, buf[:n]...)
			st.mu.Unlock()
			st.session.tasks.push(st.notifyReadable)
		}
		if err == nil {
			continue
		}
		var streamErr *quicgo_webtransportgo.StreamError
		switch {
		case errors.Is(err, io.EOF):
			st.mu.Lock()
			st.readFin = true
			st.mu.Unlock()
			st.session.tasks.push(st.notifyReadable)
		case errors.As(err, &streamErr):
			code := webtransport.StreamErrorCode(streamErr.ErrorCode)
			st.session.tasks.push(func() { st.notifyReset(code) })
		}
		st.mu.Lock()
		st.readDone = true
		st.mu.Unlock()
		st.maybeDiscard()
		return
	}
}

func (st *stream) writePump() {
	st.mu.Lock()
	for {
		for len(st.writeBuf) == 0 && !st.finQueued && st.writeErr == nil && !st.resetSent {
			st.writeCond.Wait()
		}
		if st.writeErr != nil || st.resetSent {
			break
		}
		if len(st.writeBuf) == 0 {
			// Only the FIN is left.
			st.mu.Unlock()
			err := st.writer.Close()
			st.mu.Lock()
			if err != nil && st.writeErr == nil {
				st.writeErr = err
			}
			break
		}
		chunk := st.writeBuf
		st.writeBuf = nil
		st.mu.Unlock()
		_, err := st.writer.Write(chunk)
		st.mu.Lock()
		if err != nil {
			if st.writeErr == nil {
				st.writeErr = err
			}
			var streamErr *quicgo_webtransportgo.StreamError
			if errors.As(err, &streamErr) {
				code := webtransport.StreamErrorCode(streamErr.ErrorCode)
				st.session.tasks.push(func() { st.notifyStopSending(code) })
			}
			break
		}
		if st.wantCanWrite && len(st.writeBuf) < writeBufferLimit {
			st.wantCanWrite = false
			st.session.tasks.push(st.notifyWritable)
		}
	}
	st.writeDone = true
	st.mu.Unlock()
	st.maybeDiscard()
}

// maybeDiscard delivers OnDiscarded once both pumps have terminated. Each
// pump posts its final notification before setting its done flag, so the
// discard task always runs last.
func (st *stream) maybeDiscard() {
	st.mu.Lock()
	done := st.readDone && st.writeDone
	st.mu.Unlock()
	if !done {
		return
	}
	st.session.tasks.push(func() {
		if st.discarded || st.session.finished {
			return
		}
		st.discarded = true
		delete(st.session.streams, st.id)
		if st.visitor != nil {
			st.visitor.OnDiscarded()
		}
	})
}

func (st *stream) notifyReadable() {
	if st.discarded || st.session.finished || st.visitor == nil {
		return
	}
	st.visitor.OnCanRead()
}

func (st *stream) notifyWritable() {
	if st.discarded || st.session.finished || st.visitor == nil {
		return
	}
	st.visitor.OnCanWrite()
}

func (st *stream) notifyReset(code webtransport.StreamErrorCode) {
	if st.discarded || st.session.finished || st.visitor == nil {
		return
	}
	st.visitor.OnResetStreamReceived(code)
}

func (st *stream) notifyStopSending(code webtransport.StreamErrorCode) {
	if st.discarded || st.session.finished || st.visitor == nil {
		return
	}
	st.visitor.OnStopSendingReceived(code)
}

// shutdown releases the write pump when the session dies.
func (st *stream) shutdown() {
	st.mu.Lock()
	if st.writeErr == nil {
		st.writeErr = errSessionClosed
	}
	st.writeCond.Broadcast()
	st.mu.Unlock()
}

/*
 * webtransport.Stream
 */

func (st *stream) StreamID() webtransport.StreamID {
	return st.id
}

func (st *stream) Read(p []byte) (int, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	n := copy(p, st.readBuf)
	st.readBuf = st.readBuf[n:]
	if len(st.readBuf) == 0 {
		st.readBuf = nil
	}
	fin := false
	if len(st.readBuf) == 0 && st.readFin && !st.finDelivered {
		st.finDelivered = true
		fin = true
	}
	return n, fin
}

func (st *stream) ReadableBytes() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.readBuf)
}

func (st *stream) CanWrite() bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.writer == nil || st.writeErr != nil || st.finQueued || st.resetSent {
		return false
	}
	if len(st.writeBuf) >= writeBufferLimit {
		st.wantCanWrite = true
		return false
	}
	return true
}

func (st *stream) Writev(data [][]byte, fin bool) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.writer == nil {
		return errReadOnlyStream
	}
	if st.writeErr != nil {
		return st.writeErr
	}
	if st.finQueued || st.resetSent {
		return errStreamFinished
	}
	for _, chunk := range data {
		st.writeBuf = append(st.writeBuf, chunk...)
	}
	if fin {
		st.finQueued = true
	}
	st.writeCond.Signal()
	return nil
}

func (st *stream) SendFin() bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.writer == nil || st.writeErr != nil || st.finQueued || st.resetSent {
		return false
	}
	st.finQueued = true
	st.writeCond.Signal()
	return true
}

func (st *stream) ResetWithUserCode(code webtransport.StreamErrorCode) {
	st.mu.Lock()
	if st.writer == nil || st.resetSent {
		st.mu.Unlock()
		return
	}
	st.resetSent = true
	st.writeBuf = nil
	st.writeCond.Signal()
	st.mu.Unlock()
	st.writer.CancelWrite(quicgo_webtransportgo.StreamErrorCode(code))
}

func (st *stream) SendStopSending(code webtransport.StreamErrorCode) {
	if st.reader == nil {
		return
	}
	st.reader.CancelRead(quicgo_webtransportgo.StreamErrorCode(code))
}

// SetPriority records the scheduling decision. quic-go does not expose
// per-stream send ordering, so the value only affects what Visitor code can
// observe.
func (st *stream) SetPriority(priority webtransport.StreamPriority) {
	st.priority = priority
}

func (st *stream) SetVisitor(visitor webtransport.StreamVisitor) {
	st.visitor = visitor
}

func (st *stream) Visitor() webtransport.StreamVisitor {
	return st.visitor
}
