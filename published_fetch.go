package moqt

import (
	"github.com/quicmoq/moqt/internal/message"
	"github.com/quicmoq/moqt/webtransport"
)

// publishedFetch is one FETCH the session is serving. The whole answer goes
// out on a single unidirectional stream; until that stream can be opened the
// fetch sits in the session's cross-subscription queue.
type publishedFetch struct {
	fetchID           uint64
	session           *Session
	task              FetchTask
	publisherPriority Priority
	sendOrder         webtransport.SendOrder
}

// fetchStream drains a fetch task onto its stream.
type fetchStream struct {
	session       *Session
	stream        webtransport.Stream
	fetchID       uint64
	headerWritten bool

	liveness *livenessToken
}

var _ webtransport.StreamVisitor = (*fetchStream)(nil)

func newFetchStream(s *Session, stream webtransport.Stream, fetch *publishedFetch) *fetchStream {
	fs := &fetchStream{
		session:  s,
		stream:   stream,
		fetchID:  fetch.fetchID,
		liveness: s.liveness,
	}
	stream.SetVisitor(fs)
	stream.SetPriority(webtransport.StreamPriority{
		SendGroupID: sendGroupID,
		SendOrder:   fetch.sendOrder,
	})
	return fs
}

func (fs *fetchStream) OnCanWrite() {
	fetch, ok := fs.session.incomingFetches[fs.fetchID]
	if !ok {
		fs.stream.ResetWithUserCode(ResetCodeSubscriptionGone)
		return
	}
	for fs.stream.CanWrite() {
		var object PublishedObject
		switch fetch.task.GetNextObject(&object) {
		case FetchSuccess:
			if object.Status == ObjectStatusObjectDoesNotExist {
				// Holes in the range are skipped rather than serialized.
				continue
			}
			if err := fs.writeObject(fetch, object); err != nil {
				fs.session.Error(InternalSessionErrorCode, "Data stream write error")
				return
			}
		case FetchPending:
			return
		case FetchEOF:
			fs.stream.SendFin()
			delete(fs.session.incomingFetches, fs.fetchID)
			return
		case FetchError:
			fs.session.logger.Warn("fetch failed",
				"subscribe_id", fs.fetchID, "error", fetch.task.GetStatus())
			fs.stream.ResetWithUserCode(ResetCodeUnknown)
			delete(fs.session.incomingFetches, fs.fetchID)
			return
		}
	}
}

func (fs *fetchStream) writeObject(fetch *publishedFetch, object PublishedObject) error {
	header := message.ObjectHeader{
		// Fetch streams carry the subscribe ID in the alias position.
		TrackAlias:        fs.fetchID,
		Group:             object.Sequence.Group,
		Subgroup:          object.Sequence.Subgroup,
		ObjectID:          object.Sequence.Object,
		PublisherPriority: uint8(fetch.publisherPriority),
		Status:            object.Status,
		PayloadLength:     uint64(len(object.Payload)),
	}
	data := message.SerializeObjectHeader(header, message.StreamTypeFetch, !fs.headerWritten)
	if err := fs.stream.Writev([][]byte{data, object.Payload}, false); err != nil {
		return err
	}
	fs.headerWritten = true
	fs.session.metrics.ObjectSent(len(object.Payload))
	return nil
}

func (fs *fetchStream) OnCanRead() {}

func (fs *fetchStream) OnResetStreamReceived(errorCode webtransport.StreamErrorCode) {}

func (fs *fetchStream) OnStopSendingReceived(errorCode webtransport.StreamErrorCode) {
	fs.stream.ResetWithUserCode(ResetCodeSubscriptionGone)
	delete(fs.session.incomingFetches, fs.fetchID)
}

func (fs *fetchStream) OnDiscarded() {
	if fs.liveness.dead {
		return
	}
	delete(fs.session.incomingFetches, fs.fetchID)
}
