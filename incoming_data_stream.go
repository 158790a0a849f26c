package moqt

import (
	"fmt"

	"github.com/quicmoq/moqt/internal/message"
	"github.com/quicmoq/moqt/webtransport"
)

// incomingDataStream reads one unidirectional stream from the peer and
// forwards its objects to the visitor of the subscription or fetch that
// owns them. Objects arrive back to back, so one partial-object buffer per
// stream is enough.
type incomingDataStream struct {
	session *Session
	stream  webtransport.Stream
	parser  *message.DataStreamParser

	partialObject []byte
}

var (
	_ webtransport.StreamVisitor = (*incomingDataStream)(nil)
	_ message.DataParserVisitor  = (*incomingDataStream)(nil)
)

func newIncomingDataStream(s *Session, stream webtransport.Stream) *incomingDataStream {
	ds := &incomingDataStream{session: s, stream: stream}
	ds.parser = message.NewDataStreamParser(stream, ds)
	stream.SetVisitor(ds)
	return ds
}

func (ds *incomingDataStream) OnCanRead() {
	ds.parser.ReadAllData()
}

func (ds *incomingDataStream) OnCanWrite() {}

func (ds *incomingDataStream) OnResetStreamReceived(errorCode webtransport.StreamErrorCode) {
	ds.partialObject = nil
}

func (ds *incomingDataStream) OnStopSendingReceived(errorCode webtransport.StreamErrorCode) {}

func (ds *incomingDataStream) OnDiscarded() {}

func (ds *incomingDataStream) OnObjectMessage(header message.ObjectHeader, payload []byte, endOfMessage bool) {
	s := ds.session
	streamType, ok := ds.parser.StreamType()
	if !ok {
		return
	}

	var track *remoteTrack
	if streamType == message.StreamTypeFetch {
		// Fetch streams carry the subscribe ID in the alias position.
		track = s.upstreamByID[header.TrackAlias]
		if track != nil && !track.isFetch {
			track = nil
		}
	} else {
		track = s.upstreamByAlias[header.TrackAlias]
	}
	if track == nil {
		s.logger.Debug("data for unknown track", "track_alias", header.TrackAlias)
		ds.stream.SendStopSending(ResetCodeSubscriptionGone)
		return
	}
	if !track.CheckDataStreamType(streamType) {
		s.Error(ProtocolViolationErrorCode, "Received object for a track with a different stream type")
		return
	}
	track.OnObjectOrOK()

	sequence := FullSequence{Group: header.Group, Subgroup: header.Subgroup, Object: header.ObjectID}
	if !track.InWindow(sequence) {
		return
	}

	if !s.parameters.DeliverPartialObjects {
		if !endOfMessage {
			if ds.partialObject == nil {
				ds.partialObject = make([]byte, 0, header.PayloadLength)
			}
			ds.partialObject = append(ds.partialObject, payload...)
			return
		}
		if len(ds.partialObject) > 0 {
			payload = append(ds.partialObject, payload...)
			ds.partialObject = nil
		}
	}
	if endOfMessage {
		s.metrics.ObjectReceived(len(payload))
	}
	if track.visitor != nil {
		track.visitor.OnObjectFragment(track.name, sequence,
			Priority(header.PublisherPriority), header.Status, payload, endOfMessage)
	}
}

func (ds *incomingDataStream) OnParsingError(code message.ParseErrorCode, reason string) {
	ds.session.Error(SessionErrorCode(code), fmt.Sprintf("Parse error: %s", reason))
}
