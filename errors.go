package moqt

import (
	"errors"
	"fmt"

	"github.com/quicmoq/moqt/webtransport"
)

var (
	// ErrClosedSession indicates the session was already terminated.
	ErrClosedSession = errors.New("moqt: closed session")

	// ErrSessionNotEstablished indicates the setup handshake has not
	// completed yet.
	ErrSessionNotEstablished = errors.New("moqt: session not established")

	// ErrTrackDoesNotExist indicates no publisher serves the requested track.
	ErrTrackDoesNotExist = errors.New("moqt: track does not exist")

	// ErrDuplicateTrack indicates a track publisher is already registered
	// under the same name.
	ErrDuplicateTrack = errors.New("moqt: track already registered")

	// ErrDuplicateSubscribe indicates the track is already subscribed on
	// this session.
	ErrDuplicateSubscribe = errors.New("moqt: track is already subscribed")

	// ErrDuplicateAnnounce indicates an announcement for the namespace is
	// still waiting for a response.
	ErrDuplicateAnnounce = errors.New("moqt: announce already pending for namespace")

	// ErrSubscribeLimit indicates the peer's MAX_SUBSCRIBE_ID does not
	// admit another subscribe or fetch.
	ErrSubscribeLimit = errors.New("moqt: subscribe id limit reached")

	// ErrPeerNotPublisher indicates the peer declared a subscriber-only role.
	ErrPeerNotPublisher = errors.New("moqt: peer cannot publish")

	// ErrPeerNotSubscriber indicates the peer declared a publisher-only role.
	ErrPeerNotSubscriber = errors.New("moqt: peer cannot subscribe")
)

/*
 * Stream Reset Codes
 */
const (
	ResetCodeUnknown          webtransport.StreamErrorCode = 0x0
	ResetCodeSubscriptionGone webtransport.StreamErrorCode = 0x1
	ResetCodeTimedOut         webtransport.StreamErrorCode = 0x2
)

/*
 * Session Errors
 */
const (
	NoErrorCode                  SessionErrorCode = 0x0
	InternalSessionErrorCode     SessionErrorCode = 0x1
	UnauthorizedSessionErrorCode SessionErrorCode = 0x2
	ProtocolViolationErrorCode   SessionErrorCode = 0x3
	DuplicateTrackAliasErrorCode SessionErrorCode = 0x4
	ParameterLengthMismatchCode  SessionErrorCode = 0x5
	TooManySubscribesErrorCode   SessionErrorCode = 0x6
	GoAwayTimeoutErrorCode       SessionErrorCode = 0x10
)

var SessionErrorCodeTexts = map[SessionErrorCode]string{
	NoErrorCode:                  "moqt: no error",
	InternalSessionErrorCode:     "moqt: internal error",
	UnauthorizedSessionErrorCode: "moqt: unauthorized",
	ProtocolViolationErrorCode:   "moqt: protocol violation",
	DuplicateTrackAliasErrorCode: "moqt: duplicate track alias",
	ParameterLengthMismatchCode:  "moqt: parameter length mismatch",
	TooManySubscribesErrorCode:   "moqt: too many subscribes",
	GoAwayTimeoutErrorCode:       "moqt: goaway timeout",
}

type SessionErrorCode webtransport.SessionErrorCode

func (code SessionErrorCode) String() string {
	return SessionErrorCodeTexts[code]
}

// SessionError is the terminal status of a session. Remote reports whether
// the peer closed the session or the local endpoint did.
type SessionError struct {
	Code   SessionErrorCode
	Reason string
	Remote bool
}

func (err *SessionError) Error() string {
	side := "local"
	if err.Remote {
		side = "remote"
	}
	if err.Reason == "" {
		return fmt.Sprintf("%s (%s)", err.Code, side)
	}
	return fmt.Sprintf("%s (%s): %s", err.Code, side, err.Reason)
}

/*
 * Subscribe Errors
 */
const (
	InternalSubscribeErrorCode   SubscribeErrorCode = 0x0
	InvalidRangeErrorCode        SubscribeErrorCode = 0x1
	RetryTrackAliasErrorCode     SubscribeErrorCode = 0x2
	TrackDoesNotExistErrorCode   SubscribeErrorCode = 0x3
	UnauthorizedSubscribeErrCode SubscribeErrorCode = 0x4
	SubscribeTimeoutErrorCode    SubscribeErrorCode = 0x5
)

var SubscribeErrorCodeTexts = map[SubscribeErrorCode]string{
	InternalSubscribeErrorCode:   "moqt: internal error",
	InvalidRangeErrorCode:        "moqt: invalid range",
	RetryTrackAliasErrorCode:     "moqt: retry track alias",
	TrackDoesNotExistErrorCode:   "moqt: track does not exist",
	UnauthorizedSubscribeErrCode: "moqt: unauthorized",
	SubscribeTimeoutErrorCode:    "moqt: timeout",
}

type SubscribeErrorCode uint64

func (code SubscribeErrorCode) String() string {
	return SubscribeErrorCodeTexts[code]
}

// SubscribeRejectedError is delivered to a RemoteTrackVisitor when the
// publisher answers a SUBSCRIBE or FETCH with an error message.
type SubscribeRejectedError struct {
	Code   SubscribeErrorCode
	Reason string
}

func (err *SubscribeRejectedError) Error() string {
	if err.Reason == "" {
		return err.Code.String()
	}
	return fmt.Sprintf("%s: %s", err.Code, err.Reason)
}

/*
 * Subscribe Done Codes
 */
const (
	SubscribeDoneUnsubscribed      SubscribeDoneCode = 0x0
	SubscribeDoneInternalError     SubscribeDoneCode = 0x1
	SubscribeDoneUnauthorized      SubscribeDoneCode = 0x2
	SubscribeDoneTrackEnded        SubscribeDoneCode = 0x3
	SubscribeDoneSubscriptionEnded SubscribeDoneCode = 0x4
	SubscribeDoneGoingAway         SubscribeDoneCode = 0x5
	SubscribeDoneExpired           SubscribeDoneCode = 0x6
)

var SubscribeDoneCodeTexts = map[SubscribeDoneCode]string{
	SubscribeDoneUnsubscribed:      "moqt: unsubscribed",
	SubscribeDoneInternalError:     "moqt: internal error",
	SubscribeDoneUnauthorized:      "moqt: unauthorized",
	SubscribeDoneTrackEnded:        "moqt: track ended",
	SubscribeDoneSubscriptionEnded: "moqt: subscription ended",
	SubscribeDoneGoingAway:         "moqt: going away",
	SubscribeDoneExpired:           "moqt: expired",
}

type SubscribeDoneCode uint64

func (code SubscribeDoneCode) String() string {
	return SubscribeDoneCodeTexts[code]
}

/*
 * Announce Errors
 */
const (
	InternalAnnounceErrorCode     AnnounceErrorCode = 0x0
	UnauthorizedAnnounceErrorCode AnnounceErrorCode = 0x1
	AnnounceTimeoutErrorCode      AnnounceErrorCode = 0x2
	AnnounceNotSupportedErrorCode AnnounceErrorCode = 0x3
	UninterestedAnnounceErrorCode AnnounceErrorCode = 0x4
)

var AnnounceErrorCodeTexts = map[AnnounceErrorCode]string{
	InternalAnnounceErrorCode:     "moqt: internal error",
	UnauthorizedAnnounceErrorCode: "moqt: unauthorized",
	AnnounceTimeoutErrorCode:      "moqt: timeout",
	AnnounceNotSupportedErrorCode: "moqt: announce not supported",
	UninterestedAnnounceErrorCode: "moqt: uninterested",
}

type AnnounceErrorCode uint64

func (code AnnounceErrorCode) String() string {
	return AnnounceErrorCodeTexts[code]
}

// AnnounceRejectedError is passed to the announce callback when the peer
// answers an ANNOUNCE with ANNOUNCE_ERROR, and may be returned from the
// incoming-announce callback to reject a namespace.
type AnnounceRejectedError struct {
	Code   AnnounceErrorCode
	Reason string
}

func (err *AnnounceRejectedError) Error() string {
	if err.Reason == "" {
		return err.Code.String()
	}
	return fmt.Sprintf("%s: %s", err.Code, err.Reason)
}
