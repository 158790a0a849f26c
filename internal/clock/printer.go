package clock

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/quicmoq/moqt"
)

var _ moqt.RemoteTrackVisitor = (*Printer)(nil)

// Printer writes received clock objects to out, one line per object.
type Printer struct {
	out    io.Writer
	logger *slog.Logger
}

func NewPrinter(out io.Writer, logger *slog.Logger) *Printer {
	return &Printer{out: out, logger: logger}
}

func (p *Printer) OnReply(name moqt.FullTrackName, largest *moqt.FullSequence, err error) {
	if err != nil {
		p.logger.Error("subscribe rejected",
			"track", name.String(),
			"error", err)
		return
	}
	if largest != nil {
		p.logger.Info("subscribed",
			"track", name.String(),
			"largest_group", largest.Group,
			"largest_object", largest.Object)
		return
	}
	p.logger.Info("subscribed", "track", name.String())
}

func (p *Printer) OnCanAckObjects(moqt.ObjectAckFunc) {
	// The watcher does not negotiate OBJECT_ACK.
}

func (p *Printer) OnObjectFragment(name moqt.FullTrackName, sequence moqt.FullSequence, publisherPriority moqt.Priority, status moqt.ObjectStatus, payload []byte, endOfMessage bool) {
	if status != moqt.ObjectStatusNormal || len(payload) == 0 {
		return
	}
	fmt.Fprintf(p.out, "%d.%d %s\n", sequence.Group, sequence.Object, payload)
}

func (p *Printer) OnSubscribeDone(name moqt.FullTrackName, code moqt.SubscribeDoneCode, reason string) {
	p.logger.Info("subscription finished",
		"track", name.String(),
		"code", uint64(code),
		"reason", reason)
}
