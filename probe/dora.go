package probe

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/metal-stack/dhcprobe/message"
)

// DoraState tracks where a single DORA invocation stands. It lives only
// for the duration of one Run call and is never reused.
type DoraState int

const (
	StateStart DoraState = iota
	StateAwaitingOffer
	StateAwaitingAck
	StateDone
	StateFailed
)

func (s DoraState) String() string {
	switch s {
	case StateStart:
		return "start"
	case StateAwaitingOffer:
		return "awaiting-offer"
	case StateAwaitingAck:
		return "awaiting-ack"
	case StateDone:
		return "done"
	default:
		return "failed"
	}
}

// DoraResult reports both legs of the exchange. Offer is set even when
// the sequence failed after it, so a NAK or a lost ACK can still be
// diagnosed.
type DoraResult struct {
	State DoraState
	Offer *Reply
	Ack   *Reply
}

// Dora chains a DISCOVER and a REQUEST transaction over one socket.
type Dora struct {
	log    *zap.SugaredLogger
	runner *Runner
}

// NewDora wraps runner; the runner's conn stays open across both legs
// and is closed when Run returns.
func NewDora(log *zap.SugaredLogger, runner *Runner) *Dora {
	return &Dora{log: log, runner: runner}
}

// Run sends the DISCOVER described by discover, synthesizes a REQUEST
// from the resulting OFFER and awaits the ACK. The REQUEST leg is never
// started without an OFFER, and a failed REQUEST leg does not restart
// the sequence.
func (d *Dora) Run(ctx context.Context, discover *message.Config) (*DoraResult, error) {
	res := &DoraResult{State: StateStart}
	defer d.runner.Close()

	res.State = StateAwaitingOffer
	offer, err := d.runner.RunKeepOpen(ctx, discover)
	if err != nil {
		res.State = StateFailed
		return res, fmt.Errorf("discover: %w", err)
	}
	res.Offer = offer
	d.log.Infow("offer received",
		"yiaddr", offer.Msg.YourIP().String(),
		"server", offer.Msg.ServerID().String(),
		"source", offer.Source.String(),
	)

	request, err := RequestFromOffer(discover, offer.Msg)
	if err != nil {
		// we built the discover ourselves, so a bad synthesized request
		// is a defect, not an input problem
		res.State = StateFailed
		return res, fmt.Errorf("synthesizing request from offer %s: %w", offer.Msg.Summary(), err)
	}

	res.State = StateAwaitingAck
	ack, err := d.runner.RunKeepOpen(ctx, request)
	if err != nil {
		res.State = StateFailed
		return res, fmt.Errorf("request: %w", err)
	}
	if ack.Msg.IsNak() {
		res.Ack = ack
		res.State = StateFailed
		return res, fmt.Errorf("request for %s: %w", request.ReqAddr, ErrNak)
	}
	res.Ack = ack
	res.State = StateDone
	return res, nil
}

// RequestFromOffer derives the REQUEST leg's config from the OFFER: the
// offered address becomes the requested-address option, the server
// identifier is echoed, chaddr and relay options are carried over. The
// new transaction gets a fresh xid.
func RequestFromOffer(discover *message.Config, offer *message.Msg) (*message.Config, error) {
	xid, err := message.RandomXid()
	if err != nil {
		return nil, err
	}
	req := discover.Clone()
	req.Kind = message.Request
	req.Xid = xid
	req.ReqAddr = offer.YourIP()
	req.YIAddr = offer.YourIP()
	req.ServerID = offer.ServerID()
	return req, nil
}
