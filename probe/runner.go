package probe

import (
	"context"
	"errors"
	"net"
	"time"

	"go.uber.org/zap"

	"github.com/metal-stack/dhcprobe/message"
)

// DefaultAttempts is the retry budget when none is configured: the
// initial send plus two resends.
const DefaultAttempts = 3

// DefaultTimeout is the per-attempt wait for a reply.
const DefaultTimeout = 3 * time.Second

// RetryPolicy bounds one transaction. Unlimited retries are not
// supported; Attempts caps the total number of sends.
type RetryPolicy struct {
	// Timeout is the wait per attempt before resending.
	Timeout time.Duration
	// Attempts is the total number of sends, DefaultAttempts when zero.
	Attempts int
	// NoRetry forces a single send regardless of Attempts.
	NoRetry bool
}

func (p RetryPolicy) attempts() int {
	if p.NoRetry {
		return 1
	}
	if p.Attempts < 1 {
		return DefaultAttempts
	}
	return p.Attempts
}

func (p RetryPolicy) timeout() time.Duration {
	if p.Timeout <= 0 {
		return DefaultTimeout
	}
	return p.Timeout
}

// wire is the conn surface the runner needs; *Conn implements it, tests
// substitute a fake.
type wire interface {
	Send(b []byte) error
	Recv(ctx context.Context, deadline time.Time) ([]byte, *net.UDPAddr, error)
	Close() error
}

// Reply is a decoded, correlated answer to one request.
type Reply struct {
	Msg    *message.Msg
	Source *net.UDPAddr
}

// Runner executes one logical request/reply exchange at a time over a
// conn it owns. It closes the conn when Run returns, whatever the
// outcome.
type Runner struct {
	log    *zap.SugaredLogger
	conn   wire
	policy RetryPolicy
}

// NewRunner takes ownership of conn.
func NewRunner(log *zap.SugaredLogger, conn wire, policy RetryPolicy) *Runner {
	return &Runner{log: log, conn: conn, policy: policy}
}

// Run encodes cfg, sends it and waits for a reply whose transaction id
// matches. Undecodable datagrams and foreign transaction ids are
// discarded without ending the wait. On a silent deadline the identical
// bytes are resent until the attempt budget is spent.
//
// Outcomes: a Reply, ErrTimeout, ErrCanceled (ctx), a *TransportError,
// or a *message.ConfigError before any I/O.
func (r *Runner) Run(ctx context.Context, cfg *message.Config) (*Reply, error) {
	defer r.conn.Close()
	return r.run(ctx, cfg)
}

// RunKeepOpen is Run without closing the conn, for callers chaining a
// second transaction over the same socket.
func (r *Runner) RunKeepOpen(ctx context.Context, cfg *message.Config) (*Reply, error) {
	return r.run(ctx, cfg)
}

// Close releases the conn. Only needed after RunKeepOpen; Run closes
// on its own.
func (r *Runner) Close() error {
	return r.conn.Close()
}

func (r *Runner) run(ctx context.Context, cfg *message.Config) (*Reply, error) {
	b, err := message.Encode(cfg)
	if err != nil {
		return nil, err
	}

	attempts := r.policy.attempts()
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			retriesTotal.Inc()
			r.log.Debugw("no reply, resending", "kind", cfg.Kind.String(), "xid", cfg.Xid, "attempt", attempt)
		}
		if err := r.conn.Send(b); err != nil {
			return nil, err
		}
		sendsTotal.Inc()
		r.log.Debugw("sent", "kind", cfg.Kind.String(), "xid", cfg.Xid, "bytes", len(b))

		reply, err := r.await(ctx, cfg)
		if errors.Is(err, ErrTimeout) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return reply, nil
	}
	return nil, ErrTimeout
}

func (r *Runner) await(ctx context.Context, cfg *message.Config) (*Reply, error) {
	deadline := time.Now().Add(r.policy.timeout())
	for {
		b, src, err := r.conn.Recv(ctx, deadline)
		if err != nil {
			return nil, err
		}
		msg, err := message.Decode(b, cfg.Family)
		if err != nil {
			// a malformed datagram on the wire must not abort the wait
			discardsTotal.Inc()
			r.log.Debugw("discarding undecodable datagram", "source", src.String(), "err", err)
			continue
		}
		if !msg.Matches(cfg) {
			discardsTotal.Inc()
			r.log.Debugw("discarding reply with foreign xid", "source", src.String(), "xid", msg.Xid(), "want", cfg.Xid)
			continue
		}
		repliesTotal.Inc()
		return &Reply{Msg: msg, Source: src}, nil
	}
}
