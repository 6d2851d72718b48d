package probe

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Exchange counters, mostly interesting for long-running script loops
// exposed via --metrics-addr.
var (
	sendsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dhcprobe_sends_total",
		Help: "Requests put on the wire, including resends.",
	})
	retriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dhcprobe_retries_total",
		Help: "Resends after a silent per-attempt deadline.",
	})
	repliesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dhcprobe_replies_total",
		Help: "Replies correlated to a request by transaction id.",
	})
	discardsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dhcprobe_discards_total",
		Help: "Datagrams dropped for decode failure or foreign transaction id.",
	})
)
