// Package metrics exposes prometheus counters for the protocol events
// the arbiter and requester emit. It is an ambient concern, not part
// of the protocol's correctness surface: a peer built with a nil
// *Registry keeps working, it simply reports nothing.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry groups the counters a single deployment's peers increment.
// Grounded on the prometheus/client_golang usage found across the
// example pack (yarpc-yarpc-go, songwen276-bsc-bp): a CounterVec
// labeled by peer id per event kind.
type Registry struct {
	RequestsSent *prometheus.CounterVec
	GrantsSent   *prometheus.CounterVec
	FailedSent   *prometheus.CounterVec
	InquireSent  *prometheus.CounterVec
	YieldSent    *prometheus.CounterVec
	ReleaseSent  *prometheus.CounterVec
	CSEntries    *prometheus.CounterVec
}

// NewRegistry builds a Registry against its own prometheus.Registerer
// so repeated construction in tests never collides with duplicate
// registration panics from the global default registry.
func NewRegistry() (*Registry, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	counter := func(name, help string) *prometheus.CounterVec {
		return factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "maekawa",
			Name:      name,
			Help:      help,
		}, []string{"peer"})
	}

	return &Registry{
		RequestsSent: counter("requests_sent_total", "REQUEST messages multicast by the requester role."),
		GrantsSent:   counter("grants_sent_total", "GRANT messages emitted by the arbiter role."),
		FailedSent:   counter("failed_sent_total", "FAILED messages emitted by the arbiter role."),
		InquireSent:  counter("inquire_sent_total", "INQUIRE messages emitted by the arbiter role."),
		YieldSent:    counter("yield_sent_total", "YIELD messages emitted by the requester role."),
		ReleaseSent:  counter("release_sent_total", "RELEASE messages multicast by the requester role."),
		CSEntries:    counter("cs_entries_total", "Critical section entries observed by the requester role."),
	}, reg
}

// Handler returns an http.Handler serving this registry's metrics in
// the Prometheus exposition format, suitable for mounting at
// "/metrics".
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
