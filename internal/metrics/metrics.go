// Package metrics implements Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ReassemblyActiveFlows tracks flows with fragments awaiting reassembly
	ReassemblyActiveFlows = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "netpacket_reassembly_active_flows",
			Help: "Number of flows with IP fragments awaiting reassembly",
		},
	)

	// ReassembledDatagramsTotal counts completed reassemblies
	ReassembledDatagramsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "netpacket_reassembled_datagrams_total",
			Help: "Total number of datagrams rebuilt from fragments",
		},
	)

	// FragmentsRejectedTotal counts fragments dropped before reassembly
	FragmentsRejectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "netpacket_fragments_rejected_total",
			Help: "Total number of fragments rejected during reassembly",
		},
		[]string{"reason"},
	)
)
