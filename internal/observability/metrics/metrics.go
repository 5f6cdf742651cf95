// Package metrics exposes in-process counters and latency histograms for
// vault operations and the HTTP surface, rendered in Prometheus text
// exposition format.
package metrics

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	xerrors "AegisVault/internal/errors"
)

type opKey struct {
	op      string
	outcome string
}

type latencyKey struct {
	op string
}

type histogram struct {
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

type collector struct {
	mu      sync.Mutex
	ops     map[opKey]uint64
	latency map[latencyKey]*histogram
}

var vaultCollector = &collector{
	ops:     make(map[opKey]uint64),
	latency: make(map[latencyKey]*histogram),
}

// ObserveVaultOperation records one vault operation's outcome and latency.
// The outcome label is "ok" or the error code.
func ObserveVaultOperation(op string, err error, duration time.Duration) {
	outcome := "ok"
	if err != nil {
		outcome = string(xerrors.CodeOf(err))
	}
	vaultCollector.observe(op, outcome, duration)
}

func (c *collector) observe(op, outcome string, duration time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.ops[opKey{op: op, outcome: outcome}]++

	key := latencyKey{op: op}
	hist := c.latency[key]
	if hist == nil {
		hist = newHistogram()
		c.latency[key] = hist
	}
	hist.observe(duration.Seconds())
}

func newHistogram() *histogram {
	buckets := []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30, 300}
	return &histogram{
		buckets: buckets,
		counts:  make([]uint64, len(buckets)),
	}
}

func (h *histogram) observe(value float64) {
	h.count++
	h.sum += value
	for idx, bound := range h.buckets {
		if value <= bound {
			for i := idx; i < len(h.counts); i++ {
				h.counts[i]++
			}
			break
		}
	}
}

// Handler serves the collected metrics.
func Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		fmt.Fprint(w, vaultCollector.render())
	})
}

func (c *collector) render() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	var b strings.Builder

	b.WriteString("# HELP aegis_vault_operations_total Vault operations by outcome.\n")
	b.WriteString("# TYPE aegis_vault_operations_total counter\n")
	opKeys := make([]opKey, 0, len(c.ops))
	for key := range c.ops {
		opKeys = append(opKeys, key)
	}
	sort.Slice(opKeys, func(i, j int) bool {
		if opKeys[i].op != opKeys[j].op {
			return opKeys[i].op < opKeys[j].op
		}
		return opKeys[i].outcome < opKeys[j].outcome
	})
	for _, key := range opKeys {
		fmt.Fprintf(&b, "aegis_vault_operations_total{op=%q,outcome=%q} %d\n",
			key.op, key.outcome, c.ops[key])
	}

	b.WriteString("# HELP aegis_vault_operation_seconds Vault operation latency.\n")
	b.WriteString("# TYPE aegis_vault_operation_seconds histogram\n")
	latKeys := make([]latencyKey, 0, len(c.latency))
	for key := range c.latency {
		latKeys = append(latKeys, key)
	}
	sort.Slice(latKeys, func(i, j int) bool { return latKeys[i].op < latKeys[j].op })
	for _, key := range latKeys {
		hist := c.latency[key]
		for i, bound := range hist.buckets {
			fmt.Fprintf(&b, "aegis_vault_operation_seconds_bucket{op=%q,le=\"%g\"} %d\n",
				key.op, bound, hist.counts[i])
		}
		fmt.Fprintf(&b, "aegis_vault_operation_seconds_bucket{op=%q,le=\"+Inf\"} %d\n", key.op, hist.count)
		fmt.Fprintf(&b, "aegis_vault_operation_seconds_sum{op=%q} %g\n", key.op, hist.sum)
		fmt.Fprintf(&b, "aegis_vault_operation_seconds_count{op=%q} %d\n", key.op, hist.count)
	}

	return b.String()
}
