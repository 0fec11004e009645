// metrics.go - In-process metrics for the resource-machine node
package main

import (
	"sync"
	"time"
)

// Metrics tracks node activity counters and proof-timing samples. Exposed
// as JSON on the admin endpoint.
type Metrics struct {
	mu sync.Mutex

	StatementsAccepted int64 `json:"statements_accepted"`
	StatementsRejected int64 `json:"statements_rejected"`
	DoubleSpendsSeen   int64 `json:"double_spends_seen"`
	RateLimited        int64 `json:"rate_limited"`
	LedgerSize         int64 `json:"ledger_size"`

	proofTimes []float64
}

// ProofTimingSummary is the aggregated view of proof generation latency.
type ProofTimingSummary struct {
	Count int     `json:"count"`
	Min   float64 `json:"min_seconds"`
	Max   float64 `json:"max_seconds"`
	Avg   float64 `json:"avg_seconds"`
}

func NewMetrics() *Metrics {
	return &Metrics{}
}

func (m *Metrics) RecordAccepted(ledgerSize int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.StatementsAccepted++
	m.LedgerSize = int64(ledgerSize)
}

func (m *Metrics) RecordRejected() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.StatementsRejected++
}

func (m *Metrics) RecordDoubleSpend() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DoubleSpendsSeen++
	m.StatementsRejected++
}

func (m *Metrics) RecordRateLimited() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RateLimited++
}

// RecordProofTime keeps the last 1000 samples.
func (m *Metrics) RecordProofTime(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.proofTimes = append(m.proofTimes, d.Seconds())
	if len(m.proofTimes) > 1000 {
		m.proofTimes = m.proofTimes[len(m.proofTimes)-1000:]
	}
}

// Snapshot returns a copy of the counters plus the timing summary.
func (m *Metrics) Snapshot() map[string]interface{} {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := map[string]interface{}{
		"statements_accepted": m.StatementsAccepted,
		"statements_rejected": m.StatementsRejected,
		"double_spends_seen":  m.DoubleSpendsSeen,
		"rate_limited":        m.RateLimited,
		"ledger_size":         m.LedgerSize,
	}

	if len(m.proofTimes) > 0 {
		s := ProofTimingSummary{
			Count: len(m.proofTimes),
			Min:   m.proofTimes[0],
			Max:   m.proofTimes[0],
		}
		var sum float64
		for _, v := range m.proofTimes {
			if v < s.Min {
				s.Min = v
			}
			if v > s.Max {
				s.Max = v
			}
			sum += v
		}
		s.Avg = sum / float64(s.Count)
		out["proof_times"] = s
	}
	return out
}
