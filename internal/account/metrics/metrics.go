package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for the account context.
type Metrics struct {
	CacheHits       prometheus.Counter
	CacheMisses     prometheus.Counter
	AccountsCreated prometheus.Counter
}

// New creates and registers the account metrics on the default registry.
func New() *Metrics {
	return NewWith(prometheus.DefaultRegisterer)
}

// NewWith registers the account metrics on reg.
func NewWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		CacheHits: factory.NewCounter(prometheus.CounterOpts{
			Name: "krtbank_account_cache_hits_total",
			Help: "Account reads served from the view cache",
		}),
		CacheMisses: factory.NewCounter(prometheus.CounterOpts{
			Name: "krtbank_account_cache_misses_total",
			Help: "Account reads that fell through to the store",
		}),
		AccountsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "krtbank_accounts_created_total",
			Help: "Accounts opened",
		}),
	}
}

func (m *Metrics) IncCacheHit() {
	if m == nil {
		return
	}
	m.CacheHits.Inc()
}

func (m *Metrics) IncCacheMiss() {
	if m == nil {
		return
	}
	m.CacheMisses.Inc()
}

func (m *Metrics) IncAccountsCreated() {
	if m == nil {
		return
	}
	m.AccountsCreated.Inc()
}
