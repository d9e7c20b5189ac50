package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "rscgo"

// Categories of visible sets.
const (
	CategoryPlayers = "players"
	CategoryNpcs    = "npcs"
)

// Record kinds.
const (
	KindRemoved       = "removed"
	KindMoved         = "moved"
	KindFacingChanged = "facing_changed"
	KindAdded         = "added"
)

// Sync holds the view synchronization collectors. A nil *Sync is valid and
// records nothing.
type Sync struct {
	TickDuration   prometheus.Histogram
	TruncatedTicks prometheus.Counter
	PlayersDiffed  prometheus.Counter
	Records        *prometheus.CounterVec
	UpdatesSent    *prometheus.CounterVec
	VisibleMembers *prometheus.GaugeVec
	Connected      prometheus.Gauge
}

// NewSync creates the collectors and registers them on reg.
func NewSync(reg prometheus.Registerer) *Sync {
	m := &Sync{
		TickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tick_duration_seconds",
			Help:      "Wall time of one server tick.",
			Buckets:   []float64{.005, .01, .025, .05, .1, .2, .4, .64, 1},
		}),
		TruncatedTicks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "truncated_ticks_total",
			Help:      "Ticks whose visibility pass hit the tick budget.",
		}),
		PlayersDiffed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "players_diffed_total",
			Help:      "Player views brought up to date.",
		}),
		Records: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "view_records_total",
			Help:      "Delta records emitted, by category and kind.",
		}, []string{"category", "kind"}),
		UpdatesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "view_updates_sent_total",
			Help:      "Non-empty updates handed to clients, by category.",
		}, []string{"category"}),
		VisibleMembers: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "visible_set_members",
			Help:      "Sum of visible set sizes over all players after the last tick, by category.",
		}, []string{"category"}),
		Connected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connected_players",
			Help:      "Players currently in the world.",
		}),
	}
	reg.MustRegister(m.TickDuration, m.TruncatedTicks, m.PlayersDiffed,
		m.Records, m.UpdatesSent, m.VisibleMembers, m.Connected)
	return m
}

func (m *Sync) ObserveTick(d time.Duration) {
	if m == nil {
		return
	}
	m.TickDuration.Observe(d.Seconds())
}

func (m *Sync) Truncated() {
	if m == nil {
		return
	}
	m.TruncatedTicks.Inc()
}

func (m *Sync) Diffed(n int) {
	if m == nil {
		return
	}
	m.PlayersDiffed.Add(float64(n))
}

// AddRecords counts n records of one kind.
func (m *Sync) AddRecords(category, kind string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.Records.WithLabelValues(category, kind).Add(float64(n))
}

func (m *Sync) Sent(category string) {
	if m == nil {
		return
	}
	m.UpdatesSent.WithLabelValues(category).Inc()
}

func (m *Sync) SetVisible(category string, n int) {
	if m == nil {
		return
	}
	m.VisibleMembers.WithLabelValues(category).Set(float64(n))
}

func (m *Sync) SetConnected(n int) {
	if m == nil {
		return
	}
	m.Connected.Set(float64(n))
}

// Handler serves the registry in the Prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
