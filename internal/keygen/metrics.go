package keygen

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics は鍵生成パイプラインのPrometheusメトリクス。
// nilのMetricsは何も記録しない。
type Metrics struct {
	candidates     *prometheus.CounterVec
	pairRejections *prometheus.CounterVec
	duration       prometheus.Histogram
}

// NewMetrics はメトリクスを生成し reg に登録する。
// 既に登録済みのコレクタがあればそれを再利用する。
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		candidates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "keygen_prime_candidates_total",
			Help: "Prime candidates examined, by outcome",
		}, []string{"result"}), // result: small_factor|composite|prime
		pairRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "keygen_pair_rejections_total",
			Help: "Prime pairs rejected during key assembly, by reason",
		}, []string{"reason"}), // reason: too_close|not_coprime
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "keygen_generation_duration_seconds",
			Help:    "Time spent generating a complete RSA key",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		}),
	}

	var err error
	if m.candidates, err = register(reg, m.candidates); err != nil {
		return nil, err
	}
	if m.pairRejections, err = register(reg, m.pairRejections); err != nil {
		return nil, err
	}
	if m.duration, err = register(reg, m.duration); err != nil {
		return nil, err
	}
	return m, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

func (m *Metrics) candidate(result string) {
	if m == nil {
		return
	}
	m.candidates.WithLabelValues(result).Inc()
}

func (m *Metrics) pairRejected(reason string) {
	if m == nil {
		return
	}
	m.pairRejections.WithLabelValues(reason).Inc()
}

func (m *Metrics) observeDuration(seconds float64) {
	if m == nil {
		return
	}
	m.duration.Observe(seconds)
}
