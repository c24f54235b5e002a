package infra

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"rsa-key-service/config"
	"rsa-key-service/internal/keygen"
)

// NewKeyGenerator は設定に従ってRSA鍵生成器を組み立てる。
// regがnilの場合はメトリクスを記録しない。
func NewKeyGenerator(cfg config.KeyGenConfig, reg prometheus.Registerer) (*keygen.Assembler, error) {
	var metrics *keygen.Metrics
	if reg != nil {
		m, err := keygen.NewMetrics(reg)
		if err != nil {
			return nil, fmt.Errorf("registering keygen metrics: %w", err)
		}
		metrics = m
	}

	finder := keygen.NewFinder(
		keygen.NewSampler(nil),
		keygen.NewMillerRabin(nil, cfg.MillerRabinRounds),
		metrics,
	)
	return keygen.NewAssembler(finder,
		keygen.WithMinBits(cfg.MinBits),
		keygen.WithWorkers(cfg.Workers),
		keygen.WithMetrics(metrics),
	), nil
}
