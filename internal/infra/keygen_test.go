package infra

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"rsa-key-service/config"
	"rsa-key-service/internal/domain"
)

func TestNewKeyGenerator_AppliesMinBits(t *testing.T) {
	gen, err := NewKeyGenerator(config.KeyGenConfig{
		MillerRabinRounds: 10,
		Workers:           2,
		MinBits:           3072,
	}, prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err = gen.GenerateKey(context.Background(), 2048, 3)
	if !errors.Is(err, domain.ErrKeySizeTooSmall) {
		t.Errorf("want ErrKeySizeTooSmall, got %v", err)
	}
}

func TestNewKeyGenerator_WithoutMetrics(t *testing.T) {
	gen, err := NewKeyGenerator(config.KeyGenConfig{MinBits: 2048}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := gen.ValidateParams(2048, 65537); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
