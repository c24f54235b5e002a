package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{"PORT", "KEYGEN_BITS", "KEYGEN_PUBLIC_EXPONENT", "KEYGEN_TIMEOUT", "OTEL_ENABLED", "PUBLIC_KEY_CACHE_TTL"} {
		t.Setenv(k, "")
	}

	cfg := Load()
	if cfg.Port != "8080" {
		t.Errorf("want port 8080, got %s", cfg.Port)
	}
	if cfg.KeyGen.Bits != 2048 {
		t.Errorf("want bits 2048, got %d", cfg.KeyGen.Bits)
	}
	if cfg.KeyGen.PublicExponent != 3 {
		t.Errorf("want public exponent 3, got %d", cfg.KeyGen.PublicExponent)
	}
	if cfg.KeyGen.Timeout != 2*time.Minute {
		t.Errorf("want timeout 2m, got %s", cfg.KeyGen.Timeout)
	}
	if cfg.OtelEnabled {
		t.Error("want otel disabled by default")
	}
	if cfg.PublicKeyCacheTTL != 5*time.Minute {
		t.Errorf("want public key cache ttl 5m, got %s", cfg.PublicKeyCacheTTL)
	}
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("KEYGEN_BITS", "4096")
	t.Setenv("KEYGEN_PUBLIC_EXPONENT", "65537")
	t.Setenv("KEYGEN_WORKERS", "4")
	t.Setenv("KEYGEN_TIMEOUT", "30s")
	t.Setenv("OTEL_ENABLED", "true")
	t.Setenv("OTEL_SAMPLING_RATE", "0.25")

	cfg := Load()
	if cfg.KeyGen.Bits != 4096 {
		t.Errorf("want bits 4096, got %d", cfg.KeyGen.Bits)
	}
	if cfg.KeyGen.PublicExponent != 65537 {
		t.Errorf("want public exponent 65537, got %d", cfg.KeyGen.PublicExponent)
	}
	if cfg.KeyGen.Workers != 4 {
		t.Errorf("want workers 4, got %d", cfg.KeyGen.Workers)
	}
	if cfg.KeyGen.Timeout != 30*time.Second {
		t.Errorf("want timeout 30s, got %s", cfg.KeyGen.Timeout)
	}
	if !cfg.OtelEnabled || cfg.OtelSamplingRate != 0.25 {
		t.Errorf("want otel enabled at 0.25, got %v at %v", cfg.OtelEnabled, cfg.OtelSamplingRate)
	}
}

func TestLoad_InvalidNumberFallsBack(t *testing.T) {
	t.Setenv("KEYGEN_BITS", "lots")

	if got := Load().KeyGen.Bits; got != 2048 {
		t.Errorf("want fallback 2048, got %d", got)
	}
}
