package infra

import (
	"testing"
	"time"

	"rsa-key-service/internal/domain"
)

func TestPublicKeyCache(t *testing.T) {
	c := NewPublicKeyCache(time.Minute)

	if _, ok := c.Get("tenant-001", 1); ok {
		t.Fatal("want miss on empty cache")
	}

	c.Set(&domain.PublicKey{TenantID: "tenant-001", Generation: 1, PublicKeyPEM: "pem-1"})
	got, ok := c.Get("tenant-001", 1)
	if !ok || got.PublicKeyPEM != "pem-1" {
		t.Fatalf("want pem-1, got %v (hit=%v)", got, ok)
	}
	if _, ok := c.Get("tenant-001", 2); ok {
		t.Error("generations must not share entries")
	}

	c.Delete("tenant-001", 1)
	if _, ok := c.Get("tenant-001", 1); ok {
		t.Error("want miss after delete")
	}
}

func TestPublicKeyCache_Expires(t *testing.T) {
	c := NewPublicKeyCache(10 * time.Millisecond)
	c.Set(&domain.PublicKey{TenantID: "tenant-001", Generation: 1})

	time.Sleep(30 * time.Millisecond)
	if _, ok := c.Get("tenant-001", 1); ok {
		t.Error("want entry to expire")
	}
}
