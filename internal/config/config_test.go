package config

import (
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("HTTP_ADDR", "")
	t.Setenv("KAFKA_BROKERS", "")
	t.Setenv("HANDOFF_ORDER_TTL", "")

	cfg := Load()
	if cfg.HTTPAddr != ":8081" {
		t.Fatalf("HTTPAddr = %q", cfg.HTTPAddr)
	}
	if diff := cmp.Diff([]string{"kafka:9092"}, cfg.KafkaBrokers); diff != "" {
		t.Fatalf("KafkaBrokers (-want +got):\n%s", diff)
	}
	if cfg.HandoffOrderTTL != 7*24*time.Hour {
		t.Fatalf("HandoffOrderTTL = %s", cfg.HandoffOrderTTL)
	}
	if cfg.StoreDriver != StoreDriverPostgres || cfg.AuthDriver != AuthDriverJWT {
		t.Fatalf("drivers = %s/%s", cfg.StoreDriver, cfg.AuthDriver)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", " a:1, ,b:2 ")
	t.Setenv("XENDIT_TIMEOUT", "3s")
	t.Setenv("VA_EXPIRY", "not-a-duration")
	t.Setenv("WORKER_CONCURRENCY", "x")
	t.Setenv("PUBLIC_BASE_URL", "https://shop.example/")
	t.Setenv("STORE_DRIVER", "FIRESTORE")

	cfg := Load()
	if diff := cmp.Diff([]string{"a:1", "b:2"}, cfg.KafkaBrokers); diff != "" {
		t.Fatalf("KafkaBrokers (-want +got):\n%s", diff)
	}
	if cfg.XenditTimeout != 3*time.Second {
		t.Fatalf("XenditTimeout = %s", cfg.XenditTimeout)
	}
	if cfg.VAExpiry != 24*time.Hour {
		t.Fatalf("VAExpiry fallback = %s", cfg.VAExpiry)
	}
	if cfg.WorkerConcurrency != 8 {
		t.Fatalf("WorkerConcurrency fallback = %d", cfg.WorkerConcurrency)
	}
	if cfg.PublicBaseURL != "https://shop.example" {
		t.Fatalf("PublicBaseURL = %q", cfg.PublicBaseURL)
	}
	if cfg.StoreDriver != StoreDriverFirestore {
		t.Fatalf("StoreDriver = %q", cfg.StoreDriver)
	}
}

func TestValidate(t *testing.T) {
	cfg := Config{StoreDriver: StoreDriverFirestore, AuthDriver: AuthDriverJWT}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	for _, want := range []string{"FIRESTORE_PROJECT", "JWT_SECRET", "XENDIT_SECRET_KEY"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}

	ok := Config{StoreDriver: StoreDriverPostgres, AuthDriver: AuthDriverJWT, JWTSecret: "s", XenditSecretKey: "k"}
	if err := ok.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
