package utils

import (
	"testing"
	"time"
)

func TestPostgresPoolConfigDefaults(t *testing.T) {
	cfg := PostgresPoolConfig{}.withDefaults()
	if cfg.MaxOpenConns != 25 || cfg.MaxIdleConns != 25 {
		t.Fatalf("unexpected pool defaults: %+v", cfg)
	}
	if cfg.PingTimeout != 5*time.Second {
		t.Fatalf("unexpected ping timeout: %v", cfg.PingTimeout)
	}
}

func TestPostgresPoolConfigKeepsExplicitValues(t *testing.T) {
	cfg := PostgresPoolConfig{MaxOpenConns: 3, PingTimeout: time.Second}.withDefaults()
	if cfg.MaxOpenConns != 3 || cfg.PingTimeout != time.Second {
		t.Fatalf("explicit values overwritten: %+v", cfg)
	}
}

func TestTxHelpersExist(t *testing.T) {
	// Compile-time smoke test: both transaction helpers share the signature
	// callers depend on.
	var _ TxFunc
	_ = WithTx
	_ = WithConnTx
}
