package db

import (
	"context"
	"errors"
	"testing"
)

func TestRunChecks_AllHealthy(t *testing.T) {
	ok := func(context.Context) error { return nil }
	results, healthy := runChecks(context.Background(), map[string]Check{"database": ok, "properties": ok})

	if !healthy {
		t.Error("expected healthy")
	}
	if results["database"] != "ok" || results["properties"] != "ok" {
		t.Errorf("unexpected results: %v", results)
	}
}

func TestRunChecks_ReportsFailure(t *testing.T) {
	results, healthy := runChecks(context.Background(), map[string]Check{
		"database":   func(context.Context) error { return nil },
		"properties": func(context.Context) error { return errors.New("connection refused") },
	})

	if healthy {
		t.Error("expected unhealthy")
	}
	if results["properties"] != "connection refused" {
		t.Errorf("expected failure message, got %q", results["properties"])
	}
	if results["database"] != "ok" {
		t.Errorf("expected database ok, got %q", results["database"])
	}
}

func TestTxFromContext_Empty(t *testing.T) {
	if TxFromContext(context.Background()) != nil {
		t.Error("expected no transaction")
	}
	if ConnFromContext(context.Background()) != nil {
		t.Error("expected no connection")
	}
}
