package enginectl

import (
	"context"
	"errors"
	"testing"
)

func TestServiceGuardExports(t *testing.T) {
	if _, err := NewService(context.Background(), nil, nil, ServiceDependencies{}); !errors.Is(err, ErrConfigRequired) {
		t.Fatalf("expected config required error, got %v", err)
	}
}

func TestEncodingExportAliases(t *testing.T) {
	payload := map[string]string{"hello": "world"}
	if _, err := Marshal(payload); err != nil {
		t.Fatalf("marshal alias failed: %v", err)
	}
	if _, err := MarshalIndent(payload, "", "  "); err != nil {
		t.Fatalf("marshal indent alias failed: %v", err)
	}
	if err := Unmarshal([]byte(`{"hello":"world"}`), &payload); err != nil {
		t.Fatalf("unmarshal alias failed: %v", err)
	}
}

func TestLevelExports(t *testing.T) {
	level, err := ParseLevel("warning")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if level != LevelWarning {
		t.Fatalf("expected LevelWarning, got %q", level)
	}
	if !LevelSilent.Silent() {
		t.Fatal("expected LevelSilent to be terminal")
	}
}

func TestValidateBaseExport(t *testing.T) {
	if err := ValidateBase("proxies:\n  - a\n"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := ValidateBase("no proxies here: true\n"); !errors.Is(err, ErrValidationFailed) {
		t.Fatalf("expected validation failure, got %v", err)
	}
}

func TestMergeGlobalExport(t *testing.T) {
	out, err := MergeGlobal("mode: rule\n", "mode: direct\n")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "mode: direct\n" {
		t.Fatalf("unexpected merge output %q", out)
	}
}

func TestIDExports(t *testing.T) {
	if NewCorrelationID() == NewCorrelationID() {
		t.Fatal("correlation ids must be unique")
	}
	if NewRequestID() == "" {
		t.Fatal("expected a request id")
	}
}

func TestTransportRegistryExports(t *testing.T) {
	if DefaultTransportRegistry == nil {
		t.Fatal("expected a default transport registry")
	}
	if MetadataKeyCorrelationID != "correlation_id" {
		t.Fatalf("unexpected correlation metadata key %q", MetadataKeyCorrelationID)
	}
}
