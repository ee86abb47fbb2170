package validation

import (
	"strings"
	"testing"
)

type sample struct {
	AppName string `validate:"required"`
	Port    int    `validate:"gt=0"`
}

func TestValidate_OK(t *testing.T) {
	if err := Validate(sample{AppName: "orders", Port: 8080}); err != nil {
		t.Errorf("expected no error, got %v", err)
	}
}

func TestValidate_ReportsAllFailures(t *testing.T) {
	err := Validate(sample{})
	if err == nil {
		t.Fatal("expected error")
	}
	msg := err.Error()
	if !strings.Contains(msg, "app_name") {
		t.Errorf("expected app_name in error, got %q", msg)
	}
	if !strings.Contains(msg, "port") {
		t.Errorf("expected port in error, got %q", msg)
	}
}

func TestToSnakeCase(t *testing.T) {
	tests := []struct{ in, out string }{
		{"AppName", "app_name"},
		{"Port", "port"},
		{"RegistryURLs", "registry_u_r_ls"},
	}
	for _, tt := range tests {
		if got := toSnakeCase(tt.in); got != tt.out {
			t.Errorf("toSnakeCase(%q) = %q, want %q", tt.in, got, tt.out)
		}
	}
}
