package postgres

import "testing"

func (c Config) withConnectionURL(url string) Config {
	c.ConnectionURL = url
	return c
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected ErrMissingConnectionURL for a default config with no connection url")
	}

	cfg.ConnectionURL = "postgres://localhost/db"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	if _, err := New(Config{}, nil); err == nil {
		t.Fatal("expected error constructing Reader from empty config")
	}
}

func TestNewReaderStartsUnconnected(t *testing.T) {
	r, err := New(DefaultConfig().withConnectionURL("postgres://localhost/db"), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if r.State() != StateUnconnected {
		t.Fatalf("State() = %q, want %q", r.State(), StateUnconnected)
	}
	if r.Name() != "postgres" {
		t.Fatalf("Name() = %q, want postgres", r.Name())
	}
}
