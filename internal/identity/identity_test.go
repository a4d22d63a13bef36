package identity

import (
	"path/filepath"
	"strings"
	"testing"
)

func TestGetOrCreate_IdempotentWithinSession(t *testing.T) {
	path := filepath.Join(t.TempDir(), "client_id")
	p := NewProvider(path)

	first, err := p.GetOrCreate()
	if err != nil {
		t.Fatalf("GetOrCreate error: %v", err)
	}
	if !strings.HasPrefix(first, "C") {
		t.Fatalf("client id %q must start with C", first)
	}

	second, err := p.GetOrCreate()
	if err != nil {
		t.Fatalf("GetOrCreate error: %v", err)
	}
	if first != second {
		t.Fatalf("repeated calls returned different ids: %q and %q", first, second)
	}
}

func TestGetOrCreate_StableAcrossSessions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "client_id")

	first, err := NewProvider(path).GetOrCreate()
	if err != nil {
		t.Fatalf("GetOrCreate error: %v", err)
	}

	// Новый провайдер с тем же файлом — как новая сессия того же клиента.
	second, err := NewProvider(path).GetOrCreate()
	if err != nil {
		t.Fatalf("GetOrCreate error: %v", err)
	}

	if first != second {
		t.Fatalf("identity not stable across sessions: %q and %q", first, second)
	}
}

func TestGetOrCreate_DistinctClients(t *testing.T) {
	dir := t.TempDir()

	a, err := NewProvider(filepath.Join(dir, "a")).GetOrCreate()
	if err != nil {
		t.Fatalf("GetOrCreate error: %v", err)
	}
	b, err := NewProvider(filepath.Join(dir, "b")).GetOrCreate()
	if err != nil {
		t.Fatalf("GetOrCreate error: %v", err)
	}

	if a == b {
		t.Fatalf("distinct installations must get distinct ids")
	}
}
