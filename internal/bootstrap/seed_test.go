package bootstrap

import (
	"context"
	"testing"

	"github.com/dropDatabas3/mcpd/internal/config"
	"github.com/dropDatabas3/mcpd/internal/store/adapters/mem"
)

func TestSeedServers_Idempotent(t *testing.T) {
	ctx := context.Background()
	store := mem.New()

	seeds := []config.SeedServer{
		{
			Name:             "files",
			BaseURI:          "https://files.internal",
			Description:      "File server",
			CallbackPatterns: []string{"http://localhost:*/cb", "https://*.example.com/cb"},
		},
		{Name: "notes", BaseURI: "https://notes.internal"},
	}

	if err := SeedServers(ctx, store, seeds); err != nil {
		t.Fatalf("first seed: %v", err)
	}
	// segunda corrida con la misma config: sin duplicados ni errores
	if err := SeedServers(ctx, store, seeds); err != nil {
		t.Fatalf("second seed: %v", err)
	}

	active, err := store.Servers().ListActive(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(active) != 2 {
		t.Fatalf("expected 2 servers, got %d", len(active))
	}

	files, err := store.Servers().GetByName(ctx, "files")
	if err != nil {
		t.Fatalf("get files: %v", err)
	}
	patterns, err := store.Whitelist().ListActiveForServer(ctx, files.ID)
	if err != nil {
		t.Fatalf("list whitelist: %v", err)
	}
	if len(patterns) != 2 {
		t.Fatalf("expected 2 patterns, got %d", len(patterns))
	}
}

func TestSeedServers_AddsNewPatternsToExistingServer(t *testing.T) {
	ctx := context.Background()
	store := mem.New()

	if err := SeedServers(ctx, store, []config.SeedServer{
		{Name: "files", CallbackPatterns: []string{"http://localhost:*/cb"}},
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	// misma entrada con un patrón nuevo: solo agrega el faltante
	if err := SeedServers(ctx, store, []config.SeedServer{
		{Name: "files", CallbackPatterns: []string{"http://localhost:*/cb", "https://app.example.com/cb"}},
	}); err != nil {
		t.Fatalf("reseed: %v", err)
	}

	files, err := store.Servers().GetByName(ctx, "files")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	patterns, err := store.Whitelist().ListActiveForServer(ctx, files.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(patterns) != 2 {
		t.Fatalf("expected 2 patterns, got %d", len(patterns))
	}
}
