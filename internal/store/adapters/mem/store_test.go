package mem

import (
	"context"
	"testing"
	"time"

	"github.com/dropDatabas3/mcpd/internal/domain/repository"
)

func TestClients_UniqueClientID(t *testing.T) {
	ctx := context.Background()
	s := New()

	input := repository.ClientRegistrationInput{
		ClientID:         "mcp_dup",
		ClientSecretHash: "$argon2id$x$y",
		ClientName:       "First",
	}
	if _, err := s.Clients().Create(ctx, input); err != nil {
		t.Fatalf("first create: %v", err)
	}
	if _, err := s.Clients().Create(ctx, input); !repository.IsConflict(err) {
		t.Fatalf("expected conflict on duplicate client_id, got %v", err)
	}
}

func TestClients_LifecycleUpdates(t *testing.T) {
	ctx := context.Background()
	s := New()

	reg, err := s.Clients().Create(ctx, repository.ClientRegistrationInput{
		ClientID:   "mcp_life",
		ClientName: "Life",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if reg.Status != repository.ClientStatusActive {
		t.Fatalf("new registration must be active, got %q", reg.Status)
	}
	if reg.SecretExpiresAt != nil {
		t.Fatal("zero SecretExpiresAt input must persist as nil")
	}

	exp := time.Now().UTC().Add(time.Hour)
	if err := s.Clients().RotateSecret(ctx, reg.ID, "$argon2id$new$hash", exp); err != nil {
		t.Fatalf("rotate: %v", err)
	}
	got, err := s.Clients().GetByID(ctx, reg.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ClientSecretHash != "$argon2id$new$hash" || got.SecretRotatedAt == nil {
		t.Fatalf("rotate not persisted: %+v", got)
	}

	if err := s.Clients().SetStatus(ctx, reg.ID, repository.ClientStatusRevoked); err != nil {
		t.Fatalf("set status: %v", err)
	}
	got, _ = s.Clients().GetByID(ctx, reg.ID)
	if got.Status != repository.ClientStatusRevoked {
		t.Fatalf("status not persisted: %q", got.Status)
	}

	if err := s.Clients().SetStatus(ctx, "missing", "revoked"); !repository.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestClients_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := New()

	reg, err := s.Clients().Create(ctx, repository.ClientRegistrationInput{
		ClientID:     "mcp_copy",
		RedirectURIs: []string{"https://a.example.com/cb"},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// mutar lo devuelto no debe tocar lo almacenado
	reg.RedirectURIs[0] = "https://evil.example.com/cb"
	got, _ := s.Clients().GetByClientID(ctx, "mcp_copy")
	if got.RedirectURIs[0] != "https://a.example.com/cb" {
		t.Fatal("stored entity was mutated through returned slice")
	}
}

func TestGrants_OneActivePerPair(t *testing.T) {
	ctx := context.Background()
	s := New()

	if _, err := s.Grants().Create(ctx, "client-1", "server-1", []string{"mcp:tools"}); err != nil {
		t.Fatalf("first grant: %v", err)
	}
	if _, err := s.Grants().Create(ctx, "client-1", "server-1", nil); !repository.IsConflict(err) {
		t.Fatal("second active grant for same pair must conflict")
	}
	// otro par no conflictúa
	if _, err := s.Grants().Create(ctx, "client-1", "server-2", nil); err != nil {
		t.Fatalf("different pair: %v", err)
	}

	// revocar libera el par
	g, err := s.Grants().GetActive(ctx, "client-1", "server-1")
	if err != nil {
		t.Fatalf("get active: %v", err)
	}
	if err := s.Grants().Revoke(ctx, g.ID); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if _, err := s.Grants().GetActive(ctx, "client-1", "server-1"); !repository.IsNotFound(err) {
		t.Fatal("revoked grant must not be returned as active")
	}
	if _, err := s.Grants().Create(ctx, "client-1", "server-1", nil); err != nil {
		t.Fatalf("re-grant after revoke: %v", err)
	}

	// revocar dos veces es not found
	if err := s.Grants().Revoke(ctx, g.ID); !repository.IsNotFound(err) {
		t.Fatal("double revoke must be not found")
	}
}

func TestServers_UniqueNameAndDeactivate(t *testing.T) {
	ctx := context.Background()
	s := New()

	srv, err := s.Servers().Create(ctx, repository.McpServerInput{Name: "files"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := s.Servers().Create(ctx, repository.McpServerInput{Name: "files"}); !repository.IsConflict(err) {
		t.Fatal("duplicate name must conflict")
	}

	if err := s.Servers().Deactivate(ctx, srv.ID); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	active, err := s.Servers().ListActive(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(active) != 0 {
		t.Fatalf("expected no active servers, got %d", len(active))
	}
	if err := s.Servers().Deactivate(ctx, srv.ID); !repository.IsNotFound(err) {
		t.Fatal("deactivating twice must be not found")
	}
}

func TestWhitelist_DuplicatePattern(t *testing.T) {
	ctx := context.Background()
	s := New()

	if _, err := s.Whitelist().Add(ctx, "srv-1", "https://*.example.com/cb"); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := s.Whitelist().Add(ctx, "srv-1", "https://*.example.com/cb"); !repository.IsConflict(err) {
		t.Fatal("duplicate pattern must conflict")
	}
	if _, err := s.Whitelist().Add(ctx, "srv-2", "https://*.example.com/cb"); err != nil {
		t.Fatalf("same pattern on other server: %v", err)
	}

	entries, err := s.Whitelist().ListActiveForServer(ctx, "srv-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
}

func TestAudit_AppendAssignsIDAndTimestamp(t *testing.T) {
	ctx := context.Background()
	s := New()

	err := s.Audit().Append(ctx, repository.AuditLogEntry{
		Action:  repository.AuditTokenIssued,
		ActorID: "mcp_abc",
	})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	entries := s.AuditEntries()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].ID == "" || entries[0].Timestamp.IsZero() {
		t.Fatalf("entry must get id and timestamp: %+v", entries[0])
	}
}
