package usecase

import (
	"context"
	"errors"
	"testing"
	"testing/fstest"
	"time"

	"wiener-keygen-service/internal/domain"
)

// mockMigrationRepository はテスト用のモック。
type mockMigrationRepository struct {
	appliedMigrations map[string]*domain.Migration
	executedSQL       []string
	applyErr          error
	ensureErr         error
}

func newMockMigrationRepository() *mockMigrationRepository {
	return &mockMigrationRepository{
		appliedMigrations: make(map[string]*domain.Migration),
	}
}

func (m *mockMigrationRepository) EnsureTable(ctx context.Context) error {
	return m.ensureErr
}

func (m *mockMigrationRepository) FindAllApplied(ctx context.Context) ([]*domain.Migration, error) {
	var result []*domain.Migration
	for _, migration := range m.appliedMigrations {
		result = append(result, migration)
	}
	return result, nil
}

func (m *mockMigrationRepository) IsMigrationApplied(ctx context.Context, version string) (bool, error) {
	_, exists := m.appliedMigrations[version]
	return exists, nil
}

func (m *mockMigrationRepository) ApplyInTx(ctx context.Context, version, sql string) error {
	if m.applyErr != nil {
		return m.applyErr
	}
	now := time.Now()
	m.executedSQL = append(m.executedSQL, sql)
	m.appliedMigrations[version] = &domain.Migration{
		Version:   version,
		AppliedAt: &now,
		Status:    domain.MigrationStatusApplied,
	}
	return nil
}

func testMigrationFiles() fstest.MapFS {
	return fstest.MapFS{
		"002_add_index.sql":        {Data: []byte("CREATE INDEX idx ON key_pairs (bits);")},
		"001_create_key_pairs.sql": {Data: []byte("CREATE TABLE key_pairs (id INT);")},
		"003_add_column.sql":       {Data: []byte("ALTER TABLE key_pairs ADD COLUMN note TEXT;")},
		"README.md":                {Data: []byte("not a migration")},
	}
}

func TestMigrationService_ApplyMigrations(t *testing.T) {
	repo := newMockMigrationRepository()
	service := NewMigrationService(repo, testMigrationFiles())

	count, err := service.ApplyMigrations(context.Background())
	if err != nil {
		t.Fatalf("ApplyMigrations failed: %v", err)
	}
	if count != 3 {
		t.Errorf("expected 3 migrations applied, got %d", count)
	}

	// バージョン順に実行される
	want := []string{
		"CREATE TABLE key_pairs (id INT);",
		"CREATE INDEX idx ON key_pairs (bits);",
		"ALTER TABLE key_pairs ADD COLUMN note TEXT;",
	}
	for i, sql := range want {
		if repo.executedSQL[i] != sql {
			t.Errorf("step %d: want %q, got %q", i, sql, repo.executedSQL[i])
		}
	}
}

func TestMigrationService_ApplyMigrations_AlreadyApplied(t *testing.T) {
	repo := newMockMigrationRepository()
	now := time.Now()
	repo.appliedMigrations["001"] = &domain.Migration{Version: "001", AppliedAt: &now, Status: domain.MigrationStatusApplied}
	repo.appliedMigrations["002"] = &domain.Migration{Version: "002", AppliedAt: &now, Status: domain.MigrationStatusApplied}

	service := NewMigrationService(repo, testMigrationFiles())

	count, err := service.ApplyMigrations(context.Background())
	if err != nil {
		t.Fatalf("ApplyMigrations failed: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 migration applied, got %d", count)
	}
}

func TestMigrationService_ApplyMigrations_Error(t *testing.T) {
	repo := newMockMigrationRepository()
	repo.applyErr = errors.New("syntax error")
	service := NewMigrationService(repo, testMigrationFiles())

	_, err := service.ApplyMigrations(context.Background())
	if !errors.Is(err, domain.ErrMigrationFailed) {
		t.Errorf("want ErrMigrationFailed, got %v", err)
	}
}

func TestMigrationService_InvalidFileName(t *testing.T) {
	files := fstest.MapFS{
		"create_key_pairs.sql": {Data: []byte("SELECT 1;")},
	}
	service := NewMigrationService(newMockMigrationRepository(), files)

	_, err := service.ApplyMigrations(context.Background())
	if !errors.Is(err, domain.ErrInvalidMigrationFile) {
		t.Errorf("want ErrInvalidMigrationFile, got %v", err)
	}
}

func TestMigrationService_DuplicateVersion(t *testing.T) {
	files := fstest.MapFS{
		"001_a.sql": {Data: []byte("SELECT 1;")},
		"001_b.sql": {Data: []byte("SELECT 2;")},
	}
	service := NewMigrationService(newMockMigrationRepository(), files)

	_, err := service.GetMigrationStatus(context.Background())
	if !errors.Is(err, domain.ErrInvalidMigrationFile) {
		t.Errorf("want ErrInvalidMigrationFile, got %v", err)
	}
}

func TestMigrationService_GetMigrationStatus(t *testing.T) {
	repo := newMockMigrationRepository()
	now := time.Now()
	repo.appliedMigrations["001"] = &domain.Migration{Version: "001", AppliedAt: &now, Status: domain.MigrationStatusApplied}

	service := NewMigrationService(repo, testMigrationFiles())

	migrations, err := service.GetMigrationStatus(context.Background())
	if err != nil {
		t.Fatalf("GetMigrationStatus failed: %v", err)
	}
	if len(migrations) != 3 {
		t.Fatalf("expected 3 migrations, got %d", len(migrations))
	}

	expectedStatuses := map[string]domain.MigrationStatus{
		"001": domain.MigrationStatusApplied,
		"002": domain.MigrationStatusPending,
		"003": domain.MigrationStatusPending,
	}
	for _, migration := range migrations {
		if migration.Status != expectedStatuses[migration.Version] {
			t.Errorf("migration %s: expected status %s, got %s", migration.Version, expectedStatuses[migration.Version], migration.Status)
		}
	}
	if migrations[0].AppliedAt == nil {
		t.Error("expected applied_at for 001")
	}
}
