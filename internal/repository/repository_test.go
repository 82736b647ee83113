package repository

import (
	"context"
	"math/big"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"wiener-keygen-service/internal/domain"
	"wiener-keygen-service/internal/usecase"
	"wiener-keygen-service/migrations"
)

// setupTestDB は埋め込みマイグレーションを適用したインメモリSQLiteを返す。
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	svc := usecase.NewMigrationService(NewMigrationRepository(db), migrations.FS)
	if _, err := svc.ApplyMigrations(context.Background()); err != nil {
		t.Fatalf("failed to apply migrations: %v", err)
	}
	return db
}

func newStoredKeyPair(bits int, n int64) *domain.StoredKeyPair {
	return &domain.StoredKeyPair{
		Bits:       bits,
		E:          big.NewInt(17993),
		N:          big.NewInt(n),
		EncryptedD: []byte("encrypted:5"),
		Vulnerable: true,
	}
}

func TestKeyPairRepository_CreateAndFind(t *testing.T) {
	ctx := context.Background()
	repo := NewKeyPairRepository(setupTestDB(t))

	kp := newStoredKeyPair(20, 90581)
	if err := repo.Create(ctx, kp); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if len(kp.ID) != 36 {
		t.Errorf("want generated uuid, got %q", kp.ID)
	}
	if kp.CreatedAt.IsZero() {
		t.Error("want created_at to be set")
	}

	found, err := repo.FindByID(ctx, kp.ID)
	if err != nil {
		t.Fatalf("FindByID failed: %v", err)
	}
	if found == nil {
		t.Fatal("want key pair, got nil")
	}
	if found.N.Cmp(big.NewInt(90581)) != 0 || found.E.Cmp(big.NewInt(17993)) != 0 {
		t.Errorf("want (e, n) = (17993, 90581), got (%s, %s)", found.E, found.N)
	}
	if string(found.EncryptedD) != "encrypted:5" {
		t.Errorf("want encrypted d round trip, got %q", found.EncryptedD)
	}
	if !found.Vulnerable || found.Bits != 20 {
		t.Errorf("unexpected metadata: %+v", found)
	}
}

func TestKeyPairRepository_LargeModulusRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := NewKeyPairRepository(setupTestDB(t))

	n := new(big.Int).Lsh(big.NewInt(1), 1023)
	n.Add(n, big.NewInt(12345))
	kp := newStoredKeyPair(1024, 0)
	kp.N = n
	if err := repo.Create(ctx, kp); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	found, err := repo.FindByID(ctx, kp.ID)
	if err != nil {
		t.Fatalf("FindByID failed: %v", err)
	}
	if found.N.Cmp(n) != 0 {
		t.Errorf("modulus mismatch: want %s, got %s", n, found.N)
	}
}

func TestKeyPairRepository_FindByID_NotFound(t *testing.T) {
	repo := NewKeyPairRepository(setupTestDB(t))

	found, err := repo.FindByID(context.Background(), "00000000-0000-0000-0000-000000000000")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if found != nil {
		t.Errorf("want nil, got %+v", found)
	}
}

func TestKeyPairRepository_FindAll(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	repo := NewKeyPairRepository(db)

	for i := int64(0); i < 3; i++ {
		if err := repo.Create(ctx, newStoredKeyPair(20, 90581+i)); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}
	// 作成日時を明示して並び順を固定する
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var models []KeyPairModel
	db.Order("modulus ASC").Find(&models)
	for i, m := range models {
		db.Model(&KeyPairModel{}).Where("id = ?", m.ID).Update("created_at", base.Add(time.Duration(i)*time.Hour))
	}

	pairs, err := repo.FindAll(ctx, 2)
	if err != nil {
		t.Fatalf("FindAll failed: %v", err)
	}
	if len(pairs) != 2 {
		t.Fatalf("want 2 key pairs, got %d", len(pairs))
	}
	if pairs[0].N.Int64() != 90583 || pairs[1].N.Int64() != 90582 {
		t.Errorf("want newest first, got %s, %s", pairs[0].N, pairs[1].N)
	}
}

func TestKeyPairRepository_Delete(t *testing.T) {
	ctx := context.Background()
	repo := NewKeyPairRepository(setupTestDB(t))

	kp := newStoredKeyPair(20, 90581)
	if err := repo.Create(ctx, kp); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	deleted, err := repo.Delete(ctx, kp.ID)
	if err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if !deleted {
		t.Error("want deleted=true")
	}

	deleted, err = repo.Delete(ctx, kp.ID)
	if err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if deleted {
		t.Error("want deleted=false for missing key pair")
	}
}

func TestMigrationRepository_AppliedHistory(t *testing.T) {
	ctx := context.Background()
	repo := NewMigrationRepository(setupTestDB(t))

	applied, err := repo.FindAllApplied(ctx)
	if err != nil {
		t.Fatalf("FindAllApplied failed: %v", err)
	}
	if len(applied) != 2 {
		t.Fatalf("want 2 applied migrations, got %d", len(applied))
	}
	if applied[0].Version != "001" || applied[1].Version != "002" {
		t.Errorf("want versions 001, 002, got %s, %s", applied[0].Version, applied[1].Version)
	}

	ok, err := repo.IsMigrationApplied(ctx, "001")
	if err != nil || !ok {
		t.Errorf("want 001 applied, got %v (err=%v)", ok, err)
	}
	ok, err = repo.IsMigrationApplied(ctx, "999")
	if err != nil || ok {
		t.Errorf("want 999 not applied, got %v (err=%v)", ok, err)
	}
}

func TestMigrationRepository_ApplyInTx_RollsBack(t *testing.T) {
	ctx := context.Background()
	repo := NewMigrationRepository(setupTestDB(t))

	if err := repo.ApplyInTx(ctx, "900", "INVALID SQL SYNTAX;"); err == nil {
		t.Fatal("want error for invalid SQL")
	}
	ok, err := repo.IsMigrationApplied(ctx, "900")
	if err != nil {
		t.Fatalf("IsMigrationApplied failed: %v", err)
	}
	if ok {
		t.Error("failed migration must not be recorded")
	}
}
