package repository

import (
	"context"
	"testing"

	"rsa-key-service/internal/domain"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// setupTestDB はテスト用のインメモリSQLiteデータベースを作成し、Migrateでテーブルを作る。
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := Migrate(context.Background(), db); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return db
}

// insertKey はテスト用の鍵を保存する。
func insertKey(t *testing.T, repo *KeyRepository, tenantID string, generation uint, status domain.KeyStatus) *domain.RSAKeyPair {
	t.Helper()

	key := &domain.RSAKeyPair{
		TenantID:            tenantID,
		Generation:          generation,
		Bits:                2048,
		PublicExponent:      3,
		PublicKeyPEM:        "-----BEGIN PUBLIC KEY-----\n...\n-----END PUBLIC KEY-----\n",
		EncryptedPrivateKey: []byte("encrypted-private-key"),
		Status:              status,
	}
	if err := repo.Create(context.Background(), key); err != nil {
		t.Fatalf("failed to insert test data: %v", err)
	}
	return key
}

func TestKeyRepository_ExistsByTenantID(t *testing.T) {
	ctx := context.Background()
	repo := NewKeyRepository(setupTestDB(t))

	insertKey(t, repo, "tenant-1", 1, domain.KeyStatusActive)

	// テナントに鍵が存在する場合
	exists, err := repo.ExistsByTenantID(ctx, "tenant-1")
	if err != nil {
		t.Fatalf("ExistsByTenantID failed: %v", err)
	}
	if !exists {
		t.Error("expected exists=true, got false")
	}

	// テナントに鍵が存在しない場合
	exists, err = repo.ExistsByTenantID(ctx, "tenant-2")
	if err != nil {
		t.Fatalf("ExistsByTenantID failed: %v", err)
	}
	if exists {
		t.Error("expected exists=false, got true")
	}
}

func TestKeyRepository_Create(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	repo := NewKeyRepository(db)

	key := insertKey(t, repo, "tenant-1", 1, domain.KeyStatusActive)

	// UUID自動生成を確認
	if key.ID == "" {
		t.Error("expected ID to be generated, got empty")
	}
	if key.CreatedAt.IsZero() || key.UpdatedAt.IsZero() {
		t.Error("expected timestamps to be set")
	}

	// 同じテナント・世代は一意制約で失敗する
	dup := &domain.RSAKeyPair{
		TenantID:            "tenant-1",
		Generation:          1,
		Bits:                2048,
		PublicExponent:      3,
		PublicKeyPEM:        "pem",
		EncryptedPrivateKey: []byte("x"),
		Status:              domain.KeyStatusActive,
	}
	if err := repo.Create(ctx, dup); err == nil {
		t.Error("expected unique constraint error, got nil")
	}

	var count int64
	if err := db.Model(&RSAKeyModel{}).Where("tenant_id = ?", "tenant-1").Count(&count).Error; err != nil {
		t.Fatalf("failed to count: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 record, got %d", count)
	}
}

func TestKeyRepository_FindByTenantIDAndGeneration(t *testing.T) {
	ctx := context.Background()
	repo := NewKeyRepository(setupTestDB(t))

	insertKey(t, repo, "tenant-1", 1, domain.KeyStatusActive)

	key, err := repo.FindByTenantIDAndGeneration(ctx, "tenant-1", 1)
	if err != nil {
		t.Fatalf("FindByTenantIDAndGeneration failed: %v", err)
	}
	if key == nil {
		t.Fatal("expected key, got nil")
	}
	if key.Bits != 2048 || key.PublicExponent != 3 {
		t.Errorf("expected bits=2048 e=3, got bits=%d e=%d", key.Bits, key.PublicExponent)
	}
	if string(key.EncryptedPrivateKey) != "encrypted-private-key" {
		t.Errorf("unexpected encrypted private key: %q", key.EncryptedPrivateKey)
	}

	// 鍵が存在しない場合
	key, err = repo.FindByTenantIDAndGeneration(ctx, "tenant-2", 1)
	if err != nil {
		t.Fatalf("FindByTenantIDAndGeneration failed: %v", err)
	}
	if key != nil {
		t.Errorf("expected nil, got %+v", key)
	}
}

func TestKeyRepository_FindLatestActiveByTenantID(t *testing.T) {
	ctx := context.Background()
	repo := NewKeyRepository(setupTestDB(t))

	insertKey(t, repo, "tenant-1", 1, domain.KeyStatusActive)
	insertKey(t, repo, "tenant-1", 2, domain.KeyStatusActive)
	insertKey(t, repo, "tenant-1", 3, domain.KeyStatusDisabled)

	// 無効化された世代3を飛ばして世代2を返す
	key, err := repo.FindLatestActiveByTenantID(ctx, "tenant-1")
	if err != nil {
		t.Fatalf("FindLatestActiveByTenantID failed: %v", err)
	}
	if key == nil || key.Generation != 2 {
		t.Fatalf("expected generation=2, got %+v", key)
	}

	key, err = repo.FindLatestActiveByTenantID(ctx, "tenant-2")
	if err != nil {
		t.Fatalf("FindLatestActiveByTenantID failed: %v", err)
	}
	if key != nil {
		t.Errorf("expected nil, got %+v", key)
	}
}

func TestKeyRepository_FindAllByTenantID(t *testing.T) {
	ctx := context.Background()
	repo := NewKeyRepository(setupTestDB(t))

	// 順不同で挿入
	for _, gen := range []uint{3, 1, 2} {
		insertKey(t, repo, "tenant-1", gen, domain.KeyStatusActive)
	}

	keys, err := repo.FindAllByTenantID(ctx, "tenant-1")
	if err != nil {
		t.Fatalf("FindAllByTenantID failed: %v", err)
	}
	if len(keys) != 3 {
		t.Fatalf("expected 3 keys, got %d", len(keys))
	}
	for i, key := range keys {
		if key.Generation != uint(i+1) {
			t.Errorf("keys[%d]: expected generation=%d, got %d", i, i+1, key.Generation)
		}
	}

	keys, err = repo.FindAllByTenantID(ctx, "tenant-2")
	if err != nil {
		t.Fatalf("FindAllByTenantID failed: %v", err)
	}
	if len(keys) != 0 {
		t.Errorf("expected empty slice, got %d keys", len(keys))
	}
}

func TestKeyRepository_GetMaxGeneration(t *testing.T) {
	ctx := context.Background()
	repo := NewKeyRepository(setupTestDB(t))

	for gen := uint(1); gen <= 3; gen++ {
		insertKey(t, repo, "tenant-1", gen, domain.KeyStatusActive)
	}

	maxGen, err := repo.GetMaxGeneration(ctx, "tenant-1")
	if err != nil {
		t.Fatalf("GetMaxGeneration failed: %v", err)
	}
	if maxGen != 3 {
		t.Errorf("expected maxGen=3, got %d", maxGen)
	}

	maxGen, err = repo.GetMaxGeneration(ctx, "tenant-2")
	if err != nil {
		t.Fatalf("GetMaxGeneration failed: %v", err)
	}
	if maxGen != 0 {
		t.Errorf("expected maxGen=0, got %d", maxGen)
	}
}

func TestKeyRepository_UpdateStatus(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	repo := NewKeyRepository(db)

	key := insertKey(t, repo, "tenant-1", 1, domain.KeyStatusActive)

	if err := repo.UpdateStatus(ctx, key.ID, domain.KeyStatusDisabled); err != nil {
		t.Fatalf("UpdateStatus failed: %v", err)
	}

	var model RSAKeyModel
	if err := db.Where("id = ?", key.ID).First(&model).Error; err != nil {
		t.Fatalf("failed to fetch updated record: %v", err)
	}
	if model.Status != string(domain.KeyStatusDisabled) {
		t.Errorf("expected status=disabled, got %s", model.Status)
	}
}

func TestSchemaStatus(t *testing.T) {
	ctx := context.Background()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	status, err := SchemaStatus(ctx, db)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status.Exists {
		t.Error("want table to be missing before migration")
	}

	if err := Migrate(ctx, db); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	insertKey(t, NewKeyRepository(db), "tenant-1", 1, domain.KeyStatusActive)

	status, err = SchemaStatus(ctx, db)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !status.Exists {
		t.Error("want table to exist after migration")
	}
	if len(status.MissingColumns) != 0 {
		t.Errorf("want no missing columns, got %v", status.MissingColumns)
	}
	if status.Rows != 1 {
		t.Errorf("want 1 row, got %d", status.Rows)
	}
}
