// Package repository はデータアクセス層の実装を提供する。
package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"wiener-keygen-service/internal/domain"
)

// KeyPairModel はgorm用のモデル定義。
// 多倍長整数は10進文字列で保存する。
type KeyPairModel struct {
	ID                       string    `gorm:"type:char(36);primaryKey"`
	Bits                     int       `gorm:"not null;index:idx_key_pairs_bits"`
	PublicExponent           string    `gorm:"type:text;not null"`
	Modulus                  string    `gorm:"type:text;not null"`
	EncryptedPrivateExponent []byte    `gorm:"type:blob;not null"`
	Vulnerable               bool      `gorm:"not null"`
	CreatedAt                time.Time `gorm:"type:datetime;not null;autoCreateTime"`
}

// TableName はテーブル名を返す。
func (KeyPairModel) TableName() string {
	return "key_pairs"
}

// BeforeCreate はレコード作成前にUUIDを生成する。
func (m *KeyPairModel) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	return nil
}

// toDomain はモデルをドメインエンティティに変換する。
func (m *KeyPairModel) toDomain() (*domain.StoredKeyPair, error) {
	e, ok := new(big.Int).SetString(m.PublicExponent, 10)
	if !ok {
		return nil, fmt.Errorf("corrupt public exponent for key pair %s", m.ID)
	}
	n, ok := new(big.Int).SetString(m.Modulus, 10)
	if !ok {
		return nil, fmt.Errorf("corrupt modulus for key pair %s", m.ID)
	}
	return &domain.StoredKeyPair{
		ID:         m.ID,
		Bits:       m.Bits,
		E:          e,
		N:          n,
		EncryptedD: m.EncryptedPrivateExponent,
		Vulnerable: m.Vulnerable,
		CreatedAt:  m.CreatedAt,
	}, nil
}

// KeyPairRepository は鍵ペアのデータアクセスを提供する。
type KeyPairRepository struct {
	db *gorm.DB
}

// NewKeyPairRepository は新しいKeyPairRepositoryを生成する。
func NewKeyPairRepository(db *gorm.DB) *KeyPairRepository {
	return &KeyPairRepository{db: db}
}

// Create は新しい鍵ペアを保存する。
func (r *KeyPairRepository) Create(ctx context.Context, kp *domain.StoredKeyPair) error {
	model := &KeyPairModel{
		ID:                       kp.ID,
		Bits:                     kp.Bits,
		PublicExponent:           kp.E.String(),
		Modulus:                  kp.N.String(),
		EncryptedPrivateExponent: kp.EncryptedD,
		Vulnerable:               kp.Vulnerable,
	}
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		slog.ErrorContext(ctx, "failed to create key pair",
			"operation", "create",
			"bits", kp.Bits,
			"error", err,
		)
		return err
	}
	// gormで設定された値をドメインエンティティに反映
	kp.ID = model.ID
	kp.CreatedAt = model.CreatedAt
	return nil
}

// FindByID は指定されたIDの鍵ペアを取得する。存在しない場合は nil を返す。
func (r *KeyPairRepository) FindByID(ctx context.Context, id string) (*domain.StoredKeyPair, error) {
	var model KeyPairModel
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		slog.ErrorContext(ctx, "failed to find key pair",
			"operation", "find_by_id",
			"id", id,
			"error", err,
		)
		return nil, err
	}
	return model.toDomain()
}

// FindAll は鍵ペアを作成日時の新しい順に最大 limit 件取得する。
func (r *KeyPairRepository) FindAll(ctx context.Context, limit int) ([]*domain.StoredKeyPair, error) {
	var models []KeyPairModel
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		slog.ErrorContext(ctx, "failed to find key pairs",
			"operation", "find_all",
			"error", err,
		)
		return nil, err
	}

	pairs := make([]*domain.StoredKeyPair, len(models))
	for i := range models {
		kp, err := models[i].toDomain()
		if err != nil {
			return nil, err
		}
		pairs[i] = kp
	}
	return pairs, nil
}

// Delete は指定されたIDの鍵ペアを削除する。削除した場合は true を返す。
func (r *KeyPairRepository) Delete(ctx context.Context, id string) (bool, error) {
	result := r.db.WithContext(ctx).
		Where("id = ?", id).
		Delete(&KeyPairModel{})
	if result.Error != nil {
		slog.ErrorContext(ctx, "failed to delete key pair",
			"operation", "delete",
			"id", id,
			"error", result.Error,
		)
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
