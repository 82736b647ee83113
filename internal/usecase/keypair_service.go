// Package usecase はアプリケーションのユースケースを実装する。
package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"wiener-keygen-service/internal/domain"
	"wiener-keygen-service/internal/export"
	"wiener-keygen-service/internal/logctx"
	"wiener-keygen-service/internal/wiener"
)

var tracer = otel.Tracer("wiener-keygen-service/internal/usecase")

// KeyPairGenerator は脆弱なRSA鍵ペアを生成する。並行呼び出しに対して安全であること。
type KeyPairGenerator interface {
	Generate(ctx context.Context, nbits int) (*domain.KeyPair, error)
}

// KeyPairRepository はデータアクセスのインターフェース。
type KeyPairRepository interface {
	Create(ctx context.Context, kp *domain.StoredKeyPair) error
	FindByID(ctx context.Context, id string) (*domain.StoredKeyPair, error)
	FindAll(ctx context.Context, limit int) ([]*domain.StoredKeyPair, error)
	Delete(ctx context.Context, id string) (bool, error)
}

// KMSClient は暗号化/復号のインターフェース。
type KMSClient interface {
	Encrypt(ctx context.Context, plaintext []byte) ([]byte, error)
	Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error)
}

// ServiceConfig はKeyPairServiceの動作設定。
type ServiceConfig struct {
	DefaultBits  int
	BatchWorkers int
	MaxBatchSize int
	ListLimit    int
}

// KeyPairService は鍵ペアに関するビジネスロジックを提供する。
type KeyPairService struct {
	gen       KeyPairGenerator
	repo      KeyPairRepository
	kmsClient KMSClient
	cfg       ServiceConfig
}

// NewKeyPairService は新しいKeyPairServiceを生成する。
func NewKeyPairService(gen KeyPairGenerator, repo KeyPairRepository, kmsClient KMSClient, cfg ServiceConfig) *KeyPairService {
	if cfg.BatchWorkers < 1 {
		cfg.BatchWorkers = 1
	}
	if cfg.ListLimit < 1 {
		cfg.ListLimit = 100
	}
	return &KeyPairService{
		gen:       gen,
		repo:      repo,
		kmsClient: kmsClient,
		cfg:       cfg,
	}
}

func (s *KeyPairService) resolveBits(bits int) int {
	if bits == 0 {
		return s.cfg.DefaultBits
	}
	return bits
}

// CreateKeyPair は鍵ペアを1件生成し、秘密指数をKMSで暗号化して保存する。
// bits が 0 の場合は既定のビット長を使う。
func (s *KeyPairService) CreateKeyPair(ctx context.Context, bits int) (*domain.KeyPairMetadata, error) {
	bits = s.resolveBits(bits)
	ctx = logctx.WithBits(ctx, bits)
	ctx, span := tracer.Start(ctx, "KeyPairService.CreateKeyPair",
		trace.WithAttributes(attribute.Int("keypair.bits", bits)))
	defer span.End()

	metadata, err := s.createOne(ctx, bits)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.String("keypair.id", metadata.ID))
	return metadata, nil
}

// CreateBatch は count 件の鍵ペアを並行に生成して保存する。
// 1件でも失敗した場合は残りの生成を取り消し、保存済みの鍵ペアを削除してエラーを返す。
func (s *KeyPairService) CreateBatch(ctx context.Context, bits, count int) ([]*domain.KeyPairMetadata, error) {
	if count < 1 || (s.cfg.MaxBatchSize > 0 && count > s.cfg.MaxBatchSize) {
		return nil, fmt.Errorf("%w: %d (max %d)", domain.ErrInvalidBatchSize, count, s.cfg.MaxBatchSize)
	}
	bits = s.resolveBits(bits)
	ctx = logctx.WithBits(ctx, bits)
	ctx, span := tracer.Start(ctx, "KeyPairService.CreateBatch",
		trace.WithAttributes(
			attribute.Int("keypair.bits", bits),
			attribute.Int("keypair.count", count),
		))
	defer span.End()

	results := make([]*domain.KeyPairMetadata, count)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.BatchWorkers)
	for i := range count {
		g.Go(func() error {
			metadata, err := s.createOne(logctx.WithBatchIndex(gctx, i), bits)
			if err != nil {
				return fmt.Errorf("key pair %d: %w", i, err)
			}
			results[i] = metadata
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.discard(ctx, results)
		return nil, err
	}
	return results, nil
}

// discard は失敗したバッチで保存済みの鍵ペアを削除する。
// 呼び出し元の context が取り消されていても削除は行う。
func (s *KeyPairService) discard(ctx context.Context, results []*domain.KeyPairMetadata) {
	ctx = context.WithoutCancel(ctx)
	for _, metadata := range results {
		if metadata == nil {
			continue
		}
		if _, err := s.repo.Delete(ctx, metadata.ID); err != nil {
			slog.ErrorContext(logctx.WithKeyPairID(ctx, metadata.ID), "failed to discard key pair of failed batch",
				"operation", "create_batch",
				"error", err,
			)
		}
	}
}

func (s *KeyPairService) createOne(ctx context.Context, bits int) (*domain.KeyPairMetadata, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	kp, err := s.gen.Generate(ctx, bits)
	if err != nil {
		return nil, fmt.Errorf("generating key pair: %w", err)
	}

	// 連分数攻撃で d を実際に復元できるかを記録する
	vulnerable := false
	if rec, ok := wiener.Recover(kp.E, kp.N); ok && rec.D.Cmp(kp.D) == 0 {
		vulnerable = true
	} else {
		slog.WarnContext(ctx, "generated key pair resists continued fraction attack",
			"operation", "create_key_pair",
		)
	}

	encryptedD, err := s.kmsClient.Encrypt(ctx, []byte(kp.D.String()))
	if err != nil {
		return nil, fmt.Errorf("encrypting private exponent: %w", err)
	}

	stored := &domain.StoredKeyPair{
		Bits:       bits,
		E:          kp.E,
		N:          kp.N,
		EncryptedD: encryptedD,
		Vulnerable: vulnerable,
	}
	if err := s.repo.Create(ctx, stored); err != nil {
		return nil, fmt.Errorf("creating key pair: %w", err)
	}
	return toMetadata(stored), nil
}

// GetKeyPair は鍵ペアを取得し、秘密指数を復号して返す。
func (s *KeyPairService) GetKeyPair(ctx context.Context, id string) (*domain.RevealedKeyPair, error) {
	ctx = logctx.WithKeyPairID(ctx, id)
	ctx, span := tracer.Start(ctx, "KeyPairService.GetKeyPair",
		trace.WithAttributes(attribute.String("keypair.id", id)))
	defer span.End()

	stored, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}

	plain, err := s.kmsClient.Decrypt(ctx, stored.EncryptedD)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("decrypting private exponent: %w", err)
	}
	d, ok := new(big.Int).SetString(string(plain), 10)
	if !ok {
		return nil, fmt.Errorf("decrypted private exponent of %s is not a decimal integer", id)
	}

	return &domain.RevealedKeyPair{
		KeyPairMetadata: *toMetadata(stored),
		D:               d,
	}, nil
}

// ListKeyPairs は新しい順に鍵ペアのメタデータを返す。
func (s *KeyPairService) ListKeyPairs(ctx context.Context) ([]*domain.KeyPairMetadata, error) {
	pairs, err := s.repo.FindAll(ctx, s.cfg.ListLimit)
	if err != nil {
		return nil, fmt.Errorf("finding key pairs: %w", err)
	}

	metadata := make([]*domain.KeyPairMetadata, len(pairs))
	for i, kp := range pairs {
		metadata[i] = toMetadata(kp)
	}
	return metadata, nil
}

// DeleteKeyPair は鍵ペアを削除する。
func (s *KeyPairService) DeleteKeyPair(ctx context.Context, id string) error {
	if err := validateID(id); err != nil {
		return err
	}
	ctx = logctx.WithKeyPairID(ctx, id)
	deleted, err := s.repo.Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("deleting key pair: %w", err)
	}
	if !deleted {
		return domain.ErrKeyPairNotFound
	}
	return nil
}

// Challenge は保存済みの鍵ペアから攻撃ソルバー向けの課題を作る。
func (s *KeyPairService) Challenge(ctx context.Context, id string) (*export.Challenge, error) {
	kp, err := s.GetKeyPair(ctx, id)
	if err != nil {
		return nil, err
	}
	c, err := export.NewChallenge(domain.NewKeyPair(kp.E, kp.N, kp.D, nil, nil), nil)
	if err != nil {
		return nil, fmt.Errorf("building challenge: %w", err)
	}
	return c, nil
}

func (s *KeyPairService) find(ctx context.Context, id string) (*domain.StoredKeyPair, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}
	stored, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("finding key pair: %w", err)
	}
	if stored == nil {
		return nil, domain.ErrKeyPairNotFound
	}
	return stored, nil
}

func validateID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("%w: %q", domain.ErrInvalidKeyPairID, id)
	}
	return nil
}

func toMetadata(kp *domain.StoredKeyPair) *domain.KeyPairMetadata {
	return &domain.KeyPairMetadata{
		ID:         kp.ID,
		Bits:       kp.Bits,
		E:          kp.E,
		N:          kp.N,
		Vulnerable: kp.Vulnerable,
		CreatedAt:  kp.CreatedAt,
	}
}
