// Package usecase はアプリケーションのユースケースを実装する。
package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"rsa-key-service/internal/domain"
	"rsa-key-service/pkg/keyenc"
)

// KeyRepository はデータアクセスのインターフェース。
type KeyRepository interface {
	ExistsByTenantID(ctx context.Context, tenantID string) (bool, error)
	Create(ctx context.Context, key *domain.RSAKeyPair) error
	FindByTenantIDAndGeneration(ctx context.Context, tenantID string, generation uint) (*domain.RSAKeyPair, error)
	FindLatestActiveByTenantID(ctx context.Context, tenantID string) (*domain.RSAKeyPair, error)
	FindAllByTenantID(ctx context.Context, tenantID string) ([]*domain.RSAKeyPair, error)
	GetMaxGeneration(ctx context.Context, tenantID string) (uint, error)
	UpdateStatus(ctx context.Context, id string, status domain.KeyStatus) error
}

// KMSClient は暗号化/復号のインターフェース。
type KMSClient interface {
	Encrypt(ctx context.Context, plaintext []byte) ([]byte, error)
	Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error)
}

// KeyGenerator はRSA鍵生成のインターフェース。
type KeyGenerator interface {
	ValidateParams(bits, publicExponent int) error
	GenerateKey(ctx context.Context, bits, publicExponent int) (*domain.RSAKey, error)
}

// PublicKeyCache は公開鍵のキャッシュのインターフェース。
type PublicKeyCache interface {
	Get(tenantID string, generation uint) (*domain.PublicKey, bool)
	Set(pub *domain.PublicKey)
	Delete(tenantID string, generation uint)
}

// KeyService はRSA鍵ペアに関するビジネスロジックを提供する。
type KeyService struct {
	repo      KeyRepository
	kmsClient KMSClient
	generator KeyGenerator
	cache     PublicKeyCache
	defaults  domain.GenerateOptions
	timeout   time.Duration
	tracer    trace.Tracer
	// 同一テナント・同一パラメータの同時生成を1回にまとめる
	flights singleflight.Group
}

// NewKeyService は新しいKeyServiceを生成する。
// defaultsは要求でビット長・公開指数が省略された場合に使う。timeoutが0なら鍵生成に期限を設けない。
func NewKeyService(repo KeyRepository, kmsClient KMSClient, generator KeyGenerator, defaults domain.GenerateOptions, timeout time.Duration) *KeyService {
	return &KeyService{
		repo:      repo,
		kmsClient: kmsClient,
		generator: generator,
		defaults:  defaults,
		timeout:   timeout,
		tracer:    otel.Tracer("rsa-key-service/internal/usecase"),
	}
}

// UsePublicKeyCache はGetPublicKeyの結果をキャッシュする。
func (s *KeyService) UsePublicKeyCache(c PublicKeyCache) {
	s.cache = c
}

// resolveOptions は省略されたパラメータを base で補う。
func resolveOptions(opts, base domain.GenerateOptions) domain.GenerateOptions {
	if opts.Bits == 0 {
		opts.Bits = base.Bits
	}
	if opts.PublicExponent == 0 {
		opts.PublicExponent = base.PublicExponent
	}
	return opts
}

// generateKeyPair は鍵を生成し、秘密鍵をKMSで暗号化した保存用エンティティを返す。
func (s *KeyService) generateKeyPair(ctx context.Context, tenantID string, generation uint, opts domain.GenerateOptions) (*domain.RSAKeyPair, error) {
	ctx, span := s.tracer.Start(ctx, "KeyService.generateKeyPair", trace.WithAttributes(
		attribute.String("tenant_id", tenantID),
		attribute.Int("generation", int(generation)),
		attribute.Int("bits", opts.Bits),
	))
	defer span.End()

	genCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		genCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	key, err := s.generator.GenerateKey(genCtx, opts.Bits, opts.PublicExponent)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %v", domain.ErrKeyGenerationTimeout, err)
		}
		return nil, fmt.Errorf("generating key: %w", err)
	}

	publicPEM, err := keyenc.PublicKeyPEM(key)
	if err != nil {
		return nil, fmt.Errorf("encoding public key: %w", err)
	}
	privatePEM, err := keyenc.PrivateKeyPEM(key)
	if err != nil {
		return nil, fmt.Errorf("encoding private key: %w", err)
	}

	// KMSで暗号化
	encrypted, err := s.kmsClient.Encrypt(ctx, privatePEM)
	if err != nil {
		return nil, fmt.Errorf("encrypting key: %w", err)
	}

	return &domain.RSAKeyPair{
		TenantID:            tenantID,
		Generation:          generation,
		Bits:                opts.Bits,
		PublicExponent:      key.PublicExponent,
		PublicKeyPEM:        publicPEM,
		EncryptedPrivateKey: encrypted,
		Status:              domain.KeyStatusActive,
	}, nil
}

// CreateKey は指定されたテナントに対して最初のRSA鍵ペアを生成する。
func (s *KeyService) CreateKey(ctx context.Context, tenantID string, opts domain.GenerateOptions) (*domain.KeyMetadata, error) {
	opts = resolveOptions(opts, s.defaults)
	// 乱数を消費する前にパラメータを検証
	if err := s.generator.ValidateParams(opts.Bits, opts.PublicExponent); err != nil {
		return nil, err
	}
	return s.shared("create", tenantID, opts, func() (*domain.KeyMetadata, error) {
		return s.createKey(ctx, tenantID, opts)
	})
}

func (s *KeyService) createKey(ctx context.Context, tenantID string, opts domain.GenerateOptions) (*domain.KeyMetadata, error) {
	exists, err := s.repo.ExistsByTenantID(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("checking existing key: %w", err)
	}
	if exists {
		return nil, domain.ErrKeyAlreadyExists
	}

	key, err := s.generateKeyPair(ctx, tenantID, 1, opts)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, key); err != nil {
		return nil, fmt.Errorf("creating key: %w", err)
	}
	return toMetadata(key), nil
}

// shared は同じ操作・テナント・パラメータの同時呼び出しで fn を1回だけ実行する。
func (s *KeyService) shared(op, tenantID string, opts domain.GenerateOptions, fn func() (*domain.KeyMetadata, error)) (*domain.KeyMetadata, error) {
	key := fmt.Sprintf("%s/%s/%d/%d", op, tenantID, opts.Bits, opts.PublicExponent)
	v, err, _ := s.flights.Do(key, func() (any, error) {
		return fn()
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.KeyMetadata), nil
}

// GetCurrentKey は指定されたテナントの現在有効な鍵ペアを取得する。
func (s *KeyService) GetCurrentKey(ctx context.Context, tenantID string) (*domain.Key, error) {
	key, err := s.repo.FindLatestActiveByTenantID(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("finding current key: %w", err)
	}
	if key == nil {
		return nil, domain.ErrKeyNotFound
	}
	return s.decrypt(ctx, key)
}

// GetKeyByGeneration は指定されたテナント・世代の鍵ペアを取得する。
func (s *KeyService) GetKeyByGeneration(ctx context.Context, tenantID string, generation uint) (*domain.Key, error) {
	key, err := s.findEnabled(ctx, tenantID, generation)
	if err != nil {
		return nil, err
	}
	return s.decrypt(ctx, key)
}

// GetPublicKey は指定されたテナント・世代の公開鍵を取得する。KMSは呼ばない。
func (s *KeyService) GetPublicKey(ctx context.Context, tenantID string, generation uint) (*domain.PublicKey, error) {
	if s.cache != nil {
		if pub, ok := s.cache.Get(tenantID, generation); ok {
			return pub, nil
		}
	}

	key, err := s.findEnabled(ctx, tenantID, generation)
	if err != nil {
		return nil, err
	}
	pub := &domain.PublicKey{
		TenantID:     key.TenantID,
		Generation:   key.Generation,
		PublicKeyPEM: key.PublicKeyPEM,
	}
	if s.cache != nil {
		s.cache.Set(pub)
	}
	return pub, nil
}

func (s *KeyService) findEnabled(ctx context.Context, tenantID string, generation uint) (*domain.RSAKeyPair, error) {
	key, err := s.repo.FindByTenantIDAndGeneration(ctx, tenantID, generation)
	if err != nil {
		return nil, fmt.Errorf("finding key: %w", err)
	}
	if key == nil {
		return nil, domain.ErrKeyNotFound
	}
	if key.Status == domain.KeyStatusDisabled {
		return nil, domain.ErrKeyDisabled
	}
	return key, nil
}

func (s *KeyService) decrypt(ctx context.Context, key *domain.RSAKeyPair) (*domain.Key, error) {
	// KMSで復号
	privatePEM, err := s.kmsClient.Decrypt(ctx, key.EncryptedPrivateKey)
	if err != nil {
		return nil, fmt.Errorf("decrypting key: %w", err)
	}
	return &domain.Key{
		TenantID:      key.TenantID,
		Generation:    key.Generation,
		PublicKeyPEM:  key.PublicKeyPEM,
		PrivateKeyPEM: privatePEM,
	}, nil
}

// RotateKey は指定されたテナントに対して新しい世代の鍵ペアを生成する。
// 省略されたパラメータは最新の世代から引き継ぐ。
func (s *KeyService) RotateKey(ctx context.Context, tenantID string, opts domain.GenerateOptions) (*domain.KeyMetadata, error) {
	maxGen, err := s.repo.GetMaxGeneration(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("getting max generation: %w", err)
	}
	if maxGen == 0 {
		return nil, domain.ErrKeyNotFound
	}

	base := s.defaults
	latest, err := s.repo.FindByTenantIDAndGeneration(ctx, tenantID, maxGen)
	if err != nil {
		return nil, fmt.Errorf("finding latest key: %w", err)
	}
	if latest != nil {
		base = domain.GenerateOptions{Bits: latest.Bits, PublicExponent: latest.PublicExponent}
	}
	opts = resolveOptions(opts, base)
	if err := s.generator.ValidateParams(opts.Bits, opts.PublicExponent); err != nil {
		return nil, err
	}

	return s.shared("rotate", tenantID, opts, func() (*domain.KeyMetadata, error) {
		// 待っている間に別の世代が作られている可能性があるため取り直す
		maxGen, err := s.repo.GetMaxGeneration(ctx, tenantID)
		if err != nil {
			return nil, fmt.Errorf("getting max generation: %w", err)
		}
		key, err := s.generateKeyPair(ctx, tenantID, maxGen+1, opts)
		if err != nil {
			return nil, err
		}
		if err := s.repo.Create(ctx, key); err != nil {
			return nil, fmt.Errorf("creating key: %w", err)
		}
		return toMetadata(key), nil
	})
}

// ListKeys は指定されたテナントの全世代の鍵メタデータを取得する。
func (s *KeyService) ListKeys(ctx context.Context, tenantID string) ([]*domain.KeyMetadata, error) {
	keys, err := s.repo.FindAllByTenantID(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("finding keys: %w", err)
	}

	metadata := make([]*domain.KeyMetadata, len(keys))
	for i, k := range keys {
		metadata[i] = toMetadata(k)
	}
	return metadata, nil
}

// DisableKey は指定されたテナント・世代の鍵を無効化する。
func (s *KeyService) DisableKey(ctx context.Context, tenantID string, generation uint) error {
	key, err := s.repo.FindByTenantIDAndGeneration(ctx, tenantID, generation)
	if err != nil {
		return fmt.Errorf("finding key: %w", err)
	}
	if key == nil {
		return domain.ErrKeyNotFound
	}
	if key.Status == domain.KeyStatusDisabled {
		return domain.ErrKeyAlreadyDisabled
	}

	if err := s.repo.UpdateStatus(ctx, key.ID, domain.KeyStatusDisabled); err != nil {
		return fmt.Errorf("updating status: %w", err)
	}
	if s.cache != nil {
		s.cache.Delete(tenantID, generation)
	}
	return nil
}

func toMetadata(k *domain.RSAKeyPair) *domain.KeyMetadata {
	return &domain.KeyMetadata{
		TenantID:       k.TenantID,
		Generation:     k.Generation,
		Bits:           k.Bits,
		PublicExponent: k.PublicExponent,
		Status:         k.Status,
		CreatedAt:      k.CreatedAt,
	}
}
