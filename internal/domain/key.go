// Package domain はドメインモデルとビジネスルールを定義する。
package domain

import "time"

// KeyStatus は鍵ペアのステータスを表す。
type KeyStatus string

const (
	// KeyStatusActive は有効な鍵を表す。
	KeyStatusActive KeyStatus = "active"
	// KeyStatusDisabled は無効化された鍵を表す。
	KeyStatusDisabled KeyStatus = "disabled"
)

// RSAKeyPair は永続化される鍵ペアエンティティを表す。
// 秘密鍵はKMSで暗号化されたPKCS#1 PEMとしてのみ保持する。
type RSAKeyPair struct {
	ID                  string
	TenantID            string
	Generation          uint
	Bits                int
	PublicExponent      int
	PublicKeyPEM        string
	EncryptedPrivateKey []byte
	Status              KeyStatus
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// KeyMetadata は鍵ペアのメタデータを表す（秘密鍵を含まない）。
type KeyMetadata struct {
	TenantID       string
	Generation     uint
	Bits           int
	PublicExponent int
	Status         KeyStatus
	CreatedAt      time.Time
}

// PublicKey は公開鍵のみを表す。
type PublicKey struct {
	TenantID     string
	Generation   uint
	PublicKeyPEM string
}

// Key は復号済みの鍵ペアを表す。
type Key struct {
	TenantID      string
	Generation    uint
	PublicKeyPEM  string
	PrivateKeyPEM []byte // 平文のPKCS#1 PEM
}

// GenerateOptions は鍵生成パラメータを表す。ゼロ値はサービスの既定値を意味する。
type GenerateOptions struct {
	Bits           int
	PublicExponent int
}
