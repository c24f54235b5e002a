package infra

import (
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"

	"rsa-key-service/internal/domain"
)

// PublicKeyCache は公開鍵をプロセス内にキャッシュする。
// 公開鍵は世代ごとに不変なので、無効化時の削除だけで整合性を保てる。
type PublicKeyCache struct {
	c *cache.Cache
}

// NewPublicKeyCache は ttl で期限切れになるキャッシュを生成する。
func NewPublicKeyCache(ttl time.Duration) *PublicKeyCache {
	return &PublicKeyCache{c: cache.New(ttl, 2*ttl)}
}

func cacheKey(tenantID string, generation uint) string {
	return fmt.Sprintf("%s/%d", tenantID, generation)
}

// Get はキャッシュされた公開鍵を返す。
func (p *PublicKeyCache) Get(tenantID string, generation uint) (*domain.PublicKey, bool) {
	v, ok := p.c.Get(cacheKey(tenantID, generation))
	if !ok {
		return nil, false
	}
	pub, ok := v.(*domain.PublicKey)
	return pub, ok
}

// Set は公開鍵をキャッシュする。
func (p *PublicKeyCache) Set(pub *domain.PublicKey) {
	p.c.SetDefault(cacheKey(pub.TenantID, pub.Generation), pub)
}

// Delete はキャッシュから公開鍵を取り除く。
func (p *PublicKeyCache) Delete(tenantID string, generation uint) {
	p.c.Delete(cacheKey(tenantID, generation))
}
