// Package keygen はRSA鍵素材の生成パイプラインを提供する。
//
// 候補の抽出（Sampler）、小素数による合成数の除外（HasSmallFactor）、
// Miller-Rabin判定（MillerRabin）、素数探索（Finder）、
// 素数ペアの検証（CheckPair）、鍵の組み立て（Assembler）からなる。
package keygen

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"

	"rsa-key-service/internal/domain"
)

// Sampler は指定ビット長のランダムな奇数を生成する。
type Sampler struct {
	rand io.Reader
}

// NewSampler は新しいSamplerを生成する。rがnilの場合はcrypto/rand.Readerを使う。
func NewSampler(r io.Reader) *Sampler {
	if r == nil {
		r = rand.Reader
	}
	return &Sampler{rand: r}
}

// Sample は最上位ビット(bits-1)と最下位ビットを立てた bits ビットの奇数を返す。
// bits は正の8の倍数でなければならない。
func (s *Sampler) Sample(bits int) (*big.Int, error) {
	if bits <= 0 || bits%8 != 0 {
		return nil, fmt.Errorf("%w: %d", domain.ErrInvalidBitLength, bits)
	}

	buf := make([]byte, bits/8)
	if _, err := io.ReadFull(s.rand, buf); err != nil {
		return nil, fmt.Errorf("reading random bytes: %w", err)
	}

	n := new(big.Int).SetBytes(buf)
	n.SetBit(n, bits-1, 1)
	n.SetBit(n, 0, 1)
	return n, nil
}
