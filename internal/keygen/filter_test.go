package keygen

import (
	"crypto/rand"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSmallPrimesProduct(t *testing.T) {
	assert.Equal(t, uint64(3234846615), smallPrimesProduct.Uint64())
	assert.True(t, smallPrimesProduct.IsUint64())
}

func TestHasSmallFactor_FlaggedValuesAreComposite(t *testing.T) {
	s := NewSampler(nil)
	flagged := 0
	for i := 0; i < 2000; i++ {
		n, err := s.Sample(128)
		require.NoError(t, err)
		if !HasSmallFactor(n) {
			continue
		}
		flagged++

		divisible := false
		for _, p := range smallPrimes {
			if new(big.Int).Mod(n, new(big.Int).SetUint64(p)).Sign() == 0 {
				divisible = true
				break
			}
		}
		assert.True(t, divisible, "%s flagged without a small prime divisor", n)
		assert.False(t, n.ProbablyPrime(20), "%s flagged but prime", n)
	}
	// 奇数の約6割は3〜29のいずれかで割り切れる
	assert.Greater(t, flagged, 1000)
}

func TestHasSmallFactor_PrimesPass(t *testing.T) {
	for _, v := range []int64{31, 37, 41, 101, 65537, 2147483647} {
		assert.False(t, HasSmallFactor(big.NewInt(v)), "%d", v)
	}
	for i := 0; i < 20; i++ {
		p, err := rand.Prime(rand.Reader, 256)
		require.NoError(t, err)
		assert.False(t, HasSmallFactor(p), "%s", p)
	}
}

func TestHasSmallFactor_KnownComposites(t *testing.T) {
	for _, v := range []int64{9, 15, 21, 25, 49, 87, 29 * 31, 3 * 1000003} {
		assert.True(t, HasSmallFactor(big.NewInt(v)), "%d", v)
	}
	// 31以上の素因数だけを持つ合成数は通過する
	assert.False(t, HasSmallFactor(big.NewInt(31*37)))
}
