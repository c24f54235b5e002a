package keygen

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"
)

// DefaultRounds はMiller-Rabinの既定ラウンド数。
// 合成数を素数と誤判定する確率は最悪でも 4^-rounds。
const DefaultRounds = 10

// MillerRabin はランダムな底による強擬素数判定を行う。
type MillerRabin struct {
	rand   io.Reader
	rounds int
}

// NewMillerRabin は新しいMillerRabinを生成する。
// rがnilの場合はcrypto/rand.Reader、roundsが1未満の場合はDefaultRoundsを使う。
func NewMillerRabin(r io.Reader, rounds int) *MillerRabin {
	if r == nil {
		r = rand.Reader
	}
	if rounds < 1 {
		rounds = DefaultRounds
	}
	return &MillerRabin{rand: r, rounds: rounds}
}

// Rounds はラウンド数を返す。
func (m *MillerRabin) Rounds() int {
	return m.rounds
}

// IsProbablePrime は n が全ラウンドの強擬素数判定を通過したかを返す。
// 最初に合成数と判定されたラウンドで false を返す。
func (m *MillerRabin) IsProbablePrime(n *big.Int) (bool, error) {
	switch {
	case n.Cmp(two) < 0:
		return false, nil
	case n.Cmp(big.NewInt(3)) <= 0:
		return true, nil
	case n.Bit(0) == 0:
		return false, nil
	}

	// n-1 = d * 2^s
	nm1 := new(big.Int).Sub(n, one)
	s := nm1.TrailingZeroBits()
	d := new(big.Int).Rsh(nm1, s)

	// 底は [2, n-1] から一様に選ぶ
	span := new(big.Int).Sub(n, two)
	for i := 0; i < m.rounds; i++ {
		a, err := rand.Int(m.rand, span)
		if err != nil {
			return false, fmt.Errorf("choosing base: %w", err)
		}
		a.Add(a, two)

		if !strongProbablePrime(n, nm1, d, s, a) {
			return false, nil
		}
	}
	return true, nil
}

// strongProbablePrime は n が底 a に対する強擬素数かを返す。
func strongProbablePrime(n, nm1, d *big.Int, s uint, a *big.Int) bool {
	x := new(big.Int).Exp(a, d, n)
	if x.Cmp(one) == 0 || x.Cmp(nm1) == 0 {
		return true
	}
	for r := uint(1); r < s; r++ {
		x.Mul(x, x).Mod(x, n)
		if x.Cmp(nm1) == 0 {
			return true
		}
		if x.Cmp(one) == 0 {
			return false
		}
	}
	return false
}
