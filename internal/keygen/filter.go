package keygen

import "math/big"

// smallPrimes は候補の事前除外に使う奇素数。積が32ビットに収まる範囲。
var smallPrimes = []uint64{3, 5, 7, 11, 13, 17, 19, 23, 29}

// smallPrimesProduct は smallPrimes の積 (3234846615)。
var smallPrimesProduct = func() *big.Int {
	m := uint64(1)
	for _, p := range smallPrimes {
		m *= p
	}
	return new(big.Int).SetUint64(m)
}()

var (
	one = big.NewInt(1)
	two = big.NewInt(2)
)

// HasSmallFactor は n が smallPrimes のいずれかと共通因数を持つかを返す。
// n > 29 のとき true は n が合成数であることを意味する。false は何も保証しない。
func HasSmallFactor(n *big.Int) bool {
	g := new(big.Int).GCD(nil, nil, n, smallPrimesProduct)
	return g.Cmp(one) != 0
}
