package keygen

import "math/big"

// separationMargin は |p-q| の下限 2^(k/2 - separationMargin) の差分ビット数。
const separationMargin = 100

// CheckPair は素数 p, q のモジュラスとオイラーのトーシェントを返す。
//
// k = ⌈log2(p*q)⌉ として |p-q| > 2^(k/2 - 100) を満たさないペアは
// Fermat法で分解されうるため ok=false を返す。
// k は各素数ではなくモジュラスのビット長から求める。
func CheckPair(p, q *big.Int) (modulus, totient *big.Int, ok bool) {
	n := new(big.Int).Mul(p, q)
	k := ceilLog2(n)

	// |p-q| > 2^(k/2-100)  <=>  (p-q)^2 > 2^(k-200)
	diff := new(big.Int).Sub(p, q)
	diff.Mul(diff, diff)
	if e := k - 2*separationMargin; e >= 0 {
		if diff.Cmp(new(big.Int).Lsh(one, uint(e))) <= 0 {
			return nil, nil, false
		}
	} else if diff.Sign() == 0 {
		// 下限が1未満なので p != q であれば十分
		return nil, nil, false
	}

	// n - (p + q - 1) = (p-1)(q-1)
	phi := new(big.Int).Add(p, q)
	phi.Sub(phi, one)
	phi.Sub(n, phi)
	return n, phi, true
}

// ceilLog2 は n >= 1 に対して ⌈log2 n⌉ を返す。
func ceilLog2(n *big.Int) int {
	k := n.BitLen()
	// 2の冪のときだけ BitLen-1 になる
	if n.TrailingZeroBits() == uint(k-1) {
		return k - 1
	}
	return k
}
