package domain

import "math/big"

// RSAKey は生成されたRSA鍵の構成要素を表す。
// 生成後に変更してはならない。
type RSAKey struct {
	Modulus         *big.Int // n = p * q
	PublicExponent  int      // e
	PrivateExponent *big.Int // d (e * d ≡ 1 mod (p-1)(q-1))
	P               *big.Int
	Q               *big.Int
}

// Bits はモジュラスのビット長を返す。
func (k *RSAKey) Bits() int {
	return k.Modulus.BitLen()
}
