package keygen

import (
	"fmt"
	"math/big"

	"rsa-key-service/internal/domain"
)

// Verify は鍵が以下をすべて満たすかを検証する。
//   - n = p * q, p != q
//   - gcd(e, (p-1)(q-1)) = 1
//   - d * e ≡ 1 (mod (p-1)(q-1))
//   - |p - q| > 2^(⌈log2 n⌉/2 - 100)
//
// p, q の素数性は検証しない。
func Verify(key *domain.RSAKey) error {
	if key == nil || key.Modulus == nil || key.PrivateExponent == nil || key.P == nil || key.Q == nil {
		return fmt.Errorf("%w: missing component", domain.ErrInvalidKey)
	}
	if key.P.Cmp(one) <= 0 || key.Q.Cmp(one) <= 0 {
		return fmt.Errorf("%w: primes must be greater than 1", domain.ErrInvalidKey)
	}

	n, phi, ok := CheckPair(key.P, key.Q)
	if !ok {
		return fmt.Errorf("%w: primes are too close", domain.ErrInvalidKey)
	}
	if n.Cmp(key.Modulus) != 0 {
		return fmt.Errorf("%w: modulus is not p*q", domain.ErrInvalidKey)
	}

	e := big.NewInt(int64(key.PublicExponent))
	if new(big.Int).GCD(nil, nil, e, phi).Cmp(one) != 0 {
		return fmt.Errorf("%w: public exponent is not coprime with totient", domain.ErrInvalidKey)
	}

	ed := new(big.Int).Mul(e, key.PrivateExponent)
	if ed.Mod(ed, phi).Cmp(one) != 0 {
		return fmt.Errorf("%w: private exponent is not the inverse of e", domain.ErrInvalidKey)
	}
	return nil
}
