// Package keyenc はRSA鍵とPEM形式の相互変換を提供する。
package keyenc

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"golang.org/x/crypto/ssh"

	"rsa-key-service/internal/domain"
)

const (
	privateKeyType = "RSA PRIVATE KEY"
	publicKeyType  = "PUBLIC KEY"
)

// ToRSA は鍵をcrypto/rsaの秘密鍵に変換し、CRT値を事前計算する。
func ToRSA(key *domain.RSAKey) (*rsa.PrivateKey, error) {
	if key == nil || key.Modulus == nil || key.PrivateExponent == nil || key.P == nil || key.Q == nil {
		return nil, errors.New("incomplete RSA key")
	}
	priv := &rsa.PrivateKey{
		PublicKey: rsa.PublicKey{
			N: new(big.Int).Set(key.Modulus),
			E: key.PublicExponent,
		},
		D:      new(big.Int).Set(key.PrivateExponent),
		Primes: []*big.Int{new(big.Int).Set(key.P), new(big.Int).Set(key.Q)},
	}
	priv.Precompute()
	return priv, nil
}

// FromRSA はcrypto/rsaの2素数秘密鍵を変換する。
func FromRSA(priv *rsa.PrivateKey) (*domain.RSAKey, error) {
	if len(priv.Primes) != 2 {
		return nil, fmt.Errorf("multi-prime keys are not supported: %d primes", len(priv.Primes))
	}
	return &domain.RSAKey{
		Modulus:         new(big.Int).Set(priv.N),
		PublicExponent:  priv.E,
		PrivateExponent: new(big.Int).Set(priv.D),
		P:               new(big.Int).Set(priv.Primes[0]),
		Q:               new(big.Int).Set(priv.Primes[1]),
	}, nil
}

// PrivateKeyPEM はPKCS#1形式の秘密鍵PEMを返す。
func PrivateKeyPEM(key *domain.RSAKey) ([]byte, error) {
	priv, err := ToRSA(key)
	if err != nil {
		return nil, err
	}
	return pem.EncodeToMemory(&pem.Block{
		Type:  privateKeyType,
		Bytes: x509.MarshalPKCS1PrivateKey(priv),
	}), nil
}

// PublicKeyPEM はPKIX形式の公開鍵PEMを返す。
func PublicKeyPEM(key *domain.RSAKey) (string, error) {
	if key == nil || key.Modulus == nil {
		return "", errors.New("incomplete RSA key")
	}
	der, err := x509.MarshalPKIXPublicKey(&rsa.PublicKey{N: key.Modulus, E: key.PublicExponent})
	if err != nil {
		return "", fmt.Errorf("marshaling public key: %w", err)
	}
	return string(pem.EncodeToMemory(&pem.Block{Type: publicKeyType, Bytes: der})), nil
}

// ParsePrivateKeyPEM はPKCS#1形式の秘密鍵PEMを読み込む。
func ParsePrivateKeyPEM(data []byte) (*domain.RSAKey, error) {
	block, _ := pem.Decode(data)
	if block == nil || block.Type != privateKeyType {
		return nil, errors.New("failed to decode PEM block containing RSA private key")
	}
	priv, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parsing private key: %w", err)
	}
	return FromRSA(priv)
}

// ParsePublicKeyPEM はPKIX形式の公開鍵PEMを読み込む。
func ParsePublicKeyPEM(data []byte) (*rsa.PublicKey, error) {
	block, _ := pem.Decode(data)
	if block == nil || block.Type != publicKeyType {
		return nil, errors.New("failed to decode PEM block containing public key")
	}
	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parsing public key: %w", err)
	}
	rsaPub, ok := pub.(*rsa.PublicKey)
	if !ok {
		return nil, errors.New("key is not an RSA public key")
	}
	return rsaPub, nil
}

// AuthorizedKey は公開鍵をOpenSSHのauthorized_keys形式の1行にする。commentは空でもよい。
func AuthorizedKey(pub *rsa.PublicKey, comment string) (string, error) {
	sshPub, err := ssh.NewPublicKey(pub)
	if err != nil {
		return "", fmt.Errorf("converting public key: %w", err)
	}
	line := strings.TrimSuffix(string(ssh.MarshalAuthorizedKey(sshPub)), "\n")
	if comment != "" {
		line += " " + comment
	}
	return line + "\n", nil
}

// AuthorizedKeyFromPEM はPKIX形式の公開鍵PEMをauthorized_keys形式に変換する。
func AuthorizedKeyFromPEM(publicPEM string, comment string) (string, error) {
	pub, err := ParsePublicKeyPEM([]byte(publicPEM))
	if err != nil {
		return "", err
	}
	return AuthorizedKey(pub, comment)
}
