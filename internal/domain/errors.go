package domain

import "errors"

var (
	// ErrKeyNotFound は指定されたテナント・世代の鍵が存在しない場合のエラー。
	ErrKeyNotFound = errors.New("key not found")

	// ErrKeyAlreadyExists は指定されたテナントに既に鍵が存在する場合のエラー。
	ErrKeyAlreadyExists = errors.New("key already exists")

	// ErrKeyDisabled は指定された鍵が無効化されている場合のエラー。
	ErrKeyDisabled = errors.New("key is disabled")

	// ErrKeyAlreadyDisabled は指定された鍵が既に無効化されている場合のエラー。
	ErrKeyAlreadyDisabled = errors.New("key is already disabled")

	// ErrInvalidTenantID はテナントIDの形式が不正な場合のエラー。
	ErrInvalidTenantID = errors.New("invalid tenant ID")

	// ErrInvalidGeneration は世代番号が不正な場合のエラー。
	ErrInvalidGeneration = errors.New("invalid generation")

	// ErrInvalidBitLength はビット長が正でない、またはバイト境界に揃っていない場合のエラー。
	ErrInvalidBitLength = errors.New("invalid bit length")

	// ErrKeySizeTooSmall は素数間距離の条件を満たせないほど鍵長が小さい場合のエラー。
	ErrKeySizeTooSmall = errors.New("key size too small")

	// ErrInvalidPublicExponent は公開指数が偶数、または3未満の場合のエラー。
	ErrInvalidPublicExponent = errors.New("invalid public exponent")

	// ErrKeyGenerationTimeout は鍵生成が制限時間内に終わらなかった場合のエラー。
	ErrKeyGenerationTimeout = errors.New("key generation timed out")

	// ErrInvalidKey は鍵の構成要素がRSAの不変条件を満たさない場合のエラー。
	ErrInvalidKey = errors.New("invalid RSA key")
)
