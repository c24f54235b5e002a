// Package handler はHTTPハンドラを提供する。
package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"rsa-key-service/internal/domain"
	"rsa-key-service/internal/middleware"
	"rsa-key-service/internal/usecase"
	"rsa-key-service/pkg/httputil"
	"rsa-key-service/pkg/keyenc"
)

var tenantIDRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// KeyHandler はHTTPハンドラを提供する。
type KeyHandler struct {
	service *usecase.KeyService
}

// NewKeyHandler は新しいKeyHandlerを生成する。
func NewKeyHandler(service *usecase.KeyService) *KeyHandler {
	return &KeyHandler{service: service}
}

func validateTenantID(tenantID string) error {
	if tenantID == "" {
		return domain.ErrInvalidTenantID
	}
	if len(tenantID) > 64 {
		return domain.ErrInvalidTenantID
	}
	if !tenantIDRegex.MatchString(tenantID) {
		return domain.ErrInvalidTenantID
	}
	return nil
}

func validateGeneration(genStr string) (uint, error) {
	gen, err := strconv.ParseUint(genStr, 10, 32)
	if err != nil || gen < 1 {
		return 0, domain.ErrInvalidGeneration
	}
	return uint(gen), nil
}

// GenerateKeyRequest は鍵生成リクエストのボディ。省略したフィールドは既定値または直前の世代の値になる。
type GenerateKeyRequest struct {
	Bits           int `json:"bits,omitempty"`
	PublicExponent int `json:"public_exponent,omitempty"`
}

// KeyMetadataResponse は鍵メタデータのレスポンス形式。
type KeyMetadataResponse struct {
	TenantID       string `json:"tenant_id"`
	Generation     uint   `json:"generation"`
	Bits           int    `json:"bits"`
	PublicExponent int    `json:"public_exponent"`
	Status         string `json:"status"`
	CreatedAt      string `json:"created_at"`
}

// KeyResponse は鍵ペアのレスポンス形式。
type KeyResponse struct {
	TenantID   string `json:"tenant_id"`
	Generation uint   `json:"generation"`
	PublicKey  string `json:"public_key"`
	PrivateKey string `json:"private_key"`
}

// PublicKeyResponse は公開鍵のレスポンス形式。
type PublicKeyResponse struct {
	TenantID   string `json:"tenant_id"`
	Generation uint   `json:"generation"`
	PublicKey  string `json:"public_key"`
}

// KeyListResponse は鍵一覧のレスポンス形式。
type KeyListResponse struct {
	Keys []KeyMetadataResponse `json:"keys"`
}

func newMetadataResponse(m *domain.KeyMetadata) KeyMetadataResponse {
	return KeyMetadataResponse{
		TenantID:       m.TenantID,
		Generation:     m.Generation,
		Bits:           m.Bits,
		PublicExponent: m.PublicExponent,
		Status:         string(m.Status),
		CreatedAt:      m.CreatedAt.Format(time.RFC3339),
	}
}

// writeServiceError はユースケースのエラーをHTTPステータスに変換する。
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidBitLength):
		httputil.Error(w, http.StatusBadRequest, "INVALID_BIT_LENGTH", "bits must be a positive multiple of 16")
	case errors.Is(err, domain.ErrKeySizeTooSmall):
		httputil.Error(w, http.StatusBadRequest, "KEY_SIZE_TOO_SMALL", "bits is below the minimum key size")
	case errors.Is(err, domain.ErrInvalidPublicExponent):
		httputil.Error(w, http.StatusBadRequest, "INVALID_PUBLIC_EXPONENT", "public exponent must be odd and at least 3")
	case errors.Is(err, domain.ErrKeyAlreadyExists):
		httputil.Error(w, http.StatusConflict, "KEY_ALREADY_EXISTS", "key already exists for this tenant")
	case errors.Is(err, domain.ErrKeyAlreadyDisabled):
		httputil.Error(w, http.StatusConflict, "KEY_ALREADY_DISABLED", "key is already disabled")
	case errors.Is(err, domain.ErrKeyNotFound):
		httputil.Error(w, http.StatusNotFound, "KEY_NOT_FOUND", "key not found")
	case errors.Is(err, domain.ErrKeyDisabled):
		httputil.Error(w, http.StatusGone, "KEY_DISABLED", "key has been disabled")
	case errors.Is(err, domain.ErrKeyGenerationTimeout):
		httputil.Error(w, http.StatusServiceUnavailable, "KEY_GENERATION_TIMEOUT", "key generation timed out")
	default:
		httputil.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
	}
}

func tenantParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	tenantID := chi.URLParam(r, "tenant_id")
	if err := validateTenantID(tenantID); err != nil {
		httputil.Error(w, http.StatusBadRequest, "INVALID_TENANT_ID", "invalid tenant ID format")
		return "", false
	}
	return tenantID, true
}

func generationParam(w http.ResponseWriter, r *http.Request) (uint, bool) {
	generation, err := validateGeneration(chi.URLParam(r, "generation"))
	if err != nil {
		httputil.Error(w, http.StatusBadRequest, "INVALID_GENERATION", "invalid generation number")
		return 0, false
	}
	return generation, true
}

func decodeGenerateRequest(w http.ResponseWriter, r *http.Request) (domain.GenerateOptions, bool) {
	var req GenerateKeyRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "INVALID_REQUEST_BODY", "invalid request body")
		return domain.GenerateOptions{}, false
	}
	return domain.GenerateOptions{Bits: req.Bits, PublicExponent: req.PublicExponent}, true
}

// CreateKey は新しいRSA鍵ペアを生成する。
func (h *KeyHandler) CreateKey(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenantParam(w, r)
	if !ok {
		return
	}
	opts, ok := decodeGenerateRequest(w, r)
	if !ok {
		return
	}

	metadata, err := h.service.CreateKey(r.Context(), tenantID, opts)
	if err != nil {
		middleware.WriteAuditLog(r.Context(), "CREATE_KEY", tenantID, 0, middleware.ResultFailed)
		writeServiceError(w, err)
		return
	}

	middleware.WriteAuditLog(r.Context(), "CREATE_KEY", tenantID, metadata.Generation, middleware.ResultSuccess)
	httputil.JSON(w, http.StatusCreated, newMetadataResponse(metadata))
}

// GetCurrentKey は現在有効な鍵ペアを取得する。
func (h *KeyHandler) GetCurrentKey(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenantParam(w, r)
	if !ok {
		return
	}

	key, err := h.service.GetCurrentKey(r.Context(), tenantID)
	if err != nil {
		middleware.WriteAuditLog(r.Context(), "GET_CURRENT_KEY", tenantID, 0, middleware.ResultFailed)
		writeServiceError(w, err)
		return
	}

	middleware.WriteAuditLog(r.Context(), "GET_CURRENT_KEY", tenantID, key.Generation, middleware.ResultSuccess)
	httputil.JSON(w, http.StatusOK, KeyResponse{
		TenantID:   key.TenantID,
		Generation: key.Generation,
		PublicKey:  key.PublicKeyPEM,
		PrivateKey: string(key.PrivateKeyPEM),
	})
}

// GetKeyByGeneration は指定された世代の鍵ペアを取得する。
func (h *KeyHandler) GetKeyByGeneration(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenantParam(w, r)
	if !ok {
		return
	}
	generation, ok := generationParam(w, r)
	if !ok {
		return
	}

	key, err := h.service.GetKeyByGeneration(r.Context(), tenantID, generation)
	if err != nil {
		middleware.WriteAuditLog(r.Context(), "GET_KEY_BY_GENERATION", tenantID, generation, middleware.ResultFailed)
		writeServiceError(w, err)
		return
	}

	middleware.WriteAuditLog(r.Context(), "GET_KEY_BY_GENERATION", tenantID, generation, middleware.ResultSuccess)
	httputil.JSON(w, http.StatusOK, KeyResponse{
		TenantID:   key.TenantID,
		Generation: key.Generation,
		PublicKey:  key.PublicKeyPEM,
		PrivateKey: string(key.PrivateKeyPEM),
	})
}

// GetPublicKey は指定された世代の公開鍵を取得する。
// format=ssh の場合はauthorized_keys形式のテキストを返す。
func (h *KeyHandler) GetPublicKey(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenantParam(w, r)
	if !ok {
		return
	}
	generation, ok := generationParam(w, r)
	if !ok {
		return
	}

	pub, err := h.service.GetPublicKey(r.Context(), tenantID, generation)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	switch r.URL.Query().Get("format") {
	case "", "pem":
	case "ssh":
		line, err := keyenc.AuthorizedKeyFromPEM(pub.PublicKeyPEM, fmt.Sprintf("%s/%d", pub.TenantID, pub.Generation))
		if err != nil {
			slog.ErrorContext(r.Context(), "failed to convert public key",
				"tenant_id", tenantID,
				"generation", generation,
				"error", err,
			)
			httputil.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(line))
		return
	default:
		httputil.Error(w, http.StatusBadRequest, "INVALID_FORMAT", "format must be pem or ssh")
		return
	}

	httputil.JSON(w, http.StatusOK, PublicKeyResponse{
		TenantID:   pub.TenantID,
		Generation: pub.Generation,
		PublicKey:  pub.PublicKeyPEM,
	})
}

// RotateKey は鍵ペアをローテーションする。
func (h *KeyHandler) RotateKey(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenantParam(w, r)
	if !ok {
		return
	}
	opts, ok := decodeGenerateRequest(w, r)
	if !ok {
		return
	}

	metadata, err := h.service.RotateKey(r.Context(), tenantID, opts)
	if err != nil {
		middleware.WriteAuditLog(r.Context(), "ROTATE_KEY", tenantID, 0, middleware.ResultFailed)
		writeServiceError(w, err)
		return
	}

	middleware.WriteAuditLog(r.Context(), "ROTATE_KEY", tenantID, metadata.Generation, middleware.ResultSuccess)
	httputil.JSON(w, http.StatusCreated, newMetadataResponse(metadata))
}

// ListKeys は鍵一覧を取得する。
func (h *KeyHandler) ListKeys(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenantParam(w, r)
	if !ok {
		return
	}

	keys, err := h.service.ListKeys(r.Context(), tenantID)
	if err != nil {
		middleware.WriteAuditLog(r.Context(), "LIST_KEYS", tenantID, 0, middleware.ResultFailed)
		writeServiceError(w, err)
		return
	}

	middleware.WriteAuditLog(r.Context(), "LIST_KEYS", tenantID, 0, middleware.ResultSuccess)
	response := KeyListResponse{
		Keys: make([]KeyMetadataResponse, len(keys)),
	}
	for i, k := range keys {
		response.Keys[i] = newMetadataResponse(k)
	}
	httputil.JSON(w, http.StatusOK, response)
}

// DisableKey は鍵を無効化する。
func (h *KeyHandler) DisableKey(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenantParam(w, r)
	if !ok {
		return
	}
	generation, ok := generationParam(w, r)
	if !ok {
		return
	}

	if err := h.service.DisableKey(r.Context(), tenantID, generation); err != nil {
		middleware.WriteAuditLog(r.Context(), "DISABLE_KEY", tenantID, generation, middleware.ResultFailed)
		writeServiceError(w, err)
		return
	}

	middleware.WriteAuditLog(r.Context(), "DISABLE_KEY", tenantID, generation, middleware.ResultSuccess)
	w.WriteHeader(http.StatusAccepted)
}
