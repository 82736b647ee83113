// Package handler はHTTPハンドラを提供する。
package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"wiener-keygen-service/internal/domain"
	"wiener-keygen-service/internal/middleware"
	"wiener-keygen-service/internal/usecase"
	"wiener-keygen-service/pkg/httputil"
)

const (
	maxKeyBits      = 8192
	maxRequestBytes = 1 << 10
)

// KeyPairHandler はHTTPハンドラを提供する。
type KeyPairHandler struct {
	service *usecase.KeyPairService
}

// NewKeyPairHandler は新しいKeyPairHandlerを生成する。
func NewKeyPairHandler(service *usecase.KeyPairService) *KeyPairHandler {
	return &KeyPairHandler{service: service}
}

// CreateKeyPairRequest は鍵ペア生成のリクエスト形式。bits 省略時は既定値。
type CreateKeyPairRequest struct {
	Bits int `json:"bits"`
}

// CreateBatchRequest はバッチ生成のリクエスト形式。
type CreateBatchRequest struct {
	Bits  int `json:"bits"`
	Count int `json:"count"`
}

// KeyPairResponse は鍵ペアのレスポンス形式。多倍長整数は10進文字列。
type KeyPairResponse struct {
	ID         string `json:"id"`
	Bits       int    `json:"bits"`
	E          string `json:"e"`
	N          string `json:"n"`
	D          string `json:"d,omitempty"`
	Vulnerable bool   `json:"vulnerable"`
	CreatedAt  string `json:"created_at"`
}

// KeyPairListResponse は鍵ペア一覧のレスポンス形式。
type KeyPairListResponse struct {
	KeyPairs []KeyPairResponse `json:"key_pairs"`
}

func toResponse(m *domain.KeyPairMetadata) KeyPairResponse {
	return KeyPairResponse{
		ID:         m.ID,
		Bits:       m.Bits,
		E:          m.E.String(),
		N:          m.N.String(),
		Vulnerable: m.Vulnerable,
		CreatedAt:  m.CreatedAt.Format(time.RFC3339),
	}
}

// decodeBody はJSONボディを読み込む。空のボディは許容する。
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

var bitsOutOfRange = fmt.Sprintf("bits must be between 0 and %d", maxKeyBits)

func validBits(bits int) bool {
	return bits >= 0 && bits <= maxKeyBits
}

// writeServiceError はサービス層のエラーをHTTPステータスに変換する。
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidBitLength):
		httputil.Error(w, http.StatusBadRequest, "INVALID_BIT_LENGTH", err.Error())
	case errors.Is(err, domain.ErrInvalidBatchSize):
		httputil.Error(w, http.StatusBadRequest, "INVALID_BATCH_SIZE", err.Error())
	case errors.Is(err, domain.ErrInvalidKeyPairID):
		httputil.Error(w, http.StatusBadRequest, "INVALID_KEY_PAIR_ID", "invalid key pair ID format")
	case errors.Is(err, domain.ErrKeyPairNotFound):
		httputil.Error(w, http.StatusNotFound, "KEY_PAIR_NOT_FOUND", "key pair not found")
	case errors.Is(err, domain.ErrGenerationTimeout):
		httputil.Error(w, http.StatusServiceUnavailable, "GENERATION_TIMEOUT", "key generation exhausted its attempt budget, retry")
	default:
		slog.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "error", err)
		httputil.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
	}
}

// CreateKeyPair は鍵ペアを1件生成する。
func (h *KeyPairHandler) CreateKeyPair(w http.ResponseWriter, r *http.Request) {
	var req CreateKeyPairRequest
	if err := decodeBody(w, r, &req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "invalid request body")
		return
	}
	if !validBits(req.Bits) {
		httputil.Error(w, http.StatusBadRequest, "INVALID_BIT_LENGTH", bitsOutOfRange)
		return
	}

	metadata, err := h.service.CreateKeyPair(r.Context(), req.Bits)
	if err != nil {
		middleware.WriteAuditLog(r.Context(), "CREATE_KEY_PAIR", "", req.Bits, middleware.ResultFailed)
		writeServiceError(w, r, err)
		return
	}

	middleware.WriteAuditLog(r.Context(), "CREATE_KEY_PAIR", metadata.ID, metadata.Bits, middleware.ResultSuccess)
	httputil.JSON(w, http.StatusCreated, toResponse(metadata))
}

// CreateBatch は複数の鍵ペアを並行に生成する。
func (h *KeyPairHandler) CreateBatch(w http.ResponseWriter, r *http.Request) {
	var req CreateBatchRequest
	if err := decodeBody(w, r, &req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "invalid request body")
		return
	}
	if !validBits(req.Bits) {
		httputil.Error(w, http.StatusBadRequest, "INVALID_BIT_LENGTH", bitsOutOfRange)
		return
	}

	results, err := h.service.CreateBatch(r.Context(), req.Bits, req.Count)
	if err != nil {
		middleware.WriteAuditLog(r.Context(), "CREATE_KEY_PAIR_BATCH", "", req.Bits, middleware.ResultFailed)
		writeServiceError(w, r, err)
		return
	}

	resp := KeyPairListResponse{KeyPairs: make([]KeyPairResponse, len(results))}
	for i, m := range results {
		middleware.WriteAuditLog(r.Context(), "CREATE_KEY_PAIR_BATCH", m.ID, m.Bits, middleware.ResultSuccess)
		resp.KeyPairs[i] = toResponse(m)
	}
	httputil.JSON(w, http.StatusCreated, resp)
}

// ListKeyPairs は鍵ペア一覧を取得する。
func (h *KeyPairHandler) ListKeyPairs(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.ListKeyPairs(r.Context())
	if err != nil {
		middleware.WriteAuditLog(r.Context(), "LIST_KEY_PAIRS", "", 0, middleware.ResultFailed)
		writeServiceError(w, r, err)
		return
	}

	resp := KeyPairListResponse{KeyPairs: make([]KeyPairResponse, len(list))}
	for i, m := range list {
		resp.KeyPairs[i] = toResponse(m)
	}
	middleware.WriteAuditLog(r.Context(), "LIST_KEY_PAIRS", "", 0, middleware.ResultSuccess)
	httputil.JSON(w, http.StatusOK, resp)
}

// GetKeyPair は秘密指数を含む鍵ペアを取得する。
func (h *KeyPairHandler) GetKeyPair(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	kp, err := h.service.GetKeyPair(r.Context(), id)
	if err != nil {
		middleware.WriteAuditLog(r.Context(), "GET_KEY_PAIR", id, 0, middleware.ResultFailed)
		writeServiceError(w, r, err)
		return
	}

	middleware.WriteAuditLog(r.Context(), "GET_KEY_PAIR", id, kp.Bits, middleware.ResultSuccess)
	resp := toResponse(&kp.KeyPairMetadata)
	resp.D = kp.D.String()
	httputil.JSON(w, http.StatusOK, resp)
}

// GetChallenge は攻撃ソルバー向けの .data 形式の課題を返す。
func (h *KeyPairHandler) GetChallenge(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	c, err := h.service.Challenge(r.Context(), id)
	if err != nil {
		middleware.WriteAuditLog(r.Context(), "GET_CHALLENGE", id, 0, middleware.ResultFailed)
		writeServiceError(w, r, err)
		return
	}

	middleware.WriteAuditLog(r.Context(), "GET_CHALLENGE", id, 0, middleware.ResultSuccess)
	httputil.Text(w, http.StatusOK, c.WriteData)
}

// DeleteKeyPair は鍵ペアを削除する。
func (h *KeyPairHandler) DeleteKeyPair(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.service.DeleteKeyPair(r.Context(), id); err != nil {
		middleware.WriteAuditLog(r.Context(), "DELETE_KEY_PAIR", id, 0, middleware.ResultFailed)
		writeServiceError(w, r, err)
		return
	}

	middleware.WriteAuditLog(r.Context(), "DELETE_KEY_PAIR", id, 0, middleware.ResultSuccess)
	w.WriteHeader(http.StatusNoContent)
}
