package market

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/market/internal/notification"
	"github.com/nao1215/market/internal/order"
	"github.com/nao1215/market/internal/thread"
	"github.com/nao1215/market/pkg/middleware"
	"go.uber.org/zap"
)

// errInvalidRequest はリクエストボディやパラメータが不正な場合に使う。
var errInvalidRequest = errors.New("invalid request")

// エラーレスポンスのcode。
const (
	codeUnauthenticated   = "unauthenticated"
	codeUnauthorized      = "unauthorized"
	codeNotParticipant    = "not_participant"
	codeInvalidTransition = "invalid_transition"
	codeEmptyMessage      = "empty_message"
	codeMissingPayload    = "missing_payload"
	codeUnknownKind       = "unknown_kind"
	codeInvalidRequest    = "invalid_request"
	codeNotFound          = "not_found"
	codeUnavailable       = "unavailable"
	codeInternal          = "internal"
)

// classifyError はエラーをHTTPステータスとcodeに対応付ける。
func classifyError(err error) (int, string) {
	switch {
	case errors.Is(err, middleware.ErrUnauthenticated):
		return http.StatusUnauthorized, codeUnauthenticated
	case errors.Is(err, order.ErrUnauthorized):
		return http.StatusForbidden, codeUnauthorized
	case errors.Is(err, order.ErrNotParticipant):
		return http.StatusForbidden, codeNotParticipant
	case errors.Is(err, order.ErrInvalidTransition):
		return http.StatusConflict, codeInvalidTransition
	case errors.Is(err, thread.ErrEmptyMessage):
		return http.StatusBadRequest, codeEmptyMessage
	case errors.Is(err, order.ErrMissingPayload):
		return http.StatusBadRequest, codeMissingPayload
	case errors.Is(err, notification.ErrUnknownKind):
		return http.StatusBadRequest, codeUnknownKind
	case errors.Is(err, errInvalidRequest),
		errors.Is(err, order.ErrInvalidOrder),
		errors.Is(err, order.ErrSelfPurchase):
		return http.StatusBadRequest, codeInvalidRequest
	case errors.Is(err, order.ErrNotFound):
		return http.StatusNotFound, codeNotFound
	case errors.Is(err, notification.ErrUpstreamUnavailable):
		return http.StatusServiceUnavailable, codeUnavailable
	}
	return http.StatusInternalServerError, codeInternal
}

// respondError はエラーを {"error","code"} 形式で返す。
// 5xxの場合は内部のエラー内容を返さずにログへ記録する。
func (s *Server) respondError(c *gin.Context, err error) {
	status, code := classifyError(err)
	message := err.Error()
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			zap.String("path", c.FullPath()),
			zap.String("code", code),
			zap.Error(err),
		)
		message = "内部サーバーエラーが発生しました"
		if status == http.StatusServiceUnavailable {
			message = "依存先が一時的に利用できません"
		}
	}
	c.AbortWithStatusJSON(status, gin.H{"error": message, "code": code})
}
