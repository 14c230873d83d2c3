package market

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/market/internal/notification"
	"github.com/nao1215/market/internal/order"
	"github.com/nao1215/market/pkg/middleware"
	"go.uber.org/zap"
)

// ackRequest は既読化リクエストのボディ。
type ackRequest struct {
	OrderID string `json:"order_id" binding:"required"`
	Kind    string `json:"kind" binding:"required"`
}

// postMessageRequest はメッセージ投稿リクエストのボディ。
type postMessageRequest struct {
	Body string `json:"body"`
}

// updateStatusRequest はステータス更新リクエストのボディ。
type updateStatusRequest struct {
	Status  string        `json:"status" binding:"required"`
	Payload order.Payload `json:"payload"`
}

// createOrderRequest は注文作成リクエストのボディ。購入者は認証ユーザー。
type createOrderRequest struct {
	Items   []order.NewLineItem `json:"items" binding:"required"`
	Address order.Address       `json:"address"`
}

// devTokenRequest は開発用トークン発行リクエストのボディ。
type devTokenRequest struct {
	UserID string `json:"user_id" binding:"required"`
}

// handleDevToken は指定したユーザーIDの開発用JWTトークンを発行するハンドラを返す。
func (s *Server) handleDevToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req devTokenRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			s.respondError(c, fmt.Errorf("%w: user_idが必要です", errInvalidRequest))
			return
		}

		token, err := middleware.GenerateJWT(s.cfg.JWTSecret, req.UserID)
		if err != nil {
			s.respondError(c, err)
			return
		}
		s.logger.Info("dev token issued", zap.String("user_id", req.UserID))

		c.JSON(http.StatusOK, gin.H{
			"token":   token,
			"user_id": req.UserID,
		})
	}
}

// handleUnread は認証ユーザーの未読通知を返すハンドラを返す。
func (s *Server) handleUnread() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)

		entries, err := s.notifications.Poll(c.Request.Context(), userID, time.Now())
		if err != nil {
			s.respondError(c, fmt.Errorf("%w: %w", notification.ErrUpstreamUnavailable, err))
			return
		}
		c.JSON(http.StatusOK, entries)
	}
}

// handleAck は1注文1種別を既読にするハンドラを返す。
func (s *Server) handleAck() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ackRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			s.respondError(c, fmt.Errorf("%w: order_idとkindが必要です", errInvalidRequest))
			return
		}
		kind, err := notification.ParseKind(req.Kind)
		if err != nil {
			s.respondError(c, err)
			return
		}

		advanced, err := s.notifications.Acknowledge(c.Request.Context(), middleware.GetUserID(c), req.OrderID, kind)
		if err != nil {
			s.respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"message":  "既読にしました",
			"advanced": advanced,
		})
	}
}

// handleAckAll は全ての参加注文の通知を既読にするハンドラを返す。
func (s *Server) handleAckAll() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)

		n, err := s.notifications.AcknowledgeAll(c.Request.Context(), userID)
		if err != nil {
			s.respondError(c, fmt.Errorf("%w: %w", notification.ErrUpstreamUnavailable, err))
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"message":      "全ての通知を既読にしました",
			"acknowledged": n,
		})
	}
}

// handleListOrders は認証ユーザーが参加する注文の一覧を返すハンドラを返す。
func (s *Server) handleListOrders() gin.HandlerFunc {
	return func(c *gin.Context) {
		orders, err := s.orders.ListParticipantOrders(c.Request.Context(), middleware.GetUserID(c))
		if err != nil {
			s.respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, orders)
	}
}

// handleGetOrder は注文を返すハンドラを返す。参加者以外は403。
func (s *Server) handleGetOrder() gin.HandlerFunc {
	return func(c *gin.Context) {
		o, ok := s.participantOrder(c)
		if !ok {
			return
		}
		c.JSON(http.StatusOK, o)
	}
}

// handleListMessages は注文のスレッドを返すハンドラを返す。参加者以外は403。
func (s *Server) handleListMessages() gin.HandlerFunc {
	return func(c *gin.Context) {
		o, ok := s.participantOrder(c)
		if !ok {
			return
		}

		msgs, err := s.thread.List(c.Request.Context(), o.ID)
		if err != nil {
			s.respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, msgs)
	}
}

// handlePostMessage はスレッドにメッセージを投稿するハンドラを返す。
func (s *Server) handlePostMessage() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req postMessageRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			s.respondError(c, fmt.Errorf("%w: リクエストボディが不正です", errInvalidRequest))
			return
		}

		msg, err := s.thread.Post(c.Request.Context(), c.Param("id"), middleware.GetUserID(c), req.Body)
		if err != nil {
			s.respondError(c, err)
			return
		}
		s.metrics.MessagesPosted.Inc()
		c.JSON(http.StatusCreated, msg)
	}
}

// handleUpdateStatus は注文ステータスを遷移させるハンドラを返す。
func (s *Server) handleUpdateStatus() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req updateStatusRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			s.respondError(c, fmt.Errorf("%w: statusが必要です", errInvalidRequest))
			return
		}
		target := order.Status(req.Status)
		if !target.Valid() {
			s.respondError(c, fmt.Errorf("%w: 未知のステータス %q", errInvalidRequest, req.Status))
			return
		}

		actorID := middleware.GetUserID(c)
		o, err := s.orders.UpdateStatus(c.Request.Context(), c.Param("id"), target, req.Payload, actorID)
		if err != nil {
			_, code := classifyError(err)
			s.metrics.StatusTransitionsRejected.WithLabelValues(code).Inc()
			s.respondError(c, err)
			return
		}

		s.metrics.StatusTransitions.WithLabelValues(string(o.Status)).Inc()
		s.logger.Info("order status updated",
			zap.String("order_id", o.ID),
			zap.String("status", string(o.Status)),
			zap.String("actor_user_id", actorID),
			zap.Int64("version", o.Version),
		)
		c.JSON(http.StatusOK, o)
	}
}

// handleCreateOrder は認証ユーザーを購入者として注文を作成するハンドラを返す。
// チェックアウト処理から呼ばれる。
func (s *Server) handleCreateOrder() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createOrderRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			s.respondError(c, fmt.Errorf("%w: itemsが必要です", errInvalidRequest))
			return
		}

		o, err := s.orders.Create(c.Request.Context(), middleware.GetUserID(c), req.Items, req.Address)
		if err != nil {
			s.respondError(c, err)
			return
		}

		s.metrics.OrdersPlaced.Inc()
		s.logger.Info("order placed",
			zap.String("order_id", o.ID),
			zap.String("buyer_user_id", o.BuyerUserID),
			zap.Int("items", len(o.Items)),
		)
		c.JSON(http.StatusCreated, o)
	}
}

// participantOrder はパスの注文を取得し、認証ユーザーが参加者であることを確認する。
// 失敗した場合はエラーレスポンスを書き込んでfalseを返す。
func (s *Server) participantOrder(c *gin.Context) (*order.Order, bool) {
	o, err := s.orders.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return nil, false
	}
	if err := o.RequireParticipant(middleware.GetUserID(c)); err != nil {
		s.respondError(c, err)
		return nil, false
	}
	return o, true
}
