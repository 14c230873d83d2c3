package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// testSecret はテスト用のJWTシークレット。
const testSecret = "test-secret-key-for-unit-tests"

// newAuthRouter はJWTAuthを適用し、取得したユーザーIDを返すテスト用ルーターを生成する。
func newAuthRouter(captured *string) *gin.Engine {
	router := gin.New()
	router.Use(JWTAuth(testSecret))
	router.GET("/test", func(c *gin.Context) {
		if captured != nil {
			*captured = GetUserID(c)
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	return router
}

// parseErrorBody はエラーレスポンスのJSONをパースする。
func parseErrorBody(t *testing.T, w *httptest.ResponseRecorder) map[string]string {
	t.Helper()

	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("レスポンスボディのパースに失敗: %v", err)
	}
	return body
}

// TestGenerateJWT はGenerateJWT関数を検証する。
func TestGenerateJWT(t *testing.T) {
	t.Parallel()

	t.Run("正常にJWTトークンを生成できること", func(t *testing.T) {
		t.Parallel()

		tokenStr, err := GenerateJWT(testSecret, "user-123")
		if err != nil {
			t.Fatalf("GenerateJWT()でエラーが発生: %v", err)
		}
		if tokenStr == "" {
			t.Fatal("GenerateJWT()が空文字列を返した")
		}

		claims := &JWTClaims{}
		token, err := jwt.ParseWithClaims(tokenStr, claims, func(_ *jwt.Token) (any, error) {
			return []byte(testSecret), nil
		})
		if err != nil {
			t.Fatalf("トークンのパースに失敗: %v", err)
		}
		if !token.Valid {
			t.Fatal("トークンが無効")
		}
		if claims.UserID != "user-123" {
			t.Errorf("UserID = %q, want %q", claims.UserID, "user-123")
		}
		if claims.Subject != "user-123" {
			t.Errorf("Subject = %q, want %q", claims.Subject, "user-123")
		}
		if claims.Issuer != Issuer {
			t.Errorf("Issuer = %q, want %q", claims.Issuer, Issuer)
		}
		if token.Method.Alg() != "HS256" {
			t.Errorf("署名アルゴリズム = %q, want %q", token.Method.Alg(), "HS256")
		}
	})

	t.Run("トークンの有効期限が24時間後であること", func(t *testing.T) {
		t.Parallel()

		before := time.Now()
		tokenStr, err := GenerateJWT(testSecret, "user-exp")
		if err != nil {
			t.Fatalf("GenerateJWT()でエラーが発生: %v", err)
		}

		claims := &JWTClaims{}
		if _, _, err := new(jwt.Parser).ParseUnverified(tokenStr, claims); err != nil {
			t.Fatalf("トークンのパースに失敗: %v", err)
		}

		expected := before.Add(24 * time.Hour)
		diff := claims.ExpiresAt.Sub(expected)
		if diff < -2*time.Second || diff > 2*time.Second {
			t.Errorf("有効期限の差分 = %v, want ±2秒以内", diff)
		}
	})

	t.Run("ユーザーIDが空の場合エラーを返すこと", func(t *testing.T) {
		t.Parallel()

		_, err := GenerateJWT(testSecret, "")
		if !errors.Is(err, ErrUnauthenticated) {
			t.Fatalf("エラー = %v, want ErrUnauthenticated", err)
		}
	})
}

// TestCurrentUserID はCurrentUserID関数を検証する。
func TestCurrentUserID(t *testing.T) {
	t.Parallel()

	t.Run("有効なトークンからユーザーIDを取得できること", func(t *testing.T) {
		t.Parallel()

		tokenStr, err := GenerateJWT(testSecret, "buyer-1")
		if err != nil {
			t.Fatalf("GenerateJWT()でエラーが発生: %v", err)
		}

		got, err := CurrentUserID(testSecret, tokenStr)
		if err != nil {
			t.Fatalf("CurrentUserID()でエラーが発生: %v", err)
		}
		if got != "buyer-1" {
			t.Errorf("ユーザーID = %q, want %q", got, "buyer-1")
		}
	})

	t.Run("空トークンの場合ErrUnauthenticatedを返すこと", func(t *testing.T) {
		t.Parallel()

		if _, err := CurrentUserID(testSecret, ""); !errors.Is(err, ErrUnauthenticated) {
			t.Fatalf("エラー = %v, want ErrUnauthenticated", err)
		}
	})

	t.Run("異なるシークレットで署名されたトークンは拒否されること", func(t *testing.T) {
		t.Parallel()

		tokenStr, err := GenerateJWT("other-secret", "buyer-1")
		if err != nil {
			t.Fatalf("GenerateJWT()でエラーが発生: %v", err)
		}
		if _, err := CurrentUserID(testSecret, tokenStr); !errors.Is(err, ErrUnauthenticated) {
			t.Fatalf("エラー = %v, want ErrUnauthenticated", err)
		}
	})

	t.Run("有効期限切れのトークンは拒否されること", func(t *testing.T) {
		t.Parallel()

		claims := JWTClaims{
			RegisteredClaims: jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
				IssuedAt:  jwt.NewNumericDate(time.Now().Add(-2 * time.Hour)),
				Issuer:    Issuer,
			},
			UserID: "buyer-1",
		}
		tokenStr, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
		if err != nil {
			t.Fatalf("トークンの署名に失敗: %v", err)
		}
		if _, err := CurrentUserID(testSecret, tokenStr); !errors.Is(err, ErrUnauthenticated) {
			t.Fatalf("エラー = %v, want ErrUnauthenticated", err)
		}
	})

	t.Run("発行者が異なるトークンは拒否されること", func(t *testing.T) {
		t.Parallel()

		claims := JWTClaims{
			RegisteredClaims: jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
				Issuer:    "someone-else",
			},
			UserID: "buyer-1",
		}
		tokenStr, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
		if err != nil {
			t.Fatalf("トークンの署名に失敗: %v", err)
		}
		if _, err := CurrentUserID(testSecret, tokenStr); !errors.Is(err, ErrUnauthenticated) {
			t.Fatalf("エラー = %v, want ErrUnauthenticated", err)
		}
	})
}

// TestJWTAuth はJWTAuthミドルウェアを検証する。
func TestJWTAuth(t *testing.T) {
	t.Parallel()

	t.Run("有効なトークンでリクエストが成功しユーザーIDが設定されること", func(t *testing.T) {
		t.Parallel()

		tokenStr, err := GenerateJWT(testSecret, "user-ok")
		if err != nil {
			t.Fatalf("GenerateJWT()でエラーが発生: %v", err)
		}

		var captured string
		router := newAuthRouter(&captured)

		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set("Authorization", "Bearer "+tokenStr)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusOK)
		}
		if captured != "user-ok" {
			t.Errorf("user_id = %q, want %q", captured, "user-ok")
		}
		if got := w.Header().Get("X-User-ID"); got != "user-ok" {
			t.Errorf("X-User-ID = %q, want %q", got, "user-ok")
		}
	})

	tests := []struct {
		name    string
		header  string
		wantErr string
	}{
		{
			name:    "Authorizationヘッダーが無い場合401が返ること",
			header:  "",
			wantErr: "Authorizationヘッダーが必要です",
		},
		{
			name:    "Bearer接頭辞が無い場合401が返ること",
			header:  "Token abc",
			wantErr: "Bearer トークン形式が不正です",
		},
		{
			name:    "不正なトークンの場合401が返ること",
			header:  "Bearer not-a-jwt",
			wantErr: "トークンが無効です",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			router := newAuthRouter(nil)

			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			if w.Code != http.StatusUnauthorized {
				t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusUnauthorized)
			}
			body := parseErrorBody(t, w)
			if body["error"] != tt.wantErr {
				t.Errorf("error = %q, want %q", body["error"], tt.wantErr)
			}
			if body["code"] != "unauthenticated" {
				t.Errorf("code = %q, want %q", body["code"], "unauthenticated")
			}
		})
	}
}

// TestGetUserID はGetUserID関数を検証する。
func TestGetUserID(t *testing.T) {
	t.Parallel()

	t.Run("未設定の場合は空文字列を返すこと", func(t *testing.T) {
		t.Parallel()

		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		if got := GetUserID(c); got != "" {
			t.Errorf("GetUserID() = %q, want 空文字列", got)
		}
	})

	t.Run("SetUserIDで設定した値を取得できること", func(t *testing.T) {
		t.Parallel()

		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		SetUserID(c, "seller-9")
		if got := GetUserID(c); got != "seller-9" {
			t.Errorf("GetUserID() = %q, want %q", got, "seller-9")
		}
	})
}
