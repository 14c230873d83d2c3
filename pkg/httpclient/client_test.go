package httpclient

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// testRequest はテストサーバーが受け取ったリクエスト情報を保持する構造体。
type testRequest struct {
	// Method はHTTPメソッド。
	Method string
	// Path はリクエストパス。
	Path string
	// Body はリクエストボディ。
	Body []byte
	// Headers はリクエストヘッダー。
	Headers http.Header
}

// testPayload はテスト用のリクエスト/レスポンスペイロード。
type testPayload struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
}

// newRecordingServer は受け取ったリクエストを記録し、固定レスポンスを返すテストサーバーを生成する。
func newRecordingServer(t *testing.T, received *testRequest, status int, response any) *httptest.Server {
	t.Helper()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received.Method = r.Method
		received.Path = r.URL.Path
		received.Body, _ = io.ReadAll(r.Body)
		received.Headers = r.Header.Clone()

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if response != nil {
			_ = json.NewEncoder(w).Encode(response)
		}
	}))
	t.Cleanup(ts.Close)
	return ts
}

// TestNew はNew関数でクライアントが正しく生成されることを検証する。
func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("デフォルトのタイムアウトが30秒であること", func(t *testing.T) {
		t.Parallel()

		client := New("http://localhost:8080/")
		if client.baseURL != "http://localhost:8080" {
			t.Errorf("baseURL = %q, want %q", client.baseURL, "http://localhost:8080")
		}
		if client.httpClient.Timeout != 30*time.Second {
			t.Errorf("Timeout = %v, want 30s", client.httpClient.Timeout)
		}
	})

	t.Run("オプションでトークンとタイムアウトを設定できること", func(t *testing.T) {
		t.Parallel()

		client := New("http://localhost:8080", WithToken("tok"), WithTimeout(5*time.Second))
		if client.token != "tok" {
			t.Errorf("token = %q, want %q", client.token, "tok")
		}
		if client.httpClient.Timeout != 5*time.Second {
			t.Errorf("Timeout = %v, want 5s", client.httpClient.Timeout)
		}
	})
}

// TestPostJSON はPostJSON関数を検証する。
func TestPostJSON(t *testing.T) {
	t.Parallel()

	t.Run("JSONボディとBearerトークンが送信されレスポンスを取得できること", func(t *testing.T) {
		t.Parallel()

		var received testRequest
		ts := newRecordingServer(t, &received, http.StatusCreated, testPayload{Name: "response", Value: 201})

		client := New(ts.URL, WithToken("secret-token"))
		var result testPayload
		err := client.PostJSON(context.Background(), "/api/v1/items", testPayload{Name: "request", Value: 1}, &result)
		if err != nil {
			t.Fatalf("PostJSON()でエラーが発生: %v", err)
		}

		if received.Method != http.MethodPost {
			t.Errorf("Method = %q, want %q", received.Method, http.MethodPost)
		}
		if received.Path != "/api/v1/items" {
			t.Errorf("Path = %q, want %q", received.Path, "/api/v1/items")
		}
		if got := received.Headers.Get("Authorization"); got != "Bearer secret-token" {
			t.Errorf("Authorization = %q, want %q", got, "Bearer secret-token")
		}
		if got := received.Headers.Get("Content-Type"); got != "application/json" {
			t.Errorf("Content-Type = %q, want %q", got, "application/json")
		}

		var sent testPayload
		if err := json.Unmarshal(received.Body, &sent); err != nil {
			t.Fatalf("送信ボディのパースに失敗: %v", err)
		}
		if sent.Name != "request" || sent.Value != 1 {
			t.Errorf("送信ボディ = %+v, want {request 1}", sent)
		}
		if result.Name != "response" || result.Value != 201 {
			t.Errorf("レスポンス = %+v, want {response 201}", result)
		}
	})

	t.Run("resultがnilの場合はレスポンスを読み捨てること", func(t *testing.T) {
		t.Parallel()

		var received testRequest
		ts := newRecordingServer(t, &received, http.StatusOK, map[string]string{"message": "ok"})

		client := New(ts.URL)
		if err := client.PostJSON(context.Background(), "/ack", map[string]string{"k": "v"}, nil); err != nil {
			t.Fatalf("PostJSON()でエラーが発生: %v", err)
		}
		if got := received.Headers.Get("Authorization"); got != "" {
			t.Errorf("Authorization = %q, want 空文字列", got)
		}
	})
}

// TestPutJSON はPutJSON関数を検証する。
func TestPutJSON(t *testing.T) {
	t.Parallel()

	t.Run("PUTメソッドで送信されること", func(t *testing.T) {
		t.Parallel()

		var received testRequest
		ts := newRecordingServer(t, &received, http.StatusOK, testPayload{Name: "updated"})

		client := New(ts.URL)
		var result testPayload
		if err := client.PutJSON(context.Background(), "/orders/1/status", testPayload{Name: "shipped"}, &result); err != nil {
			t.Fatalf("PutJSON()でエラーが発生: %v", err)
		}
		if received.Method != http.MethodPut {
			t.Errorf("Method = %q, want %q", received.Method, http.MethodPut)
		}
		if result.Name != "updated" {
			t.Errorf("Name = %q, want %q", result.Name, "updated")
		}
	})
}

// TestGetJSON はGetJSON関数とエラーレスポンスの扱いを検証する。
func TestGetJSON(t *testing.T) {
	t.Parallel()

	t.Run("GETリクエストにはContent-Typeを付与しないこと", func(t *testing.T) {
		t.Parallel()

		var received testRequest
		ts := newRecordingServer(t, &received, http.StatusOK, []testPayload{{Name: "a"}})

		client := New(ts.URL)
		var result []testPayload
		if err := client.GetJSON(context.Background(), "/list", &result); err != nil {
			t.Fatalf("GetJSON()でエラーが発生: %v", err)
		}
		if got := received.Headers.Get("Content-Type"); got != "" {
			t.Errorf("Content-Type = %q, want 空文字列", got)
		}
		if len(result) != 1 {
			t.Errorf("件数 = %d, want 1", len(result))
		}
	})

	t.Run("エラーレスポンスのcodeがStatusErrorに格納されること", func(t *testing.T) {
		t.Parallel()

		var received testRequest
		ts := newRecordingServer(t, &received, http.StatusUnauthorized, map[string]string{
			"error": "トークンが無効です",
			"code":  "unauthenticated",
		})

		client := New(ts.URL)
		err := client.GetJSON(context.Background(), "/list", nil)
		if err == nil {
			t.Fatal("GetJSON()がエラーを返すべき")
		}

		var se *StatusError
		if !errors.As(err, &se) {
			t.Fatalf("エラーの型 = %T, want *StatusError", err)
		}
		if se.StatusCode != http.StatusUnauthorized {
			t.Errorf("StatusCode = %d, want %d", se.StatusCode, http.StatusUnauthorized)
		}
		if se.Code != "unauthenticated" {
			t.Errorf("Code = %q, want %q", se.Code, "unauthenticated")
		}
		if !IsStatus(err, http.StatusUnauthorized) {
			t.Error("IsStatus(401) = false, want true")
		}
		if IsStatus(err, http.StatusForbidden) {
			t.Error("IsStatus(403) = true, want false")
		}
	})

	t.Run("JSONでないエラーボディはBodyに格納されること", func(t *testing.T) {
		t.Parallel()

		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte("bad gateway"))
		}))
		t.Cleanup(ts.Close)

		err := New(ts.URL).GetJSON(context.Background(), "/", nil)
		var se *StatusError
		if !errors.As(err, &se) {
			t.Fatalf("エラーの型 = %T, want *StatusError", err)
		}
		if se.Body != "bad gateway" {
			t.Errorf("Body = %q, want %q", se.Body, "bad gateway")
		}
		if se.Code != "" {
			t.Errorf("Code = %q, want 空文字列", se.Code)
		}
	})

	t.Run("キャンセル済みコンテキストではエラーを返すこと", func(t *testing.T) {
		t.Parallel()

		var received testRequest
		ts := newRecordingServer(t, &received, http.StatusOK, nil)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if err := New(ts.URL).GetJSON(ctx, "/", nil); !errors.Is(err, context.Canceled) {
			t.Fatalf("エラー = %v, want context.Canceled", err)
		}
	})
}
