package chi

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func authTestHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestBearerAuth_ValidKey(t *testing.T) {
	handler := BearerAuthMiddleware([]string{"secret-key"})(authTestHandler())

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/score", nil)
	req.Header.Set("Authorization", "Bearer secret-key")
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestBearerAuth_InvalidKey(t *testing.T) {
	handler := BearerAuthMiddleware([]string{"secret-key"})(authTestHandler())

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/score", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}
}

func TestBearerAuth_MissingHeader(t *testing.T) {
	handler := BearerAuthMiddleware([]string{"secret-key"})(authTestHandler())

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/score", nil)
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}
}

func TestBearerAuth_WrongScheme(t *testing.T) {
	handler := BearerAuthMiddleware([]string{"secret-key"})(authTestHandler())

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/score", nil)
	req.Header.Set("Authorization", "Basic secret-key")
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}
}

func TestBearerAuth_ExemptPaths(t *testing.T) {
	handler := BearerAuthMiddleware([]string{"secret-key"})(authTestHandler())

	for _, path := range []string{"/healthz", "/metrics"} {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, path, nil)
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("expected %s to bypass auth, got %d", path, rec.Code)
		}
	}
}

func TestBearerAuth_DisabledWhenNoKeys(t *testing.T) {
	handler := BearerAuthMiddleware(nil)(authTestHandler())

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/score", nil)
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 with auth disabled, got %d", rec.Code)
	}
}
