package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func okHandler(called *bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if called != nil {
			*called = true
		}
		w.WriteHeader(http.StatusOK)
	})
}

func TestCORSOrigins(t *testing.T) {
	cases := []struct {
		name    string
		allowed []string
		origin  string
		want    string
	}{
		{"listed origin", []string{"https://chat.example.com/"}, "https://chat.example.com", "https://chat.example.com"},
		{"unknown origin", []string{"https://chat.example.com"}, "https://evil.example", ""},
		{"wildcard", []string{" * "}, "https://random.example", "https://random.example"},
		{"no origin header", []string{"*"}, "", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var called bool
			req := httptest.NewRequest(http.MethodPost, "/v1/chat/messages", nil)
			if tc.origin != "" {
				req.Header.Set("Origin", tc.origin)
			}
			rec := httptest.NewRecorder()
			CORS(tc.allowed)(okHandler(&called)).ServeHTTP(rec, req)

			assert.True(t, called)
			assert.Equal(t, tc.want, rec.Header().Get("Access-Control-Allow-Origin"))
			if tc.want != "" {
				assert.Equal(t, corsAllowedMethods, rec.Header().Get("Access-Control-Allow-Methods"))
			}
		})
	}
}

func TestCORSHandlesPreflight(t *testing.T) {
	var called bool
	req := httptest.NewRequest(http.MethodOptions, "/v1/chat/messages", nil)
	req.Header.Set("Origin", "https://chat.example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()

	CORS([]string{"https://chat.example.com"})(okHandler(&called)).ServeHTTP(rec, req)

	assert.False(t, called)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}
