package httptransport

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"example.com/fitpulse/internal/auth"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("hi"))
	})
}

func TestRequestLoggerRecordsStatus(t *testing.T) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	handler := RequestLogger(logrus.NewEntry(logger))(okHandler())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/activities", nil))

	require.Equal(t, http.StatusTeapot, rec.Code)
	entry := hook.LastEntry()
	require.NotNil(t, entry)
	require.Equal(t, logrus.WarnLevel, entry.Level)
	require.Equal(t, http.StatusTeapot, entry.Data["status"])
	require.Equal(t, 2, entry.Data["bytes"])
	require.Equal(t, "/v1/activities", entry.Data["path"])
}

func TestCORSPreflight(t *testing.T) {
	handler := CORS("https://app.example.com")(okHandler())

	req := httptest.NewRequest(http.MethodOptions, "/v1/activities", nil)
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/activities", nil))
	require.Equal(t, http.StatusTeapot, rec.Code)

	rec = httptest.NewRecorder()
	CORS("")(okHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRateLimiterPerPrincipal(t *testing.T) {
	logger, _ := test.NewNullLogger()
	limiter := NewRateLimiter(0.001, 2, logrus.NewEntry(logger))
	handler := limiter.Handler(okHandler())

	request := func(subject string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/v1/activities", nil)
		req = req.WithContext(auth.WithClaims(req.Context(), &auth.Claims{Subject: subject, TenantID: "t1", ExpiresAt: time.Now().Add(time.Hour)}))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	require.Equal(t, http.StatusTeapot, request("alice").Code)
	require.Equal(t, http.StatusTeapot, request("alice").Code)
	limited := request("alice")
	require.Equal(t, http.StatusTooManyRequests, limited.Code)
	require.JSONEq(t, `{"type":"rate_limited","detail":"too many requests"}`, limited.Body.String())
	require.NotEmpty(t, limited.Header().Get("Retry-After"))

	require.Equal(t, http.StatusTeapot, request("bob").Code)
}

func TestRateLimiterDisabled(t *testing.T) {
	handler := NewRateLimiter(0, 1, logrus.NewEntry(logrus.New())).Handler(okHandler())
	for i := 0; i < 5; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		require.Equal(t, http.StatusTeapot, rec.Code)
	}
}

func TestChainOrder(t *testing.T) {
	var order []string
	mark := func(name string) func(http.Handler) http.Handler {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}
	Chain(okHandler(), mark("outer"), mark("inner")).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, []string{"outer", "inner"}, order)
}
