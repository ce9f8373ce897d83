package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"
	"github.com/kevinaaaquil/unilib/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const secret = "test-secret-with-enough-entropy"

func protected(roles ...models.Role) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(Auth(secret))
	if len(roles) > 0 {
		r.Use(RequireRole(roles...))
	}
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		p, ok := PrincipalFromContext(r.Context())
		if !ok {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(string(p.Role) + " " + p.Email))
	})
	return r
}

func call(t *testing.T, h http.Handler, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func token(t *testing.T, role models.Role, ttl time.Duration) string {
	t.Helper()
	tok, exp, err := IssueToken(secret, &models.User{ID: primitive.NewObjectID(), Email: "a@uni.test", Role: role}, ttl)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(ttl), exp, time.Second)
	return tok
}

func TestAuthAcceptsValidToken(t *testing.T) {
	rec := call(t, protected(), token(t, models.RoleLibrarian, time.Hour))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "LIBRARIAN a@uni.test", rec.Body.String())
}

func TestAuthRejects(t *testing.T) {
	expired := token(t, models.RoleUser, -time.Minute)
	other, _, err := IssueToken("another-secret", &models.User{ID: primitive.NewObjectID(), Role: models.RoleUser}, time.Hour)
	require.NoError(t, err)
	noneAlg, err := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{UserID: primitive.NewObjectID().Hex(), Role: models.RoleAdmin}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := map[string]string{
		"missing":       "",
		"expired":       expired,
		"wrong secret":  other,
		"none alg":      noneAlg,
		"garbage token": "abc.def.ghi",
	}
	for name, tok := range tests {
		t.Run(name, func(t *testing.T) {
			rec := call(t, protected(), tok)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			var body errorBody
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
			assert.False(t, body.Success)
			assert.Equal(t, "UNAUTHORIZED", body.Error.Code)
			assert.NotEmpty(t, body.Error.RequestID)
		})
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Basic abc")
	rec := httptest.NewRecorder()
	protected().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireRole(t *testing.T) {
	h := protected(models.RoleLibrarian, models.RoleAdmin)
	assert.Equal(t, http.StatusOK, call(t, h, token(t, models.RoleAdmin, time.Hour)).Code)

	rec := call(t, h, token(t, models.RoleUser, time.Hour))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	var body errorBody
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "FORBIDDEN", body.Error.Code)

	bare := RequireRole(models.RoleAdmin)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	rec = httptest.NewRecorder()
	bare.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	h := CORS()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("preflight reached the handler")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/api/loans", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), "Authorization")
}

func TestCORSOriginList(t *testing.T) {
	h := CORS("https://library.uni.test")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	tests := []struct {
		origin string
		want   string
	}{
		{"https://library.uni.test", "https://library.uni.test"},
		{"https://library.uni.test/", "https://library.uni.test/"},
		{"https://evil.test", ""},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.origin, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/books", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, tt.want, rec.Header().Get("Access-Control-Allow-Origin"))
			assert.Equal(t, "X-Request-Id", rec.Header().Get("Access-Control-Expose-Headers"))
		})
	}
}

func TestRequestLog(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })

	h := chimw.RequestID(RequestLog(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/loans", nil))

	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "http_request", line["msg"])
	assert.Equal(t, "/api/loans", line["path"])
	assert.EqualValues(t, http.StatusTeapot, line["status"])
	assert.Equal(t, rec.Header().Get("X-Request-Id"), line["request_id"])
}
