package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dosada05/esports-booking/models"
	"github.com/Dosada05/esports-booking/services"
)

const testSecret = "test-secret"

type stubAccess struct {
	admins map[string]models.Role
	err    error
}

func (s stubAccess) VerifyAdmin(_ context.Context, email string) (models.Role, string, error) {
	if s.err != nil {
		return "", "", s.err
	}
	role, ok := s.admins[email]
	if !ok {
		return "", "", services.ErrForbiddenOperation
	}
	return role, "Staff", nil
}

func (s stubAccess) ResolveRole(ctx context.Context, email string) (models.Role, error) {
	role, _, err := s.VerifyAdmin(ctx, email)
	if errors.Is(err, services.ErrForbiddenOperation) {
		return models.RolePlayer, nil
	}
	return role, err
}

func mustToken(t *testing.T, id int, email string, role models.Role, now time.Time) string {
	t.Helper()
	token, err := IssueToken([]byte(testSecret), &models.User{ID: id, Email: email}, role, now)
	require.NoError(t, err)
	return token
}

// echoActor отвечает 200 и кладет роль актора в заголовок.
func echoActor() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, err := GetActorFromContext(r.Context())
		if err != nil {
			w.Header().Set("X-Actor", "anonymous")
		} else {
			w.Header().Set("X-Actor", string(actor.Role)+":"+actor.Email)
		}
		w.WriteHeader(http.StatusOK)
	})
}

func TestIssueAndParseToken(t *testing.T) {
	now := time.Now()
	token := mustToken(t, 42, "p@arena.test", models.RolePlayer, now)

	actor, err := ParseToken([]byte(testSecret), token)
	require.NoError(t, err)
	assert.Equal(t, models.Actor{UserID: 42, Email: "p@arena.test", Role: models.RolePlayer}, actor)

	_, err = ParseToken([]byte("other"), token)
	assert.Error(t, err)

	expired := mustToken(t, 42, "p@arena.test", models.RolePlayer, now.Add(-2*TokenTTL))
	_, err = ParseToken([]byte(testSecret), expired)
	assert.Error(t, err)
}

func TestActorFromClaims(t *testing.T) {
	tests := []struct {
		name    string
		claims  jwt.MapClaims
		want    models.Actor
		wantErr bool
	}{
		{name: "numeric id", claims: jwt.MapClaims{"user_id": float64(7), "email": "a@b.test"}, want: models.Actor{UserID: 7, Email: "a@b.test", Role: models.RolePlayer}},
		{name: "string id", claims: jwt.MapClaims{"user_id": "8", "email": "a@b.test", "role": "sub_admin"}, want: models.Actor{UserID: 8, Email: "a@b.test", Role: models.Role("sub_admin")}},
		{name: "missing id", claims: jwt.MapClaims{"email": "a@b.test"}, wantErr: true},
		{name: "fractional id", claims: jwt.MapClaims{"user_id": 1.5, "email": "a@b.test"}, wantErr: true},
		{name: "zero id", claims: jwt.MapClaims{"user_id": float64(0), "email": "a@b.test"}, wantErr: true},
		{name: "bad type", claims: jwt.MapClaims{"user_id": true, "email": "a@b.test"}, wantErr: true},
		{name: "missing email", claims: jwt.MapClaims{"user_id": float64(1)}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := actorFromClaims(tt.claims)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAuthenticate(t *testing.T) {
	token := mustToken(t, 5, "p@arena.test", models.RolePlayer, time.Now())
	handler := Authenticate(testSecret)(echoActor())

	tests := []struct {
		name       string
		setup      func(r *http.Request)
		url        string
		wantStatus int
		wantErr    string
	}{
		{name: "no token", url: "/", wantStatus: http.StatusUnauthorized, wantErr: "authentication required"},
		{name: "bearer", url: "/", setup: func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }, wantStatus: http.StatusOK},
		{name: "lowercase scheme", url: "/", setup: func(r *http.Request) { r.Header.Set("Authorization", "bearer "+token) }, wantStatus: http.StatusOK},
		{name: "wrong scheme", url: "/", setup: func(r *http.Request) { r.Header.Set("Authorization", "Basic "+token) }, wantStatus: http.StatusUnauthorized, wantErr: "authentication required"},
		{name: "garbage", url: "/", setup: func(r *http.Request) { r.Header.Set("Authorization", "Bearer nope") }, wantStatus: http.StatusUnauthorized, wantErr: "invalid or expired token"},
		{name: "query token for websocket", url: "/ws?token=" + token, wantStatus: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.url, nil)
			if tt.setup != nil {
				tt.setup(req)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantStatus == http.StatusOK {
				assert.Equal(t, "player:p@arena.test", rec.Header().Get("X-Actor"))
			} else {
				assert.JSONEq(t, `{"error":"`+tt.wantErr+`"}`, rec.Body.String())
			}
		})
	}
}

func TestOptionalAuthenticate(t *testing.T) {
	handler := OptionalAuthenticate(testSecret)(echoActor())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "anonymous", rec.Header().Get("X-Actor"))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer broken")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireAdmin(t *testing.T) {
	access := stubAccess{admins: map[string]models.Role{
		"owner@arena.test": models.RoleSuperAdmin,
		"staff@arena.test": models.RoleSubAdmin,
	}}

	tests := []struct {
		name       string
		access     services.AccessService
		actor      *models.Actor
		super      bool
		wantStatus int
		wantActor  string
	}{
		{name: "anonymous", access: access, wantStatus: http.StatusUnauthorized},
		{name: "player claiming admin in token", access: access, actor: &models.Actor{UserID: 1, Email: "p@arena.test", Role: models.RoleSuperAdmin}, wantStatus: http.StatusForbidden},
		{name: "sub admin", access: access, actor: &models.Actor{UserID: 2, Email: "staff@arena.test", Role: models.RolePlayer}, wantStatus: http.StatusOK, wantActor: "sub_admin:staff@arena.test"},
		{name: "sub admin on owner route", access: access, super: true, actor: &models.Actor{UserID: 2, Email: "staff@arena.test"}, wantStatus: http.StatusForbidden},
		{name: "owner", access: access, super: true, actor: &models.Actor{UserID: 3, Email: "owner@arena.test"}, wantStatus: http.StatusOK, wantActor: "super_admin:owner@arena.test"},
		{name: "roster unavailable", access: stubAccess{err: errors.New("db down")}, actor: &models.Actor{UserID: 2, Email: "staff@arena.test"}, wantStatus: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var h http.Handler = echoActor()
			if tt.super {
				h = RequireSuperAdmin(h)
			}
			h = RequireAdmin(tt.access)(h)

			req := httptest.NewRequest(http.MethodGet, "/admin", nil)
			if tt.actor != nil {
				req = req.WithContext(WithActor(req.Context(), *tt.actor))
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantActor != "" {
				assert.Equal(t, tt.wantActor, rec.Header().Get("X-Actor"))
			}
		})
	}
}

func TestResolveRole(t *testing.T) {
	access := stubAccess{admins: map[string]models.Role{"staff@arena.test": models.RoleSubAdmin}}
	h := ResolveRole(access)(echoActor())

	serve := func(actor *models.Actor, a services.AccessService) *httptest.ResponseRecorder {
		handler := h
		if a != nil {
			handler = ResolveRole(a)(echoActor())
		}
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if actor != nil {
			req = req.WithContext(WithActor(req.Context(), *actor))
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	rec := serve(nil, nil)
	assert.Equal(t, "anonymous", rec.Header().Get("X-Actor"))

	rec = serve(&models.Actor{UserID: 1, Email: "p@arena.test", Role: models.RoleSuperAdmin}, nil)
	assert.Equal(t, "player:p@arena.test", rec.Header().Get("X-Actor"))

	rec = serve(&models.Actor{UserID: 2, Email: "staff@arena.test"}, nil)
	assert.Equal(t, "sub_admin:staff@arena.test", rec.Header().Get("X-Actor"))

	rec = serve(&models.Actor{UserID: 2, Email: "staff@arena.test"}, stubAccess{err: errors.New("db down")})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestRateLimit(t *testing.T) {
	limiter := NewIPRateLimiter(0.001, 2)
	handler := RateLimit(limiter)(echoActor())

	hit := func(addr string) int {
		req := httptest.NewRequest(http.MethodPost, "/bookings", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, hit("10.0.0.1:5000"))
	assert.Equal(t, http.StatusOK, hit("10.0.0.1:5001"))
	assert.Equal(t, http.StatusTooManyRequests, hit("10.0.0.1:5002"))
	// Другой IP считается отдельно.
	assert.Equal(t, http.StatusOK, hit("10.0.0.2:5000"))
	assert.Equal(t, http.StatusOK, hit("no-port"))

	assert.Same(t, limiter.GetLimiter("10.0.0.1"), limiter.GetLimiter("10.0.0.1"))
}
