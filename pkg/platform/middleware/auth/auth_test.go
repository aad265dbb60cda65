package auth

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/suite"

	"apihub/pkg/requestcontext"
)

type AuthMiddlewareSuite struct {
	suite.Suite
	validator *HS256Validator
	handler   http.Handler
	seen      context.Context
	called    bool
}

func TestAuthMiddlewareSuite(t *testing.T) {
	suite.Run(t, new(AuthMiddlewareSuite))
}

func (s *AuthMiddlewareSuite) SetupTest() {
	s.validator = NewHS256Validator("test-signing-key", "https://portal.test", "apihub")
	s.called = false
	s.seen = nil
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.called = true
		s.seen = r.Context()
		w.WriteHeader(http.StatusOK)
	})
	s.handler = RequireAuth(s.validator, slog.New(slog.NewTextHandler(io.Discard, nil)))(next)
}

func (s *AuthMiddlewareSuite) serve(authHeader string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/v1/teams", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func (s *AuthMiddlewareSuite) TestValidTokenStoresCaller() {
	token, err := s.validator.Issue("Jane.Doe@Example.com", time.Minute)
	s.Require().NoError(err)

	rec := s.serve("Bearer " + token)

	s.Equal(http.StatusOK, rec.Code)
	s.True(s.called)
	s.Equal("jane.doe@example.com", requestcontext.User(s.seen))
}

func (s *AuthMiddlewareSuite) TestMissingHeader() {
	rec := s.serve("")
	s.Equal(http.StatusUnauthorized, rec.Code)
	s.False(s.called)
	s.JSONEq(`{"error":"unauthorized","error_description":"Missing or invalid Authorization header"}`, rec.Body.String())
}

func (s *AuthMiddlewareSuite) TestExpiredToken() {
	token, err := s.validator.Issue("jane@example.com", -time.Hour)
	s.Require().NoError(err)

	rec := s.serve("Bearer " + token)
	s.Equal(http.StatusUnauthorized, rec.Code)
	s.False(s.called)
}

func (s *AuthMiddlewareSuite) TestWrongAudience() {
	other := NewHS256Validator("test-signing-key", "https://portal.test", "another-service")
	token, err := other.Issue("jane@example.com", time.Minute)
	s.Require().NoError(err)

	s.Equal(http.StatusUnauthorized, s.serve("Bearer "+token).Code)
}

func (s *AuthMiddlewareSuite) TestWrongSigningKey() {
	other := NewHS256Validator("another-key", "https://portal.test", "apihub")
	token, err := other.Issue("jane@example.com", time.Minute)
	s.Require().NoError(err)

	s.Equal(http.StatusUnauthorized, s.serve("Bearer "+token).Code)
}

func (s *AuthMiddlewareSuite) TestRejectsNoneAlgorithm() {
	claims := Claims{
		Email: "jane@example.com",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "https://portal.test",
			Audience:  jwt.ClaimStrings{"apihub"},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	s.Require().NoError(err)

	s.Equal(http.StatusUnauthorized, s.serve("Bearer "+token).Code)
}

func (s *AuthMiddlewareSuite) TestTokenWithoutEmail() {
	token, err := s.validator.Issue("  ", time.Minute)
	s.Require().NoError(err)

	s.Equal(http.StatusUnauthorized, s.serve("Bearer "+token).Code)
	s.False(s.called)
}
