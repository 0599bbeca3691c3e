package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/jjudge-oj/roster/internal/inputs"
	"github.com/jjudge-oj/roster/internal/metrics"
	"github.com/jjudge-oj/roster/internal/policy"
	"github.com/jjudge-oj/roster/internal/session"
	"github.com/jjudge-oj/roster/types"
)

const defaultTokenTTL = 24 * time.Hour

// Directory resolves the users that may authenticate.
type Directory interface {
	Local() []types.User
	LocalGet(id int) (types.User, error)
}

// AuthHandler issues and checks bearer tokens for directory users.
type AuthHandler struct {
	users    Directory
	verifier *session.Verifier
	secret   []byte
	tokenTTL time.Duration
}

// NewAuthHandler constructs an AuthHandler. A zero ttl means 24 hours.
func NewAuthHandler(users Directory, verifier *session.Verifier, jwtSecret string, ttl time.Duration) *AuthHandler {
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	return &AuthHandler{
		users:    users,
		verifier: verifier,
		secret:   []byte(jwtSecret),
		tokenTTL: ttl,
	}
}

// AuthRouter registers auth routes on the given router.
func AuthRouter(r chi.Router, handler *AuthHandler) {
	r.Post("/login", handler.Login)
	r.With(handler.RequireAuth).Get("/me", handler.Me)
}

// RequireAuth checks the bearer token and loads its user into the request
// context. Tokens of users that no longer exist are rejected.
func (h *AuthHandler) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString, err := bearerToken(r)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		subject, err := parseTokenSubject(tokenString, h.secret)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		id, err := strconv.Atoi(subject)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		user, err := h.users.LocalGet(id)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		next.ServeHTTP(w, r.WithContext(withUser(r.Context(), user)))
	})
}

// Login runs the login form and returns a token for a valid active user.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	fields, err := decodeFields(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	f, err := inputs.NewLoginForm()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to build form")
		return
	}
	for name, value := range fields {
		f.OnFieldChange(name, value)
	}

	var user types.User
	submitted, err := f.Submit(r.Context(), func(_ context.Context, v inputs.LoginForm) error {
		var err error
		user, err = session.Authenticate(h.users.Local(), session.Credentials{
			Email:    strings.TrimSpace(v.Email),
			Password: v.Password,
		}, h.verifier)
		return err
	})
	if !submitted && err == nil {
		writeJSON(w, http.StatusUnprocessableEntity, ValidationResponse{Errors: f.Errors()})
		return
	}
	metrics.Login(err == nil)
	if err != nil {
		if errors.Is(err, session.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to authenticate")
		return
	}

	token, err := issueToken(user.ID, h.secret, h.tokenTTL)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create token")
		return
	}

	writeJSON(w, http.StatusOK, AuthResponse{Token: token, User: user, Capabilities: policy.ForUser(&user)})
}

// Me returns the current user and what it may do.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	writeJSON(w, http.StatusOK, MeResponse{User: user, Capabilities: policy.ForUser(&user)})
}

type AuthResponse struct {
	Token        string              `json:"token"`
	User         types.User          `json:"user"`
	Capabilities policy.Capabilities `json:"capabilities"`
}

type MeResponse struct {
	User         types.User          `json:"user"`
	Capabilities policy.Capabilities `json:"capabilities"`
}

func issueToken(userID int, secret []byte, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   strconv.Itoa(userID),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

func parseTokenSubject(tokenString string, secret []byte) (string, error) {
	claims := jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return secret, nil
	})
	if err != nil {
		return "", err
	}
	if !token.Valid {
		return "", errors.New("invalid token")
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return "", errors.New("missing subject")
	}
	return claims.Subject, nil
}

func bearerToken(r *http.Request) (string, error) {
	auth := strings.TrimSpace(r.Header.Get("Authorization"))
	if auth == "" {
		return "", errors.New("missing authorization")
	}
	scheme, token, ok := strings.Cut(auth, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", errors.New("invalid authorization")
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", errors.New("invalid authorization")
	}
	return token, nil
}
