package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// Authenticator guards the moderation surface (deleting questions, listing
// reports, export/import). It knows a single admin identity configured from
// the environment; regular board usage stays anonymous.
type Authenticator struct {
	Secret            []byte
	AdminEmail        string
	AdminPasswordHash string
}

// Enabled reports whether an admin identity is configured at all.
func (a *Authenticator) Enabled() bool {
	return a != nil && a.AdminEmail != "" && a.AdminPasswordHash != ""
}

type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

func (a *Authenticator) generateToken(email string) (string, error) {
	claims := Claims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(24 * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			NotBefore: jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.Secret)
}

func (a *Authenticator) validateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return a.Secret, nil
	})
	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}

	return nil, jwt.ErrSignatureInvalid
}

// Middleware rejects requests without a valid admin bearer token.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}
		if !a.Enabled() {
			respondError(w, http.StatusUnauthorized, "admin access is not configured")
			return
		}

		parts := strings.Split(r.Header.Get("Authorization"), " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			respondError(w, http.StatusUnauthorized, "missing or malformed authorization header")
			return
		}
		if _, err := a.validateToken(parts[1]); err != nil {
			respondError(w, http.StatusUnauthorized, "invalid or expired token")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// POST /api/auth/login
func (api *API) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := api.Validator.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if !api.Auth.Enabled() {
		respondError(w, http.StatusUnauthorized, "admin access is not configured")
		return
	}

	if req.Email != api.Auth.AdminEmail ||
		bcrypt.CompareHashAndPassword([]byte(api.Auth.AdminPasswordHash), []byte(req.Password)) != nil {
		respondError(w, http.StatusUnauthorized, "invalid email or password")
		return
	}

	token, err := api.Auth.generateToken(req.Email)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "error generating token")
		return
	}

	respondJSON(w, http.StatusOK, LoginResponse{Token: token})
}
