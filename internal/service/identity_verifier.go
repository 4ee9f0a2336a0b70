package service

import (
	"errors"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"simple-gpt/internal/domain"
)

// IdentityVerifier valida los access tokens que emite el proveedor de
// identidad externo. Este servicio nunca emite tokens, solo los verifica.
type IdentityVerifier struct {
	secret []byte
}

type identityClaims struct {
	UserID string `json:"uid,omitempty"`
	jwt.RegisteredClaims
}

var (
	ErrTokenInvalid = errors.New("token invalid")
	ErrTokenExpired = errors.New("token expired")
)

func NewIdentityVerifier(secret string) *IdentityVerifier {
	return &IdentityVerifier{secret: []byte(secret)}
}

// Verify parsea el token y devuelve la identidad autenticada.
func (v *IdentityVerifier) Verify(tokenString string) (domain.Identity, error) {
	if v == nil || len(v.secret) == 0 {
		return domain.Identity{}, ErrTokenInvalid
	}
	if strings.TrimSpace(tokenString) == "" {
		return domain.Identity{}, ErrTokenInvalid
	}

	var claims identityClaims
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	_, err := parser.ParseWithClaims(tokenString, &claims, func(_ *jwt.Token) (any, error) {
		return v.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return domain.Identity{}, ErrTokenExpired
		}
		return domain.Identity{}, ErrTokenInvalid
	}

	userID := strings.TrimSpace(claims.UserID)
	if userID == "" {
		userID = strings.TrimSpace(claims.Subject)
	}
	if userID == "" {
		return domain.Identity{}, ErrTokenInvalid
	}
	return domain.Identity{UserID: userID}, nil
}
