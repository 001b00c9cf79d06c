package auth

import (
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/jwalitptl/clinic-api/internal/model"
)

type JWTService interface {
	GenerateAccessToken(principal model.Principal) (string, error)
	ValidateToken(token string) (*model.TokenClaims, error)
	Expiry() time.Duration
}

const issuer = "clinic-api"

type hmacService struct {
	secret []byte
	expiry time.Duration
	now    func() time.Time
}

// NewJWTService signs HS256 tokens with secret, valid for expiry.
func NewJWTService(secret string, expiry time.Duration) JWTService {
	return &hmacService{secret: []byte(secret), expiry: expiry, now: time.Now}
}

func (s *hmacService) Expiry() time.Duration { return s.expiry }

func (s *hmacService) GenerateAccessToken(principal model.Principal) (string, error) {
	now := s.now()
	claims := model.TokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   string(principal.Role) + ":" + strconv.FormatInt(principal.ID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.expiry)),
		},
		Role:      principal.Role,
		SubjectID: principal.ID,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

func (s *hmacService) ValidateToken(token string) (*model.TokenClaims, error) {
	claims := &model.TokenClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	switch claims.Role {
	case model.RolePatient, model.RoleDoctor, model.RoleAdmin:
	default:
		return nil, fmt.Errorf("invalid token: unknown role %q", claims.Role)
	}
	return claims, nil
}
