package service

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/ajkula/GoAccessGate/domain/model"
	"github.com/ajkula/GoAccessGate/domain/port/inbound"
	"github.com/ajkula/GoAccessGate/domain/port/outbound"
)

type authService struct {
	logger    outbound.Logger
	jwtSecret string
	jwtExpiry time.Duration
}

func NewAuthService(logger outbound.Logger, jwtSecret string, jwtExpiryMinutes int) inbound.AuthService {
	return &authService{
		logger:    logger,
		jwtSecret: jwtSecret,
		jwtExpiry: time.Duration(jwtExpiryMinutes) * time.Minute,
	}
}

func (s *authService) IssueToken(identity model.Identity, issuedAt time.Time) (string, error) {
	if identity.Username == "" {
		return "", model.ErrAuth
	}

	claims := jwt.MapClaims{
		"username": identity.Username,
		"role":     string(identity.Role),
		"iat":      issuedAt.Unix(),
	}
	if s.jwtExpiry > 0 {
		claims["exp"] = issuedAt.Add(s.jwtExpiry).Unix()
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.jwtSecret))
	if err != nil {
		s.logger.Error("Failed to sign token", "username", identity.Username, "error", err)
		return "", err
	}
	return signed, nil
}

func (s *authService) ValidateToken(tokenString string) (*model.Identity, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(s.jwtSecret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, model.ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, model.ErrInvalidToken
	}

	identity, err := IdentityFromClaims(claims)
	if err != nil {
		return nil, err
	}
	return identity, nil
}

// IdentityFromClaims reads the username and role claims of a bearer token
func IdentityFromClaims(claims jwt.MapClaims) (*model.Identity, error) {
	username, ok := claims["username"].(string)
	if !ok || username == "" {
		return nil, model.ErrInvalidToken
	}
	role, _ := claims["role"].(string)
	return &model.Identity{Username: username, Role: model.UserRole(role)}, nil
}
