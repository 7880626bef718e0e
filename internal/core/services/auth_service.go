package services

import (
	"crypto/subtle"
	"errors"
	"time"

	"overlaycam/internal/core/domain"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken       = errors.New("invalid token")
	ErrExpiredToken       = errors.New("token expired")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrInvalidCredentials = errors.New("invalid operator credentials")
)

const refreshAudience = "refresh"

// OperatorCredential is a configured operator login.
type OperatorCredential struct {
	Secret string
	Role   domain.OperatorRole
}

type AuthService interface {
	Login(operatorID domain.OperatorID, secret string) (*TokenPair, error)
	GenerateToken(operatorID domain.OperatorID, role domain.OperatorRole) (string, error)
	GenerateRefreshToken(operatorID domain.OperatorID, role domain.OperatorRole) (string, error)
	ValidateToken(tokenString string) (*Claims, error)
	ValidateRefreshToken(tokenString string) (*Claims, error)
	AccessTokenTTL() time.Duration
}

type Claims struct {
	OperatorID domain.OperatorID   `json:"operator_id"`
	Role       domain.OperatorRole `json:"role"`
	jwt.RegisteredClaims
}

type TokenPair struct {
	OperatorID   domain.OperatorID   `json:"operator_id"`
	Role         domain.OperatorRole `json:"role"`
	AccessToken  string              `json:"access_token"`
	RefreshToken string              `json:"refresh_token"`
	ExpiresIn    int                 `json:"expires_in"`
}

type authService struct {
	jwtSecret       []byte
	accessTokenTTL  time.Duration
	refreshTokenTTL time.Duration
	operators       map[domain.OperatorID]OperatorCredential
}

func NewAuthService(
	jwtSecret string,
	accessTokenTTL time.Duration,
	refreshTokenTTL time.Duration,
	operators map[domain.OperatorID]OperatorCredential,
) AuthService {
	return &authService{
		jwtSecret:       []byte(jwtSecret),
		accessTokenTTL:  accessTokenTTL,
		refreshTokenTTL: refreshTokenTTL,
		operators:       operators,
	}
}

func (s *authService) AccessTokenTTL() time.Duration {
	return s.accessTokenTTL
}

func (s *authService) Login(operatorID domain.OperatorID, secret string) (*TokenPair, error) {
	cred, ok := s.operators[operatorID]
	if !ok || subtle.ConstantTimeCompare([]byte(cred.Secret), []byte(secret)) != 1 {
		return nil, ErrInvalidCredentials
	}

	accessToken, err := s.GenerateToken(operatorID, cred.Role)
	if err != nil {
		return nil, err
	}
	refreshToken, err := s.GenerateRefreshToken(operatorID, cred.Role)
	if err != nil {
		return nil, err
	}

	return &TokenPair{
		OperatorID:   operatorID,
		Role:         cred.Role,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int(s.accessTokenTTL / time.Second),
	}, nil
}

func (s *authService) sign(operatorID domain.OperatorID, role domain.OperatorRole, ttl time.Duration, audience ...string) (string, error) {
	now := time.Now()
	claims := &Claims{
		OperatorID: operatorID,
		Role:       role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   string(operatorID),
			Audience:  audience,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}

func (s *authService) GenerateToken(operatorID domain.OperatorID, role domain.OperatorRole) (string, error) {
	return s.sign(operatorID, role, s.accessTokenTTL)
}

func (s *authService) GenerateRefreshToken(operatorID domain.OperatorID, role domain.OperatorRole) (string, error) {
	return s.sign(operatorID, role, s.refreshTokenTTL, refreshAudience)
}

func (s *authService) parse(tokenString string, opts ...jwt.ParserOption) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.jwtSecret, nil
	}, opts...)

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}

	return nil, ErrInvalidToken
}

// ValidateToken accepts access tokens only.
func (s *authService) ValidateToken(tokenString string) (*Claims, error) {
	claims, err := s.parse(tokenString)
	if err != nil {
		return nil, err
	}
	for _, aud := range claims.Audience {
		if aud == refreshAudience {
			return nil, ErrInvalidToken
		}
	}
	return claims, nil
}

func (s *authService) ValidateRefreshToken(tokenString string) (*Claims, error) {
	return s.parse(tokenString, jwt.WithAudience(refreshAudience))
}
