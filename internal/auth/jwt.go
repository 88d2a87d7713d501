package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Token stages. Login yields a pre-tenant token carrying only the verified
// email; selecting a tenant exchanges it for a tenant-bound token carrying
// the schema the request router will bind to.
const (
	StagePreTenant = "pre_tenant"
	StageTenant    = "tenant"
)

// Claims is the payload of both token stages. Tenant fields are empty on a
// pre-tenant token.
type Claims struct {
	Stage        string   `json:"stage"`
	Email        string   `json:"email"`
	Name         string   `json:"name,omitempty"`
	UserID       string   `json:"user_id,omitempty"`
	TenantCode   string   `json:"company_code,omitempty"`
	TenantSchema string   `json:"schema_name,omitempty"`
	Roles        []string `json:"roles,omitempty"`
	jwt.RegisteredClaims
}

// TokenService signs and verifies both token stages with one HMAC secret.
type TokenService struct {
	secret       []byte
	preTenantTTL time.Duration
	tenantTTL    time.Duration
}

func NewTokenService(secret string, preTenantTTL, tenantTTL time.Duration) (*TokenService, error) {
	if len(secret) < 32 {
		return nil, fmt.Errorf("jwt secret must be at least 32 bytes")
	}
	return &TokenService{
		secret:       []byte(secret),
		preTenantTTL: preTenantTTL,
		tenantTTL:    tenantTTL,
	}, nil
}

// GeneratePreTenant issues the short-lived token returned by login, valid
// only for listing memberships and selecting a tenant.
func (s *TokenService) GeneratePreTenant(email, name string) (string, error) {
	return s.sign(Claims{
		Stage: StagePreTenant,
		Email: email,
		Name:  name,
	}, s.preTenantTTL)
}

// GenerateTenant issues the working token bound to one tenant. Every
// tenant-scoped endpoint requires this stage.
func (s *TokenService) GenerateTenant(userID uuid.UUID, email, tenantCode, tenantSchema string, roles []string) (string, error) {
	return s.sign(Claims{
		Stage:        StageTenant,
		Email:        email,
		UserID:       userID.String(),
		TenantCode:   tenantCode,
		TenantSchema: tenantSchema,
		Roles:        roles,
	}, s.tenantTTL)
}

func (s *TokenService) sign(claims Claims, ttl time.Duration) (string, error) {
	now := time.Now()
	claims.RegisteredClaims = jwt.RegisteredClaims{
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		Subject:   claims.Email,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Parse verifies the signature and expiry and returns the claims. The
// caller checks the stage.
func (s *TokenService) Parse(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}
	return claims, nil
}
