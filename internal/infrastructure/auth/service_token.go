// Package auth はサービス間呼び出しで使う資格情報を発行する。
package auth

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// 期限のこの時間前になったら再発行する
const refreshMargin = 5 * time.Minute

// ServiceClaims はサービス用トークンのクレーム
type ServiceClaims struct {
	Roles   []string `json:"roles"`
	Service string   `json:"service"`
	Type    string   `json:"type"`
	jwt.RegisteredClaims
}

// ServiceTokenProvider は HS256 で署名したサービス用トークンを発行し、期限近くまで使い回す
type ServiceTokenProvider struct {
	secret  []byte
	service string
	ttl     time.Duration
	now     func() time.Time

	mu      sync.Mutex
	token   string
	expires time.Time
}

// NewServiceTokenProvider は新しいServiceTokenProviderを作成する
func NewServiceTokenProvider(secret, service string, ttl time.Duration) *ServiceTokenProvider {
	return &ServiceTokenProvider{
		secret:  []byte(secret),
		service: service,
		ttl:     ttl,
		now:     time.Now,
	}
}

// Token は有効なトークンを返す
func (p *ServiceTokenProvider) Token(_ context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	if p.token != "" && now.Before(p.expires.Add(-refreshMargin)) {
		return p.token, nil
	}

	exp := now.Add(p.ttl)
	claims := ServiceClaims{
		Roles:   []string{"service"},
		Service: p.service,
		Type:    "service",
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   p.service,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.secret)
	if err != nil {
		return "", fmt.Errorf("サービストークンの署名に失敗: %w", err)
	}

	p.token = signed
	p.expires = exp
	return signed, nil
}

// ParseServiceToken はサービス用トークンを検証してクレームを返す
func ParseServiceToken(secret, token string) (*ServiceClaims, error) {
	claims := &ServiceClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("サービストークンが不正です: %w", err)
	}
	if claims.Type != "service" {
		return nil, fmt.Errorf("サービストークンではありません")
	}
	return claims, nil
}
