// Package httpclient は連携サービスへのHTTP呼び出しを行う。
//
// 失敗はすべて ErrServiceTimeout, ErrNotFound, ErrServiceUnavailable のいずれかに変換する。
// クライアント内で再試行はしない。
package httpclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sanosuguru/go-concert-booking/internal/domain/failure"
	"github.com/sanosuguru/go-concert-booking/internal/pkg/logger"
	"github.com/sanosuguru/go-concert-booking/internal/pkg/metrics"
)

var (
	ErrServiceTimeout     = failure.Dependency("連携サービスの応答がタイムアウトしました")
	ErrNotFound           = failure.Dependency("連携サービスにリソースが見つかりません")
	ErrServiceUnavailable = failure.Dependency("連携サービスを利用できません")
)

// CredentialProvider はサービス間認証のトークンを提供する
type CredentialProvider interface {
	Token(ctx context.Context) (string, error)
}

// Client は連携サービス1つ分のHTTPクライアント
type Client struct {
	baseURL     string
	target      string
	serviceName string
	timeout     time.Duration
	http        *http.Client
	creds       CredentialProvider
}

// New は新しいClientを作成する
// target はメトリクスとログに使う連携先の名前
func New(baseURL, target, serviceName string, timeout time.Duration, creds CredentialProvider) *Client {
	return &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		target:      target,
		serviceName: serviceName,
		timeout:     timeout,
		http:        &http.Client{},
		creds:       creds,
	}
}

// GetJSON は GET リクエストを送り、レスポンスを dst にデコードする
func (c *Client) GetJSON(ctx context.Context, path string, dst interface{}) error {
	start := time.Now()
	err := c.getJSON(ctx, path, dst)
	c.observe(path, start, err)
	return err
}

func (c *Client) getJSON(ctx context.Context, path string, dst interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	token, err := c.creds.Token(ctx)
	if err != nil {
		return fmt.Errorf("%w: 資格情報の取得に失敗: %v", ErrServiceUnavailable, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-Service-Name", c.serviceName)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if isTimeout(ctx, err) {
			return fmt.Errorf("%w: GET %s", ErrServiceTimeout, path)
		}
		return fmt.Errorf("%w: GET %s: %v", ErrServiceUnavailable, path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: GET %s", ErrNotFound, path)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return fmt.Errorf("%w: GET %s: status %d", ErrServiceUnavailable, path, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		if isTimeout(ctx, err) {
			return fmt.Errorf("%w: GET %s", ErrServiceTimeout, path)
		}
		return fmt.Errorf("%w: レスポンスのデコードに失敗: %v", ErrServiceUnavailable, err)
	}
	return nil
}

func (c *Client) observe(path string, start time.Time, err error) {
	status := "ok"
	switch {
	case errors.Is(err, ErrServiceTimeout):
		status = "timeout"
	case errors.Is(err, ErrNotFound):
		status = "not_found"
	case err != nil:
		status = "unavailable"
	}
	if err != nil && status != "not_found" {
		logger.Warn("連携サービス呼び出しに失敗しました",
			zap.String("target", c.target),
			zap.String("path", path),
			zap.Error(err),
		)
	}
	if m := metrics.Get(); m != nil {
		m.DependencyRequestDuration.WithLabelValues(c.target, status).Observe(time.Since(start).Seconds())
	}
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
