package httpclient

import (
	"context"
	"net/url"
)

type userPayload struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// UserClient はユーザーサービスのクライアント
type UserClient struct {
	client *Client
}

// NewUserClient は新しいUserClientを作成する
func NewUserClient(client *Client) *UserClient {
	return &UserClient{client: client}
}

// GetEmail はユーザーのメールアドレスを取得する
// 登録がない場合は空文字を返す
func (c *UserClient) GetEmail(ctx context.Context, userID string) (string, error) {
	var p userPayload
	if err := c.client.GetJSON(ctx, "/users/"+url.PathEscape(userID), &p); err != nil {
		return "", err
	}
	return p.Email, nil
}
