package httpclient

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/sanosuguru/go-concert-booking/internal/domain/concert"
)

type concertPayload struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	IsActive  *bool     `json:"isActive"`
	StartTime time.Time `json:"startTime"`
	EndTime   time.Time `json:"endTime"`
	SeatTypes []string  `json:"seatTypes"`
}

type seatTypePayload struct {
	ID        string `json:"id"`
	ConcertID string `json:"concertId"`
	Name      string `json:"name"`
	Price     int    `json:"price"`
	Capacity  *int   `json:"capacity"`
}

// ConcertClient はコンサートサービスのクライアント
type ConcertClient struct {
	client *Client
}

// NewConcertClient は新しいConcertClientを作成する
func NewConcertClient(client *Client) *ConcertClient {
	return &ConcertClient{client: client}
}

// GetConcert はコンサートを取得する
func (c *ConcertClient) GetConcert(ctx context.Context, concertID string) (*concert.Concert, error) {
	var p concertPayload
	if err := c.client.GetJSON(ctx, "/concerts/"+url.PathEscape(concertID), &p); err != nil {
		return nil, err
	}
	if p.ID == "" || p.IsActive == nil {
		return nil, fmt.Errorf("%w: コンサートの必須項目がありません", ErrServiceUnavailable)
	}
	seatTypes := p.SeatTypes
	if seatTypes == nil {
		seatTypes = []string{}
	}
	return &concert.Concert{
		ID: p.ID, Name: p.Name, IsActive: *p.IsActive,
		StartTime: p.StartTime, EndTime: p.EndTime, SeatTypeIDs: seatTypes,
	}, nil
}

// GetSeatType はコンサートに属する座席種別を取得する
func (c *ConcertClient) GetSeatType(ctx context.Context, concertID, seatTypeID string) (*concert.SeatType, error) {
	var p seatTypePayload
	path := fmt.Sprintf("/concerts/%s/seat-types/%s", url.PathEscape(concertID), url.PathEscape(seatTypeID))
	if err := c.client.GetJSON(ctx, path, &p); err != nil {
		return nil, err
	}
	if p.ID == "" || p.Capacity == nil {
		return nil, fmt.Errorf("%w: 座席種別の必須項目がありません", ErrServiceUnavailable)
	}
	return &concert.SeatType{
		ID: p.ID, ConcertID: p.ConcertID, Name: p.Name, Price: p.Price, Capacity: *p.Capacity, IsActive: true,
	}, nil
}
