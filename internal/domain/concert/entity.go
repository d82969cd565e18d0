package concert

import "time"

// Concert はコンサートエンティティを表す
// 開始時刻を過ぎたコンサートはスケジューラによって非アクティブ化される
type Concert struct {
	ID          string
	Name        string
	Artist      string
	Venue       string
	Description string
	StartTime   time.Time
	EndTime     time.Time
	IsActive    bool
	SeatTypeIDs []string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NewConcert は新しいコンサートを作成する
func NewConcert(name, artist, venue, description string, startTime, endTime time.Time) *Concert {
	now := time.Now()
	return &Concert{
		Name:        name,
		Artist:      artist,
		Venue:       venue,
		Description: description,
		StartTime:   startTime,
		EndTime:     endTime,
		IsActive:    true,
		SeatTypeIDs: []string{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Validate はコンサートの検証を行う
func (c *Concert) Validate(now time.Time) error {
	if c.Name == "" {
		return ErrConcertNameRequired
	}
	if !c.StartTime.After(now) {
		return ErrStartTimeInPast
	}
	if !c.EndTime.After(c.StartTime) {
		return ErrInvalidConcertTime
	}
	return nil
}

// IsBookable は予約受付中かどうかを返す
func (c *Concert) IsBookable() bool {
	return c.IsActive
}

// HasSeatType は座席種別がこのコンサートに属するかを返す
func (c *Concert) HasSeatType(seatTypeID string) bool {
	for _, id := range c.SeatTypeIDs {
		if id == seatTypeID {
			return true
		}
	}
	return false
}

// Update は更新内容を適用する
// 開始時刻が変わった場合は true を返す
func (c *Concert) Update(in UpdateFields) bool {
	if in.Name != nil {
		c.Name = *in.Name
	}
	if in.Artist != nil {
		c.Artist = *in.Artist
	}
	if in.Venue != nil {
		c.Venue = *in.Venue
	}
	if in.Description != nil {
		c.Description = *in.Description
	}
	if in.EndTime != nil {
		c.EndTime = *in.EndTime
	}
	if in.IsActive != nil {
		c.IsActive = *in.IsActive
	}
	changed := false
	if in.StartTime != nil && !in.StartTime.Equal(c.StartTime) {
		c.StartTime = *in.StartTime
		changed = true
	}
	c.UpdatedAt = time.Now()
	return changed
}

// UpdateFields は部分更新の内容（nil は変更なし）
type UpdateFields struct {
	Name        *string
	Artist      *string
	Venue       *string
	Description *string
	StartTime   *time.Time
	EndTime     *time.Time
	IsActive    *bool
}

// SeatType は座席種別を表す
// Capacity は作成後に変更しない
type SeatType struct {
	ID          string
	ConcertID   string
	Name        string
	Description string
	Price       int
	Capacity    int
	IsActive    bool
	CreatedAt   time.Time
}

// NewSeatType は新しい座席種別を作成する
func NewSeatType(concertID, name, description string, price, capacity int) *SeatType {
	return &SeatType{
		ConcertID:   concertID,
		Name:        name,
		Description: description,
		Price:       price,
		Capacity:    capacity,
		IsActive:    true,
		CreatedAt:   time.Now(),
	}
}

// Validate は座席種別の検証を行う
func (s *SeatType) Validate() error {
	if s.Name == "" {
		return ErrSeatTypeNameRequired
	}
	if s.Price < 0 {
		return ErrInvalidPrice
	}
	if s.Capacity <= 0 {
		return ErrInvalidCapacity
	}
	return nil
}
