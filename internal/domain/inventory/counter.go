// Package inventory は座席種別ごとの残席カウンタを定義する。
package inventory

import (
	"context"

	"github.com/sanosuguru/go-concert-booking/internal/domain/failure"
)

var (
	// ErrExhausted は残席が0であることを表す（カウンタは変更しない）
	ErrExhausted = failure.User("残席がありません")

	// ErrNotInitialized はカウンタが未初期化であることを表す
	ErrNotInitialized = failure.Anomaly("在庫カウンタが初期化されていません")

	// ErrOverRelease は座席数を超えて戻そうとしたことを表す
	ErrOverRelease = failure.Anomaly("座席数を超える在庫の返却です")
)

// Counter は (concertID, seatTypeID) ごとの残席カウンタ
// 0 <= remaining <= capacity を常に保つ
type Counter interface {
	// Reserve は残席を1つ確保し、確保後の残数を返す
	Reserve(ctx context.Context, concertID, seatTypeID string) (int, error)

	// Release は残席を1つ戻し、戻した後の残数を返す
	Release(ctx context.Context, concertID, seatTypeID string) (int, error)

	// Seed は未初期化の場合のみカウンタを capacity で初期化する
	Seed(ctx context.Context, concertID, seatTypeID string, capacity int) (bool, error)

	// Available は現在の残数を返す
	Available(ctx context.Context, concertID, seatTypeID string) (int, error)
}
