// Package failure は予約処理で扱うエラーの分類を定義する。
//
// 利用者起因のエラー（User）はそのまま呼び出し元へ返し、再試行しない。
// 連携先起因のエラー（Dependency）は呼び出し元がリクエスト全体を再試行できるよう区別して返す。
// 運用上の異常（Anomaly）はログとアラートの対象であり、プロセスを停止させない。
package failure

import "errors"

// Kind はエラー分類
type Kind int

const (
	KindUnknown Kind = iota
	KindUser
	KindDependency
	KindAnomaly
)

func (k Kind) String() string {
	switch k {
	case KindUser:
		return "user"
	case KindDependency:
		return "dependency"
	case KindAnomaly:
		return "anomaly"
	default:
		return "unknown"
	}
}

// Error は分類付きのセンチネルエラー
type Error struct {
	kind Kind
	msg  string
}

func (e *Error) Error() string { return e.msg }

// Kind はエラー分類を返す
func (e *Error) Kind() Kind { return e.kind }

// User は利用者起因のエラーを作成する
func User(msg string) *Error { return &Error{kind: KindUser, msg: msg} }

// Dependency は連携先起因のエラーを作成する
func Dependency(msg string) *Error { return &Error{kind: KindDependency, msg: msg} }

// Anomaly は運用異常を表すエラーを作成する
func Anomaly(msg string) *Error { return &Error{kind: KindAnomaly, msg: msg} }

// KindOf はラップされたエラーを辿って分類を返す
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.kind
	}
	return KindUnknown
}
