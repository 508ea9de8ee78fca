package gateway

import (
	"errors"
	"fmt"
)

type ErrorKind int

const (
	// 金額・通貨などの業務ルール違反。ユーザー向けメッセージをそのまま返せる。
	KindBusinessRule ErrorKind = iota + 1
	// プロバイダとの通信・API失敗。リトライ可能性あり。
	KindProvider
	// 対応する決済レコードが見つからない。
	KindNotFound
	// webhook署名の検証失敗。
	KindUnverified
)

// Error は決済レイヤの失敗を種別付きで表す。
// 呼び出し側はKindで分岐し、メッセージ文字列のパターンマッチはしない。
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func NewBusinessRuleError(message string) *Error {
	return &Error{Kind: KindBusinessRule, Message: message}
}

func NewProviderError(message string, err error) *Error {
	return &Error{Kind: KindProvider, Message: message, Err: err}
}

func NewNotFoundError(message string) *Error {
	return &Error{Kind: KindNotFound, Message: message}
}

func NewUnverifiedError(message string, err error) *Error {
	return &Error{Kind: KindUnverified, Message: message, Err: err}
}

func AsError(err error) (*Error, bool) {
	var ge *Error
	ok := errors.As(err, &ge)
	return ge, ok
}
