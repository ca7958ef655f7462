package errprocess

import (
	"errors"

	"secure_chat_service/pkg/logger"
)

// Kind 錯誤分類，決定 handler 邊界的回應方式
type Kind int

const (
	// KindValidation 請求格式/長度/對象錯誤，同步拒絕，不改狀態
	KindValidation Kind = iota
	// KindAuth 憑證缺失、無效或過期
	KindAuth
	// KindPolicy 違反策略(明文訊息、device id 不符、備份頻率限制)
	KindPolicy
	// KindNotFound 訊息或金鑰包不存在
	KindNotFound
	// KindTransient 基礎設施暫時性錯誤(publish 失敗、RPC 逾時、鎖逾時)，可重試
	KindTransient
)

// Error 帶分類的錯誤
type Error struct {
	Kind Kind
	Msg  string
}

func (e *Error) Error() string {
	return e.Msg
}

// Set set err info
func Set(errMsg string) error {
	logger.Log.Error(errMsg)
	return errors.New(errMsg)
}

// New 建立帶分類的錯誤並記錄
func New(kind Kind, msg string) error {
	if kind == KindTransient {
		logger.Log.Error(msg)
	}
	return &Error{Kind: kind, Msg: msg}
}

// KindOf 取得錯誤分類，未分類的一律視為暫時性錯誤
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindTransient
}

// IsKind check err kind
func IsKind(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
