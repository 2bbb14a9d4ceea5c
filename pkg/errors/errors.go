// Package errors 提供统一的错误定义
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// ErrorCode 错误码类型
type ErrorCode string

// 预定义错误码
const (
	// 通用错误 (1xxx)
	CodeSuccess            ErrorCode = "0"
	CodeUnknown            ErrorCode = "1000"
	CodeInvalidParam       ErrorCode = "1001"
	CodeUnauthorized       ErrorCode = "1002"
	CodeForbidden          ErrorCode = "1003"
	CodeNotFound           ErrorCode = "1004"
	CodeConflict           ErrorCode = "1005"
	CodeTooManyRequests    ErrorCode = "1006"
	CodeInternalError      ErrorCode = "1007"
	CodeServiceUnavailable ErrorCode = "1008"

	// 认证授权错误 (2xxx)
	CodeTokenExpired      ErrorCode = "2001"
	CodeTokenInvalid      ErrorCode = "2002"
	CodeTokenMissing      ErrorCode = "2003"
	CodePermissionDenied  ErrorCode = "2004"
	CodeEmailAlreadyUsed  ErrorCode = "2005"
	CodeInvalidCredential ErrorCode = "2006"

	// 资源错误 (3xxx)
	CodeAccountNotFound     ErrorCode = "3001"
	CodeTransactionNotFound ErrorCode = "3002"
	CodeContentNotFound     ErrorCode = "3003"
	CodeRunNotFound         ErrorCode = "3004"
	CodeUserNotFound        ErrorCode = "3005"

	// 业务错误 (4xxx)
	CodeInvalidAmount         ErrorCode = "4001"
	CodeInsufficientFunds     ErrorCode = "4002"
	CodeQuotaExceeded         ErrorCode = "4003"
	CodeTransactionConflict   ErrorCode = "4004"
	CodeRefundAlreadySettled  ErrorCode = "4005"
	CodeReconciliationFailed  ErrorCode = "4006"
	CodeSettlementOutstanding ErrorCode = "4007"
	CodeGenerationCancelled   ErrorCode = "4008"

	// 外部服务错误 (5xxx)
	CodeDatabaseError    ErrorCode = "5001"
	CodeCacheError       ErrorCode = "5002"
	CodeVectorDBError    ErrorCode = "5003"
	CodeGenerationFailed ErrorCode = "5004"
	CodeDetectionFailed  ErrorCode = "5005"
	CodeEmbeddingFailed  ErrorCode = "5006"
)

// AppError 应用错误
type AppError struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	Detail     string    `json:"detail,omitempty"`
	HTTPStatus int       `json:"-"`
	Err        error     `json:"-"`
}

// Error 实现 error 接口
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap 返回底层错误
func (e *AppError) Unwrap() error {
	return e.Err
}

// WithDetail 添加详细信息
func (e *AppError) WithDetail(detail string) *AppError {
	e.Detail = detail
	return e
}

// WithError 添加底层错误
func (e *AppError) WithError(err error) *AppError {
	e.Err = err
	return e
}

// New 创建新的应用错误
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
	}
}

// Newf 创建带格式化消息的应用错误
func Newf(code ErrorCode, format string, args ...any) *AppError {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap 包装错误
func Wrap(err error, code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
		Err:        err,
	}
}

// codeToHTTPStatus 错误码转 HTTP 状态码
func codeToHTTPStatus(code ErrorCode) int {
	switch code {
	case CodeSuccess:
		return http.StatusOK
	case CodeInvalidParam, CodeInvalidAmount:
		return http.StatusBadRequest
	case CodeUnauthorized, CodeTokenExpired, CodeTokenInvalid, CodeTokenMissing, CodeInvalidCredential:
		return http.StatusUnauthorized
	case CodeInsufficientFunds:
		return http.StatusPaymentRequired
	case CodeForbidden, CodePermissionDenied:
		return http.StatusForbidden
	case CodeNotFound, CodeAccountNotFound, CodeTransactionNotFound, CodeContentNotFound, CodeRunNotFound, CodeUserNotFound:
		return http.StatusNotFound
	case CodeConflict, CodeTransactionConflict, CodeRefundAlreadySettled, CodeEmailAlreadyUsed:
		return http.StatusConflict
	case CodeTooManyRequests, CodeQuotaExceeded:
		return http.StatusTooManyRequests
	case CodeServiceUnavailable:
		return http.StatusServiceUnavailable
	case CodeGenerationFailed, CodeDetectionFailed, CodeEmbeddingFailed, CodeVectorDBError:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// 预定义错误
var (
	ErrInvalidParam       = New(CodeInvalidParam, "invalid parameter")
	ErrUnauthorized       = New(CodeUnauthorized, "unauthorized")
	ErrForbidden          = New(CodeForbidden, "forbidden")
	ErrNotFound           = New(CodeNotFound, "resource not found")
	ErrConflict           = New(CodeConflict, "resource conflict")
	ErrTooManyRequests    = New(CodeTooManyRequests, "too many requests")
	ErrInternalError      = New(CodeInternalError, "internal server error")
	ErrServiceUnavailable = New(CodeServiceUnavailable, "service unavailable")

	ErrTokenExpired      = New(CodeTokenExpired, "token expired")
	ErrTokenInvalid      = New(CodeTokenInvalid, "token invalid")
	ErrTokenMissing      = New(CodeTokenMissing, "token missing")
	ErrInvalidCredential = New(CodeInvalidCredential, "invalid email or password")
	ErrEmailAlreadyUsed  = New(CodeEmailAlreadyUsed, "email already registered")

	ErrAccountNotFound     = New(CodeAccountNotFound, "account not found")
	ErrTransactionNotFound = New(CodeTransactionNotFound, "transaction not found")
	ErrContentNotFound     = New(CodeContentNotFound, "content not found")
	ErrRunNotFound         = New(CodeRunNotFound, "generation run not found")
	ErrUserNotFound        = New(CodeUserNotFound, "user not found")

	ErrInvalidAmount        = New(CodeInvalidAmount, "amount must be greater than zero")
	ErrInsufficientFunds    = New(CodeInsufficientFunds, "insufficient credits")
	ErrQuotaExceeded        = New(CodeQuotaExceeded, "monthly word quota exceeded")
	ErrTransactionConflict  = New(CodeTransactionConflict, "transaction conflict, please retry")
	ErrRefundAlreadySettled = New(CodeRefundAlreadySettled, "reference transaction already settled")
	ErrReconciliationFailed = New(CodeReconciliationFailed, "credit reconciliation failed")
	ErrGenerationCancelled  = New(CodeGenerationCancelled, "generation cancelled")

	ErrGenerationFailed = New(CodeGenerationFailed, "content generation failed")
	ErrDetectionFailed  = New(CodeDetectionFailed, "content detection failed")
	ErrEmbeddingFailed  = New(CodeEmbeddingFailed, "embedding failed")
)

// IsAppError 检查是否为 AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return stderrors.As(err, &appErr)
}

// AsAppError 将错误转换为 AppError
func AsAppError(err error) *AppError {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}
	return Wrap(err, CodeUnknown, "unknown error")
}

// IsCode 判断错误链上是否存在指定错误码
func IsCode(err error, code ErrorCode) bool {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}
