package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode Agent错误码类型
type ErrorCode string

// 预定义错误码，封闭集合：适配器必须在跨越契约边界前把供应商错误归入其中之一
const (
	ErrCodeConfiguration       ErrorCode = "CONFIGURATION_ERROR"
	ErrCodeExecution           ErrorCode = "EXECUTION_ERROR"
	ErrCodeAuthorization       ErrorCode = "AUTHORIZATION_ERROR"
	ErrCodeModelUnavailable    ErrorCode = "MODEL_UNAVAILABLE"
	ErrCodeTokenLimitExceeded  ErrorCode = "TOKEN_LIMIT_EXCEEDED"
	ErrCodeCreditLimitExceeded ErrorCode = "CREDIT_LIMIT_EXCEEDED"
	ErrCodeRateLimitExceeded   ErrorCode = "RATE_LIMIT_EXCEEDED"
	ErrCodeInvalidInput        ErrorCode = "INVALID_INPUT"
	ErrCodeInternal            ErrorCode = "INTERNAL_ERROR"
)

// AgentError 应用错误结构体
type AgentError struct {
	Code      ErrorCode   `json:"code"`
	Message   string      `json:"message"`
	Retryable bool        `json:"retryable"`
	HTTPCode  int         `json:"-"`
	Details   interface{} `json:"details,omitempty"`
	Cause     error       `json:"-"`
}

// Error 实现error接口
func (e *AgentError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap 返回底层错误
func (e *AgentError) Unwrap() error {
	return e.Cause
}

// WithDetails 添加错误详情
func (e *AgentError) WithDetails(details interface{}) *AgentError {
	e.Details = details
	return e
}

// WithCause 添加错误原因
func (e *AgentError) WithCause(cause error) *AgentError {
	e.Cause = cause
	return e
}

// 错误构造函数

// NewConfigurationError 创建配置错误（不可重试）
func NewConfigurationError(message string) *AgentError {
	return &AgentError{
		Code:     ErrCodeConfiguration,
		Message:  message,
		HTTPCode: http.StatusInternalServerError,
	}
}

// NewExecutionError 创建执行错误，transient表示是否为瞬时故障
func NewExecutionError(message string, transient bool) *AgentError {
	return &AgentError{
		Code:      ErrCodeExecution,
		Message:   message,
		Retryable: transient,
		HTTPCode:  http.StatusBadGateway,
	}
}

// NewAuthorizationError 创建授权错误（不可重试）
func NewAuthorizationError(message string) *AgentError {
	return &AgentError{
		Code:     ErrCodeAuthorization,
		Message:  message,
		HTTPCode: http.StatusForbidden,
	}
}

// NewModelUnavailableError 创建模型不可用错误
func NewModelUnavailableError(model string) *AgentError {
	return &AgentError{
		Code:     ErrCodeModelUnavailable,
		Message:  fmt.Sprintf("model %s is not available", model),
		HTTPCode: http.StatusNotFound,
	}
}

// NewTokenLimitError 创建Token超限错误
func NewTokenLimitError(message string) *AgentError {
	return &AgentError{
		Code:     ErrCodeTokenLimitExceeded,
		Message:  message,
		HTTPCode: http.StatusBadRequest,
	}
}

// NewCreditLimitError 创建额度不足错误
func NewCreditLimitError(message string) *AgentError {
	return &AgentError{
		Code:     ErrCodeCreditLimitExceeded,
		Message:  message,
		HTTPCode: http.StatusPaymentRequired,
	}
}

// NewRateLimitError 创建限流错误（可重试）
func NewRateLimitError(message string) *AgentError {
	return &AgentError{
		Code:      ErrCodeRateLimitExceeded,
		Message:   message,
		Retryable: true,
		HTTPCode:  http.StatusTooManyRequests,
	}
}

// NewInvalidInputError 创建输入无效错误
func NewInvalidInputError(message string) *AgentError {
	return &AgentError{
		Code:     ErrCodeInvalidInput,
		Message:  message,
		HTTPCode: http.StatusBadRequest,
	}
}

// NewInternalError 创建内部错误
func NewInternalError(message string) *AgentError {
	return &AgentError{
		Code:     ErrCodeInternal,
		Message:  message,
		HTTPCode: http.StatusInternalServerError,
	}
}

// IsAgentError 检查是否为AgentError
func IsAgentError(err error) bool {
	var agentErr *AgentError
	return errors.As(err, &agentErr)
}

// GetAgentError 获取AgentError，如果不是则包装为内部错误
func GetAgentError(err error) *AgentError {
	var agentErr *AgentError
	if errors.As(err, &agentErr) {
		return agentErr
	}

	return NewInternalError("internal error").WithCause(err)
}

// HasCode 检查错误是否属于指定错误码
func HasCode(err error, code ErrorCode) bool {
	var agentErr *AgentError
	if errors.As(err, &agentErr) {
		return agentErr.Code == code
	}
	return false
}

// IsRetryable 检查错误是否可重试
func IsRetryable(err error) bool {
	var agentErr *AgentError
	if errors.As(err, &agentErr) {
		return agentErr.Retryable
	}
	return false
}
