package service

import (
	"errors"
	"fmt"
)

var (
	// ErrInputEmpty 提交的代码为空或全是空白
	ErrInputEmpty = errors.New("code is empty")
	// ErrInputTooLarge 提交的代码超出长度上限
	ErrInputTooLarge = errors.New("code exceeds the maximum length")
)

// GenerationError 标记上游服务商调用失败。发生时不提交配额，也不落库。
type GenerationError struct {
	Cause error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("poem generation failed: %v", e.Cause)
}

func (e *GenerationError) Unwrap() error {
	return e.Cause
}
