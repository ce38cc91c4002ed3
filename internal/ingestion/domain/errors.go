package domain

import (
	"context"
	"errors"
	"fmt"
)

// ErrorKind 错误分类：瞬态可重试，永久不可重试
type ErrorKind int

const (
	KindTransient ErrorKind = iota
	KindPermanent
)

func (k ErrorKind) String() string {
	if k == KindPermanent {
		return "permanent"
	}
	return "transient"
}

// ErrCancelled 任务被协作式取消
var ErrCancelled = errors.New("job cancelled")

// ProviderError 上游供应商错误
type ProviderError struct {
	Kind ErrorKind
	Msg  string
	// Remediation 供应商建议的修复方式（如有）
	Remediation string
	Err         error
}

func (e *ProviderError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("provider error (%s): %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("provider error (%s): %s", e.Kind, e.Msg)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// NewTransientProviderError 创建瞬态供应商错误（超时、限流、连接重置）
func NewTransientProviderError(msg string, err error) *ProviderError {
	return &ProviderError{Kind: KindTransient, Msg: msg, Err: err}
}

// NewPermanentProviderError 创建永久供应商错误（无效符号、非法模式/日期组合）
func NewPermanentProviderError(msg string, err error) *ProviderError {
	return &ProviderError{Kind: KindPermanent, Msg: msg, Err: err}
}

// StorageError 目标存储错误
type StorageError struct {
	Kind ErrorKind
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error (%s): %v", e.Kind, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// TransformError 原始记录转换失败（字段缺失或格式非法），按校验失败处理，进入隔离区
type TransformError struct {
	Field string
	Msg   string
}

func (e *TransformError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("transform error: field %q: %s", e.Field, e.Msg)
	}
	return fmt.Sprintf("transform error: %s", e.Msg)
}

// QuarantinePersistenceError 隔离区自身落盘失败，仅记录不终止任务
type QuarantinePersistenceError struct {
	Entry QuarantineEntry
	Err   error
}

func (e *QuarantinePersistenceError) Error() string {
	return fmt.Sprintf("quarantine persistence failed for job %s: %v", e.Entry.JobName, e.Err)
}

func (e *QuarantinePersistenceError) Unwrap() error { return e.Err }

// IsTransient 判断错误是否可重试。超时与 context deadline 视为瞬态；
// 取消与永久错误不可重试。重试耗尽已升级为永久，先于底层瞬态原因判定，
// 避免经 Unwrap 穿透回瞬态分类再次触发重试。
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrCancelled) || errors.Is(err, context.Canceled) {
		return false
	}

	var re *RetriesExhaustedError
	if errors.As(err, &re) {
		return false
	}

	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Kind == KindTransient
	}
	var se *StorageError
	if errors.As(err, &se) {
		return se.Kind == KindTransient
	}

	// 分块级超时走瞬态重试路径
	return errors.Is(err, context.DeadlineExceeded)
}

// IsPermanent 判断错误是否为不可重试的终止性错误
func IsPermanent(err error) bool {
	if err == nil {
		return false
	}
	var re *RetriesExhaustedError
	if errors.As(err, &re) {
		return true
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Kind == KindPermanent
	}
	var se *StorageError
	if errors.As(err, &se) {
		return se.Kind == KindPermanent
	}
	return false
}

// RetriesExhaustedError 瞬态错误重试耗尽后升级为永久错误
type RetriesExhaustedError struct {
	Attempts int
	Last     error
}

func (e *RetriesExhaustedError) Error() string {
	return fmt.Sprintf("transient error exhausted %d retries: %v", e.Attempts, e.Last)
}

func (e *RetriesExhaustedError) Unwrap() error { return e.Last }
