package util

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// 错误分类，请求边界通过 errors.Is 映射为 HTTP 状态码
var (
	ErrNotFound        = errors.New("resource not found")
	ErrForbidden       = errors.New("forbidden")
	ErrConflict        = errors.New("conflict")
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrValidation      = errors.New("validation failed")
)

var (
	ErrUserNotFound       = fmt.Errorf("用户不存在: %w", ErrNotFound)
	ErrEmailRegistered    = fmt.Errorf("该邮箱已被注册: %w", ErrConflict)
	ErrInvalidCredentials = fmt.Errorf("邮箱或密码错误: %w", ErrUnauthenticated)
	ErrCompanyNotFound    = fmt.Errorf("company not found: %w", ErrNotFound)

	ErrAlreadyEnrolled         = fmt.Errorf("already enrolled in this course: %w", ErrConflict)
	ErrNotEnrolled             = fmt.Errorf("not enrolled in this course: %w", ErrForbidden)
	ErrAttemptAlreadyCompleted = fmt.Errorf("attempt already completed: %w", ErrConflict)
	ErrLessonOrderTaken        = fmt.Errorf("lesson order already used in this course: %w", ErrConflict)
)

// ValidationError 携带字段级错误信息
type ValidationError struct {
	Fields map[string]string
}

func NewValidationError(field, msg string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: msg}}
}

// Add 追加一个字段错误，返回自身便于链式调用
func (e *ValidationError) Add(field, msg string) *ValidationError {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	e.Fields[field] = msg
	return e
}

func (e *ValidationError) HasErrors() bool {
	return e != nil && len(e.Fields) > 0
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

var (
	ErrQuestionMismatch = NewValidationError("questionId", "question does not belong to this quiz")
	ErrOptionMismatch   = NewValidationError("optionId", "option does not belong to this question")
	ErrLessonMismatch   = NewValidationError("lessonId", "lesson does not belong to this course")
)
