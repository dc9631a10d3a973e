package models

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// 错误分类
var (
	ErrNotFound            = errors.New("not found")
	ErrOwnerNotFound       = errors.New("owner not found")
	ErrAdminNotFound       = errors.New("admin not found")
	ErrOwnershipMismatch   = errors.New("station does not belong to the owner")
	ErrValidation          = errors.New("validation failed")
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
)

// ValidationError 字段级校验错误
type ValidationError struct {
	Fields map[string]string
}

// NewValidationError 创建校验错误
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: message}}
}

// Add 追加字段错误
func (e *ValidationError) Add(field, message string) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	e.Fields[field] = message
}

// HasErrors 是否存在字段错误
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
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return fmt.Sprintf("%s: %s", ErrValidation.Error(), strings.Join(parts, "; "))
}

// Is 让 errors.Is(err, ErrValidation) 成立
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// StationNotFound 站点不存在
func StationNotFound(id int64) error {
	return fmt.Errorf("station %d: %w", id, ErrNotFound)
}

// PortNotFound 端口不存在
func PortNotFound(portID int64) error {
	return fmt.Errorf("port %d: %w", portID, ErrNotFound)
}
