package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/langchou/chargehive/internal/models"
)

// 错误类别
const (
	ErrClassNotFound            = "NotFound"
	ErrClassOwnerNotFound       = "OwnerNotFound"
	ErrClassAdminNotFound       = "AdminNotFound"
	ErrClassOwnershipMismatch   = "OwnershipMismatch"
	ErrClassValidationFailed    = "ValidationFailed"
	ErrClassUpstreamUnavailable = "UpstreamUnavailable"
	ErrClassBadRequest          = "BadRequest"
	ErrClassInternal            = "InternalError"
)

// ErrorResponse 统一错误响应
type ErrorResponse struct {
	Timestamp time.Time         `json:"timestamp"`
	Status    int               `json:"status"`
	Error     string            `json:"error"`
	Message   string            `json:"message"`
	Details   map[string]string `json:"details,omitempty"`
}

// classify 错误到状态码和类别
// 身份类错误优先于 UpstreamUnavailable，身份服务不可用也按 404 返回
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, models.ErrOwnerNotFound):
		return http.StatusNotFound, ErrClassOwnerNotFound
	case errors.Is(err, models.ErrAdminNotFound):
		return http.StatusNotFound, ErrClassAdminNotFound
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound, ErrClassNotFound
	case errors.Is(err, models.ErrOwnershipMismatch):
		return http.StatusForbidden, ErrClassOwnershipMismatch
	case errors.Is(err, models.ErrValidation):
		return http.StatusBadRequest, ErrClassValidationFailed
	case errors.Is(err, models.ErrUpstreamUnavailable):
		return http.StatusServiceUnavailable, ErrClassUpstreamUnavailable
	default:
		return http.StatusInternalServerError, ErrClassInternal
	}
}

func (h *Handler) respondError(c *gin.Context, err error) {
	status, class := classify(err)

	resp := ErrorResponse{
		Timestamp: time.Now().UTC(),
		Status:    status,
		Error:     class,
		Message:   err.Error(),
	}

	var verr *models.ValidationError
	if errors.As(err, &verr) {
		resp.Message = models.ErrValidation.Error()
		resp.Details = verr.Fields
	}

	if status == http.StatusInternalServerError {
		h.logger.Error("Request failed",
			zap.String("route", c.FullPath()),
			zap.String("request_id", c.GetString(ContextKeyRequestID)),
			zap.Error(err),
		)
		resp.Message = "internal server error"
	}

	c.AbortWithStatusJSON(status, resp)
}

// respondBindError 请求体绑定失败
func (h *Handler) respondBindError(c *gin.Context, err error) {
	var ves validator.ValidationErrors
	if errors.As(err, &ves) {
		verr := &models.ValidationError{}
		for _, fe := range ves {
			verr.Add(fieldPath(fe), fmt.Sprintf("failed on the '%s' rule", fe.Tag()))
		}
		h.respondError(c, verr)
		return
	}

	c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{
		Timestamp: time.Now().UTC(),
		Status:    http.StatusBadRequest,
		Error:     ErrClassBadRequest,
		Message:   "malformed request body",
	})
}

// fieldPath 去掉顶层结构体名，如 StationInput.ports[0].maxPowerKw → ports[0].maxPowerKw
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

// useJSONFieldNames 校验错误使用 json 字段名
func useJSONFieldNames() {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return
	}
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})
}
