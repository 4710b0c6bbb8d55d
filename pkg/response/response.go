package response

import (
	"net/http"

	"event_ticketing/pkg/apperror"
	"event_ticketing/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Response 统一响应结构
type Response struct {
	Code    int         `json:"code"`    // 业务码
	Message string      `json:"message"` // 提示信息
	Data    interface{} `json:"data"`    // 数据
}

// Success 成功响应
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    CodeSuccess,
		Message: "success",
		Data:    data,
	})
}

// Created 创建成功
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Response{
		Code:    CodeSuccess,
		Message: "success",
		Data:    data,
	})
}

// Error 错误响应
func Error(c *gin.Context, httpCode int, errCode int, msg string) {
	c.JSON(httpCode, Response{
		Code:    errCode,
		Message: msg,
		Data:    nil,
	})
}

// Fail 业务失败响应 (HTTP 200, 业务码非 0)
func Fail(c *gin.Context, errCode int, msg string) {
	c.JSON(http.StatusOK, Response{
		Code:    errCode,
		Message: msg,
		Data:    nil,
	})
}

// AppError 结构化业务错误，按错误大类映射 HTTP 状态码
func AppError(c *gin.Context, err *apperror.Error) {
	var data interface{}
	if len(err.Details) > 0 {
		data = err.Details
	}
	c.JSON(HTTPStatus(err.Kind), Response{
		Code:    BusinessCode(err.Code),
		Message: err.Message,
		Data:    data,
	})
}

// HandleError 业务错误原样返回；其余错误记录日志并返回通用 500
func HandleError(c *gin.Context, err error) {
	if appErr, ok := apperror.As(err); ok {
		AppError(c, appErr)
		return
	}
	logger.Log.Error("unexpected error",
		zap.String("path", c.FullPath()),
		zap.String("method", c.Request.Method),
		zap.Error(err),
	)
	AppError(c, apperror.Internal())
}

// HTTPStatus 错误大类对应的 HTTP 状态码
func HTTPStatus(kind apperror.Kind) int {
	switch kind {
	case apperror.KindNotFound:
		return http.StatusNotFound
	case apperror.KindNotAuthorized:
		return http.StatusForbidden
	case apperror.KindValidation:
		return http.StatusBadRequest
	case apperror.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
