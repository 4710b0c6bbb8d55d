package middleware

import (
	basemodel "event_ticketing/pkg/model"

	"github.com/gin-gonic/gin"
)

// ClientMeta 请求来源信息，写入审计记录
func ClientMeta(c *gin.Context) basemodel.ClientMeta {
	return basemodel.ClientMeta{
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	}
}
