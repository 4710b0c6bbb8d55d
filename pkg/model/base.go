package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// BaseModel 基础模型，替代 gorm.Model，使用 UUID 作为主键
type BaseModel struct {
	ID        string         `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// BeforeCreate 钩子：生成 UUID
func (b *BaseModel) BeforeCreate(tx *gorm.DB) (err error) {
	if b.ID == "" {
		b.ID = NewID()
	}
	return
}

// NewID 生成新的主键
func NewID() string {
	return uuid.New().String()
}

// ClientMeta 请求来源信息，随审计记录一起落库
type ClientMeta struct {
	IPAddress string `json:"ipAddress,omitempty"`
	UserAgent string `json:"userAgent,omitempty"`
}

// 与审计表 client_ip / user_agent 列宽一致
const (
	MaxClientIPLen  = 64
	MaxUserAgentLen = 255
)

// Clamped 按列宽截断，超长的 User-Agent 只丢尾部，不影响写入
func (m ClientMeta) Clamped() ClientMeta {
	return ClientMeta{
		IPAddress: truncate(m.IPAddress, MaxClientIPLen),
		UserAgent: truncate(m.UserAgent, MaxUserAgentLen),
	}
}

// truncate 按字符截断（varchar 长度以字符计）
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
