package model

import (
	"time"

	basemodel "event_ticketing/pkg/model"

	"gorm.io/gorm"
)

type VerificationMethod string

const (
	MethodQRCode VerificationMethod = "qr_code"
	MethodManual VerificationMethod = "manual"
)

func (m VerificationMethod) Valid() bool {
	return m == MethodQRCode || m == MethodManual
}

type CheckInStatus string

const (
	CheckInStatusSuccessful CheckInStatus = "successful"
	CheckInStatusFailed     CheckInStatus = "failed"
)

// Location 检票地点
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// CheckIn 检票记录，成功和失败的尝试都落库，写入后不可修改
// 每张门票最多一条 successful 记录，由部分唯一索引保证
type CheckIn struct {
	basemodel.BaseModel
	TicketID           string             `gorm:"type:uuid;not null;index" json:"ticketId"`
	EventID            *string            `gorm:"type:uuid;index" json:"eventId,omitempty"`
	EventName          string             `gorm:"type:varchar(200);not null;index" json:"eventName"`
	UserID             string             `gorm:"type:uuid;not null;index" json:"userId"`
	CheckInTime        time.Time          `gorm:"not null;index" json:"checkInTime"`
	VerificationMethod VerificationMethod `gorm:"type:varchar(20);not null" json:"verificationMethod"`
	Status             CheckInStatus      `gorm:"type:varchar(20);not null;index" json:"status"`
	Latitude           *float64           `json:"latitude,omitempty"`
	Longitude          *float64           `json:"longitude,omitempty"`
	Notes              string             `gorm:"type:text" json:"notes,omitempty"`
	FailureReason      string             `gorm:"type:varchar(255)" json:"failureReason,omitempty"`
	ClientIP           string             `gorm:"type:varchar(64)" json:"clientIp,omitempty"`
	UserAgent          string             `gorm:"type:varchar(255)" json:"userAgent,omitempty"`
}

func (c *CheckIn) SetLocation(loc *Location) {
	if loc == nil {
		return
	}
	lat, lng := loc.Latitude, loc.Longitude
	c.Latitude = &lat
	c.Longitude = &lng
}

func (c *CheckIn) SetClientMeta(meta basemodel.ClientMeta) {
	meta = meta.Clamped()
	c.ClientIP = meta.IPAddress
	c.UserAgent = meta.UserAgent
}

func (c *CheckIn) BeforeUpdate(tx *gorm.DB) error {
	return ErrImmutable
}

func (c *CheckIn) BeforeDelete(tx *gorm.DB) error {
	return ErrImmutable
}
