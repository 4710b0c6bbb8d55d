package model

import (
	"time"

	basemodel "event_ticketing/pkg/model"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// TransferType 所有权变更方式
type TransferType string

const (
	TypeDirectTransfer TransferType = "direct_transfer"
	TypeResalePurchase TransferType = "resale_purchase"
	TypeAdminTransfer  TransferType = "admin_transfer"
)

func (t TransferType) Valid() bool {
	switch t {
	case TypeDirectTransfer, TypeResalePurchase, TypeAdminTransfer:
		return true
	}
	return false
}

type TransferStatus string

const StatusCompleted TransferStatus = "completed"

// Party 转让一方在转让时刻的身份快照
type Party struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// Transfer 转让审计记录，与门票持有人变更同一事务写入，写入后不可修改
type Transfer struct {
	basemodel.BaseModel
	TicketID           string           `gorm:"type:uuid;not null;index" json:"ticketId"`
	EventName          string           `gorm:"type:varchar(200);not null" json:"eventName"`
	EventDate          time.Time        `gorm:"not null" json:"eventDate"`
	PreviousOwnerID    string           `gorm:"type:uuid;not null;index" json:"previousOwnerId"`
	PreviousOwnerEmail string           `gorm:"type:varchar(255);not null" json:"previousOwnerEmail"`
	PreviousOwnerName  string           `gorm:"type:varchar(100)" json:"previousOwnerName"`
	NewOwnerID         string           `gorm:"type:uuid;not null;index" json:"newOwnerId"`
	NewOwnerEmail      string           `gorm:"type:varchar(255);not null" json:"newOwnerEmail"`
	NewOwnerName       string           `gorm:"type:varchar(100)" json:"newOwnerName"`
	TransferType       TransferType     `gorm:"type:varchar(30);not null;index" json:"transferType"`
	TransferPrice      *decimal.Decimal `gorm:"type:numeric(12,2)" json:"transferPrice,omitempty"`
	TransferDate       time.Time        `gorm:"not null;index" json:"transferDate"`
	ClientIP           string           `gorm:"type:varchar(64)" json:"clientIp,omitempty"`
	UserAgent          string           `gorm:"type:varchar(255)" json:"userAgent,omitempty"`
	Notes              string           `gorm:"type:text" json:"notes,omitempty"`
	Status             TransferStatus   `gorm:"type:varchar(20);not null" json:"status"`
}

func (t *Transfer) SetPrevious(p Party) {
	t.PreviousOwnerID, t.PreviousOwnerEmail, t.PreviousOwnerName = p.ID, p.Email, p.Name
}

func (t *Transfer) SetNew(p Party) {
	t.NewOwnerID, t.NewOwnerEmail, t.NewOwnerName = p.ID, p.Email, p.Name
}

func (t *Transfer) SetClientMeta(meta basemodel.ClientMeta) {
	meta = meta.Clamped()
	t.ClientIP = meta.IPAddress
	t.UserAgent = meta.UserAgent
}

func (t *Transfer) BeforeUpdate(tx *gorm.DB) error {
	return ErrImmutable
}

func (t *Transfer) BeforeDelete(tx *gorm.DB) error {
	return ErrImmutable
}

// Filter 转让列表筛选条件，零值表示不限
type Filter struct {
	From   *time.Time
	To     *time.Time
	Type   TransferType
	UserID string
}
