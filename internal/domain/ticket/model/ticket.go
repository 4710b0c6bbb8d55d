package model

import (
	"time"

	basemodel "event_ticketing/pkg/model"

	"github.com/shopspring/decimal"
)

type TicketType string

const (
	TypeGeneral TicketType = "general"
	TypeVIP     TicketType = "vip"
)

func (t TicketType) Valid() bool {
	return t == TypeGeneral || t == TypeVIP
}

type TicketStatus string

const (
	StatusActive    TicketStatus = "active"
	StatusUsed      TicketStatus = "used"
	StatusExpired   TicketStatus = "expired"
	StatusCancelled TicketStatus = "cancelled"
)

// Ticket 门票，转让只改持有人，不新建门票
type Ticket struct {
	basemodel.BaseModel
	EventID          string          `gorm:"type:uuid;index;not null" json:"eventId"`
	EventName        string          `gorm:"type:varchar(200);index;not null" json:"eventName"`
	EventDate        time.Time       `gorm:"not null" json:"eventDate"`
	TicketType       TicketType      `gorm:"type:varchar(20);not null" json:"ticketType"`
	Price            decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"price"`
	OriginalPrice    decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"originalPrice"`
	PurchasedByID    string          `gorm:"type:uuid;index;not null" json:"purchasedBy"`
	CurrentOwnerID   string          `gorm:"type:uuid;index;not null" json:"currentOwner"`
	IsForSale        bool            `gorm:"not null;index" json:"isForSale"`
	IsUsed           bool            `gorm:"not null" json:"isUsed"`
	Status           TicketStatus    `gorm:"type:varchar(20);not null" json:"status"`
	TransferCount    int             `gorm:"not null" json:"transferCount"`
	LastTransferDate *time.Time      `json:"lastTransferDate,omitempty"`
	QRCode           string          `gorm:"type:varchar(64);uniqueIndex;not null" json:"qrCode"`
	Disp             int             `json:"disp"` // 购票时活动的容量，检票自动建活动时沿用
}

func (t *Ticket) IsOwnedBy(userID string) bool {
	return userID != "" && t.CurrentOwnerID == userID
}

// TransferTo 变更持有人并下架；调用方负责在同一事务内写转让审计
func (t *Ticket) TransferTo(newOwnerID string, at time.Time) {
	t.CurrentOwnerID = newOwnerID
	t.IsForSale = false
	t.LastTransferDate = &at
	t.TransferCount++
}

// MarkUsed 检票后门票作废，重复调用返回 ErrTicketAlreadyUsed
func (t *Ticket) MarkUsed() error {
	if t.IsUsed {
		return ErrTicketAlreadyUsed
	}
	t.IsUsed = true
	t.Status = StatusUsed
	t.IsForSale = false
	return nil
}

// PutForSale 挂牌转售，price 为空时沿用原价
func (t *Ticket) PutForSale(price *decimal.Decimal) error {
	if t.IsUsed {
		return ErrTicketAlreadyUsed
	}
	if t.Status != StatusActive {
		return ErrTicketNotActive
	}
	if price != nil {
		if price.IsNegative() {
			return ErrInvalidPrice
		}
		t.Price = *price
	}
	t.IsForSale = true
	return nil
}

func (t *Ticket) RemoveFromSale() {
	t.IsForSale = false
}
