package model

import (
	"math"
	"time"

	basemodel "event_ticketing/pkg/model"

	"github.com/shopspring/decimal"
)

// EventStatus 活动状态
type EventStatus string

const (
	StatusUpcoming  EventStatus = "upcoming"
	StatusOngoing   EventStatus = "ongoing"
	StatusCompleted EventStatus = "completed"
	StatusCancelled EventStatus = "cancelled"
)

func (s EventStatus) Valid() bool {
	switch s {
	case StatusUpcoming, StatusOngoing, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// AcceptsCheckIn 只有未开始和进行中的活动可以检票
func (s EventStatus) AcceptsCheckIn() bool {
	switch s {
	case StatusUpcoming, StatusOngoing:
		return true
	case StatusCompleted, StatusCancelled:
		return false
	}
	return false
}

// OpenStatuses 可检票状态，用于条件更新
func OpenStatuses() []string {
	return []string{string(StatusUpcoming), string(StatusOngoing)}
}

type Event struct {
	basemodel.BaseModel
	Name         string          `gorm:"type:varchar(200);uniqueIndex;not null" json:"name"`
	Description  string          `gorm:"type:text" json:"description,omitempty"`
	Date         time.Time       `gorm:"not null;index" json:"date"`
	Location     string          `gorm:"type:varchar(255)" json:"location"`
	MaxCapacity  int             `gorm:"not null" json:"maxCapacity"`
	CurrentCount int             `gorm:"not null" json:"currentCount"`
	Price        decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"price"`
	Status       EventStatus     `gorm:"type:varchar(20);not null;index" json:"status"`
	OrganizerID  *string         `gorm:"type:uuid;index" json:"organizerId,omitempty"`
}

// CapacityStats 容量统计，全部由 MaxCapacity/CurrentCount 推导
type CapacityStats struct {
	MaxCapacity         int  `json:"maxCapacity"`
	CurrentCount        int  `json:"currentCount"`
	Available           int  `json:"available"`
	OccupancyPercentage int  `json:"occupancyPercentage"`
	IsFull              bool `json:"isFull"`
}

func (e *Event) IsFull() bool {
	return e.CurrentCount >= e.MaxCapacity
}

// IsCheckInAllowed 状态可检票且未满
func (e *Event) IsCheckInAllowed() bool {
	return e.Status.AcceptsCheckIn() && !e.IsFull()
}

func (e *Event) Available() int {
	if e.CurrentCount >= e.MaxCapacity {
		return 0
	}
	return e.MaxCapacity - e.CurrentCount
}

func (e *Event) Stats() CapacityStats {
	occupancy := 0
	if e.MaxCapacity > 0 {
		occupancy = int(math.Round(float64(e.CurrentCount) / float64(e.MaxCapacity) * 100))
	}
	return CapacityStats{
		MaxCapacity:         e.MaxCapacity,
		CurrentCount:        e.CurrentCount,
		Available:           e.Available(),
		OccupancyPercentage: occupancy,
		IsFull:              e.IsFull(),
	}
}

// StatusAt 按时间推算活动状态：取消不可逆；开场后 ongoingFor 结束；活动当天零点起为进行中
func (e *Event) StatusAt(now time.Time, ongoingFor time.Duration) EventStatus {
	if e.Status == StatusCancelled {
		return StatusCancelled
	}
	if !now.Before(e.Date.Add(ongoingFor)) {
		return StatusCompleted
	}
	y, m, d := e.Date.Date()
	dayStart := time.Date(y, m, d, 0, 0, 0, 0, e.Date.Location())
	if !now.Before(dayStart) {
		return StatusOngoing
	}
	return StatusUpcoming
}
