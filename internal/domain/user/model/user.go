package model

import (
	"errors"

	basemodel "event_ticketing/pkg/model"
)

// 角色
const (
	RoleUser      = 1
	RoleOrganizer = 2
	RoleAdmin     = 9
)

var ErrUserNotFound = errors.New("user not found")

// User 用户目录，身份由外部身份服务维护，这里只保存转让审计需要的快照字段
type User struct {
	basemodel.BaseModel
	Email string `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	Name  string `gorm:"type:varchar(100)" json:"name"`
	Role  int    `gorm:"not null;default:1" json:"role"`
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
