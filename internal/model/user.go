package model

import (
	"time"
)

// swagger:model User
type User struct {
	ID        uint      `gorm:"column:user_id;primaryKey;autoIncrement" json:"id"`
	Name      string    `gorm:"column:user_name;size:100;uniqueIndex;not null" json:"name"`
	Password  string    `gorm:"column:user_password;size:100;not null" json:"-"`
	IsAdmin   bool      `gorm:"column:user_admin;not null;default:false" json:"isAdmin"`
	CreatedAt time.Time `gorm:"column:user_created_at" json:"createdAt"`
}

func (User) TableName() string {
	return "users"
}
