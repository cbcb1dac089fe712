package repository

import "time"

// User is an account that can log in with a password or an enrolled face.
type User struct {
	ID           uint      `gorm:"primaryKey"`
	Login        string    `gorm:"column:login;uniqueIndex;size:64;not null"`
	DisplayName  string    `gorm:"column:display_name;size:128"`
	PasswordHash string    `gorm:"column:password_hash;size:72"`
	CreatedAt    time.Time `gorm:"column:created_at"`
}

func (User) TableName() string {
	return "users"
}

// FaceToken is one enrollment: the keyed hash of a face reference obtained
// from the detector. A user may hold several; rows are only ever inserted or
// deleted, never updated.
type FaceToken struct {
	ID        uint      `gorm:"primaryKey"`
	UserID    uint      `gorm:"column:user_id;index;not null"`
	Token     string    `gorm:"column:token;index;size:64;not null"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

func (FaceToken) TableName() string {
	return "face_tokens"
}
