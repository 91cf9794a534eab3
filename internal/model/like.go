package model

import "time"

// Like 点赞
type Like struct {
	ID        string `gorm:"primaryKey;type:varchar(36)"`
	PostID    string `gorm:"type:varchar(36);index:idx_like_post;index:idx_like_pair,unique;not null"`
	UserID    string `gorm:"type:varchar(36);not null;index:idx_like_pair,unique"`
	CreatedAt time.Time
}

func (Like) TableName() string { return "likes" }
