package model

import "time"

// Post 内容主体
type Post struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	AuthorID  string    `gorm:"type:varchar(36);index:idx_post_author;not null" json:"author_id"`
	Caption   string    `gorm:"type:text" json:"caption"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `gorm:"index:idx_post_updated" json:"updated_at"`
}

func (Post) TableName() string { return "posts" }

// EffectiveTime 信息流排序用时间戳：创建时间优先，其次更新时间
func (p *Post) EffectiveTime() time.Time {
	if !p.CreatedAt.IsZero() {
		return p.CreatedAt
	}
	if !p.UpdatedAt.IsZero() {
		return p.UpdatedAt
	}
	return time.Now()
}
