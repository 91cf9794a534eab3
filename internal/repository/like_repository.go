package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/d60-Lab/newsfeed/internal/model"
)

// LikeRepository 点赞仓储接口
type LikeRepository interface {
	Create(ctx context.Context, postID, userID string) error
	Delete(ctx context.Context, postID, userID string) error
	DeleteByPostID(ctx context.Context, postID string) error
	CountByPostID(ctx context.Context, postID string) (int64, error)
}

type likeRepository struct{ db *gorm.DB }

func NewLikeRepository(db *gorm.DB) LikeRepository { return &likeRepository{db: db} }

func (r *likeRepository) Create(ctx context.Context, postID, userID string) error {
	l := &model.Like{ID: uuid.New().String(), PostID: postID, UserID: userID}
	// 幂等：重复点赞不报错
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(l).Error
}

func (r *likeRepository) Delete(ctx context.Context, postID, userID string) error {
	return r.db.WithContext(ctx).
		Where("post_id = ? AND user_id = ?", postID, userID).
		Delete(&model.Like{}).Error
}

func (r *likeRepository) DeleteByPostID(ctx context.Context, postID string) error {
	return r.db.WithContext(ctx).Where("post_id = ?", postID).Delete(&model.Like{}).Error
}

func (r *likeRepository) CountByPostID(ctx context.Context, postID string) (int64, error) {
	var cnt int64
	err := r.db.WithContext(ctx).
		Model(&model.Like{}).
		Where("post_id = ?", postID).
		Count(&cnt).Error
	return cnt, err
}
