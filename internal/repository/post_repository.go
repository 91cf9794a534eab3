package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/d60-Lab/newsfeed/internal/model"
)

var ErrPostNotFound = errors.New("post not found")

// PostRepository 帖子仓储接口
type PostRepository interface {
	Create(ctx context.Context, post *model.Post) error
	Update(ctx context.Context, post *model.Post) error
	Delete(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (*model.Post, error)
	// GetByIDs 按调用方给定的 id 顺序返回，不做任何重排
	GetByIDs(ctx context.Context, ids []string) ([]*model.Post, error)
	ListByAuthor(ctx context.Context, authorID string) ([]*model.Post, error)
	// LatestByAuthors 返回作者集合下最近更新的一条帖子；没有则返回 nil
	LatestByAuthors(ctx context.Context, authorIDs []string) (*model.Post, error)
	// ListByAuthorsByRecency 按更新时间倒序分页，并返回总数
	ListByAuthorsByRecency(ctx context.Context, authorIDs []string, offset, limit int) ([]*model.Post, int64, error)
}

type postRepository struct{ db *gorm.DB }

func NewPostRepository(db *gorm.DB) PostRepository { return &postRepository{db: db} }

func (r *postRepository) Create(ctx context.Context, post *model.Post) error {
	return r.db.WithContext(ctx).Create(post).Error
}

func (r *postRepository) Update(ctx context.Context, post *model.Post) error {
	return r.db.WithContext(ctx).Save(post).Error
}

func (r *postRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.Post{}).Error
}

func (r *postRepository) GetByID(ctx context.Context, id string) (*model.Post, error) {
	var post model.Post
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&post).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPostNotFound
	}
	if err != nil {
		return nil, err
	}
	return &post, nil
}

func (r *postRepository) GetByIDs(ctx context.Context, ids []string) ([]*model.Post, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []*model.Post
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	// IN 查询不保证顺序，按入参顺序回填
	byID := make(map[string]*model.Post, len(rows))
	for _, p := range rows {
		byID[p.ID] = p
	}
	res := make([]*model.Post, 0, len(ids))
	for _, id := range ids {
		if p, ok := byID[id]; ok {
			res = append(res, p)
		}
	}
	return res, nil
}

func (r *postRepository) ListByAuthor(ctx context.Context, authorID string) ([]*model.Post, error) {
	var rows []*model.Post
	err := r.db.WithContext(ctx).
		Where("author_id = ?", authorID).
		Order("updated_at DESC").
		Find(&rows).Error
	return rows, err
}

func (r *postRepository) LatestByAuthors(ctx context.Context, authorIDs []string) (*model.Post, error) {
	if len(authorIDs) == 0 {
		return nil, nil
	}
	var rows []*model.Post
	err := r.db.WithContext(ctx).
		Where("author_id IN ?", authorIDs).
		Order("updated_at DESC").
		Limit(1).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (r *postRepository) ListByAuthorsByRecency(ctx context.Context, authorIDs []string, offset, limit int) ([]*model.Post, int64, error) {
	if len(authorIDs) == 0 {
		return nil, 0, nil
	}
	var total int64
	if err := r.db.WithContext(ctx).
		Model(&model.Post{}).
		Where("author_id IN ?", authorIDs).
		Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var rows []*model.Post
	err := r.db.WithContext(ctx).
		Where("author_id IN ?", authorIDs).
		Order("updated_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&rows).Error
	return rows, total, err
}
