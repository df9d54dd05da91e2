package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"cosrent/internal/model"
)

// CommentService gates review creation on the order lifecycle: one review per
// order, only by the order's owner, only for products in that order, and only
// once the order has been confirmed.
type CommentService struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewCommentService(db *gorm.DB, log *zap.Logger) *CommentService {
	return &CommentService{db: db, log: log}
}

type CreateCommentInput struct {
	OrderID   uint
	ProductID uint
	Rating    int
	Content   string
	ImageURLs []string
}

type UpdateCommentInput struct {
	Content   *string
	Rating    *int
	ImageURLs []string
}

// CommentView is a comment with the author name denormalized and photo URLs
// decoded.
type CommentView struct {
	model.Comment
	UserName  string   `json:"user_name"`
	ImageURLs []string `json:"image_urls,omitempty"`
}

// reviewableStatuses are the order states in which a review may be written.
var reviewableStatuses = []model.OrderStatus{
	model.OrderConfirmed,
	model.OrderRented,
	model.OrderReturned,
}

// Create runs the eligibility gate and persists the review.
func (s *CommentService) Create(ctx context.Context, userID uint, in CreateCommentInput) (*model.Comment, error) {
	var product model.Product
	if err := s.db.WithContext(ctx).First(&product, in.ProductID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: id %d", ErrProductNotFound, in.ProductID)
		}
		return nil, err
	}

	var order model.Order
	if err := s.db.WithContext(ctx).Preload("Items").First(&order, in.OrderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: id %d", ErrOrderNotFound, in.OrderID)
		}
		return nil, err
	}
	if order.UserID != userID {
		return nil, ErrForbidden
	}

	reviewable := false
	for _, st := range reviewableStatuses {
		if order.Status == st {
			reviewable = true
			break
		}
	}
	if !reviewable {
		return nil, fmt.Errorf("%w: order is %s", ErrCommentOrderState, order.Status)
	}

	inOrder := false
	for _, it := range order.Items {
		if it.ProductID == in.ProductID {
			inOrder = true
			break
		}
	}
	if !inOrder {
		return nil, ErrProductNotInOrder
	}

	// One active review per order, regardless of how many products it covers.
	var count int64
	err := s.db.WithContext(ctx).Model(&model.Comment{}).
		Where("order_id = ? AND is_active = ?", in.OrderID, true).
		Count(&count).Error
	if err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, ErrDuplicateReview
	}

	if in.Rating < 1 || in.Rating > 5 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidRating, in.Rating)
	}

	comment := &model.Comment{
		Content:   in.Content,
		Rating:    in.Rating,
		UserID:    userID,
		ProductID: in.ProductID,
		OrderID:   in.OrderID,
		ImageURLs: encodeImageURLs(in.ImageURLs),
		IsActive:  true,
	}
	if err := s.db.WithContext(ctx).Create(comment).Error; err != nil {
		return nil, err
	}
	return comment, nil
}

// Update edits a review; only its author may do so.
func (s *CommentService) Update(ctx context.Context, commentID, userID uint, in UpdateCommentInput) (*model.Comment, error) {
	comment, err := s.findOne(ctx, commentID)
	if err != nil {
		return nil, err
	}
	if comment.UserID != userID {
		return nil, ErrForbidden
	}
	if in.Rating != nil {
		if *in.Rating < 1 || *in.Rating > 5 {
			return nil, fmt.Errorf("%w: got %d", ErrInvalidRating, *in.Rating)
		}
		comment.Rating = *in.Rating
	}
	if in.Content != nil {
		comment.Content = *in.Content
	}
	if in.ImageURLs != nil {
		comment.ImageURLs = encodeImageURLs(in.ImageURLs)
	}
	if err := s.db.WithContext(ctx).Save(comment).Error; err != nil {
		return nil, err
	}
	return comment, nil
}

// Remove soft-deactivates a review, freeing the order for a replacement one.
func (s *CommentService) Remove(ctx context.Context, commentID, userID uint) error {
	comment, err := s.findOne(ctx, commentID)
	if err != nil {
		return err
	}
	if comment.UserID != userID {
		return ErrForbidden
	}
	return s.db.WithContext(ctx).Model(comment).Update("is_active", false).Error
}

// FindByProduct lists a product's active reviews with author names, newest
// first, paginated.
func (s *CommentService) FindByProduct(ctx context.Context, productID uint, page, limit int) ([]CommentView, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}

	q := s.db.WithContext(ctx).Model(&model.Comment{}).
		Where("product_id = ? AND is_active = ?", productID, true)

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var comments []model.Comment
	err := q.Order("created_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&comments).Error
	if err != nil {
		return nil, 0, err
	}
	views, err := s.attachAuthors(ctx, comments)
	if err != nil {
		return nil, 0, err
	}
	return views, total, nil
}

// FindByOrder returns the order's active reviews.
func (s *CommentService) FindByOrder(ctx context.Context, orderID uint) ([]CommentView, error) {
	var comments []model.Comment
	err := s.db.WithContext(ctx).
		Where("order_id = ? AND is_active = ?", orderID, true).
		Order("created_at DESC").
		Find(&comments).Error
	if err != nil {
		return nil, err
	}
	return s.attachAuthors(ctx, comments)
}

// FindByUser returns a user's active reviews.
func (s *CommentService) FindByUser(ctx context.Context, userID uint) ([]CommentView, error) {
	var comments []model.Comment
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND is_active = ?", userID, true).
		Order("created_at DESC").
		Find(&comments).Error
	if err != nil {
		return nil, err
	}
	return s.attachAuthors(ctx, comments)
}

// AverageRating is the raw mean of active ratings, 0 when there are none.
func (s *CommentService) AverageRating(ctx context.Context, productID uint) (float64, error) {
	var avg sql.NullFloat64
	err := s.db.WithContext(ctx).Model(&model.Comment{}).
		Where("product_id = ? AND is_active = ?", productID, true).
		Select("AVG(rating)").
		Scan(&avg).Error
	if err != nil {
		return 0, err
	}
	if !avg.Valid {
		return 0, nil
	}
	return avg.Float64, nil
}

// DisplayRating is the floored integer used when enriching product listings:
// 4.9 displays as 4. The raw mean stays available via AverageRating.
func (s *CommentService) DisplayRating(ctx context.Context, productID uint) (int, error) {
	avg, err := s.AverageRating(ctx, productID)
	if err != nil {
		return 0, err
	}
	return int(math.Floor(avg)), nil
}

func (s *CommentService) findOne(ctx context.Context, commentID uint) (*model.Comment, error) {
	var comment model.Comment
	if err := s.db.WithContext(ctx).First(&comment, commentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: id %d", ErrCommentNotFound, commentID)
		}
		return nil, err
	}
	return &comment, nil
}

// attachAuthors resolves author names in one query and decodes photo URLs.
func (s *CommentService) attachAuthors(ctx context.Context, comments []model.Comment) ([]CommentView, error) {
	views := make([]CommentView, 0, len(comments))
	if len(comments) == 0 {
		return views, nil
	}

	ids := make([]uint, 0, len(comments))
	for _, c := range comments {
		ids = append(ids, c.UserID)
	}
	var users []model.User
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, err
	}
	names := make(map[uint]string, len(users))
	for _, u := range users {
		names[u.ID] = u.FullName
	}

	for _, c := range comments {
		name := names[c.UserID]
		if name == "" {
			name = "Anonymous"
		}
		views = append(views, CommentView{
			Comment:   c,
			UserName:  name,
			ImageURLs: decodeImageURLs(c.ImageURLs),
		})
	}
	return views, nil
}

func encodeImageURLs(urls []string) string {
	if len(urls) == 0 {
		return ""
	}
	b, err := json.Marshal(urls)
	if err != nil {
		return ""
	}
	return string(b)
}

func decodeImageURLs(raw string) []string {
	if raw == "" {
		return nil
	}
	var urls []string
	if err := json.Unmarshal([]byte(raw), &urls); err != nil {
		return nil
	}
	return urls
}
