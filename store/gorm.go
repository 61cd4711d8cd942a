package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/villageone/api/models"
)

// GormStore persists records through GORM. The vote table carries a unique
// index on (user_id, post_id) so two racing inserts cannot both succeed.
type GormStore struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewGormStore wraps an opened GORM handle.
func NewGormStore(db *gorm.DB, logger *zap.Logger) *GormStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GormStore{db: db, logger: logger}
}

// Models lists the tables GormStore expects; pass it to AutoMigrate.
func Models() []interface{} {
	return []interface{}{&models.User{}, &models.Post{}, &models.Vote{}, &models.Comment{}}
}

// Transaction implements Repository using a database transaction.
func (s *GormStore) Transaction(ctx context.Context, fn func(tx Repository) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{db: tx, logger: s.logger})
	})
}

func (s *GormStore) CreatePost(ctx context.Context, post *models.Post) error {
	if err := s.db.WithContext(ctx).Create(post).Error; err != nil {
		return s.translate("create post", err, zap.String("post_id", post.ID))
	}
	return nil
}

func (s *GormStore) GetPost(ctx context.Context, id string) (models.Post, error) {
	var post models.Post
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&post).Error; err != nil {
		return models.Post{}, s.translate("get post", err, zap.String("post_id", id))
	}
	return post, nil
}

func (s *GormStore) GetPostForUpdate(ctx context.Context, id string) (models.Post, error) {
	var post models.Post
	err := s.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&post).Error
	if err != nil {
		return models.Post{}, s.translate("lock post", err, zap.String("post_id", id))
	}
	return post, nil
}

func (s *GormStore) SavePost(ctx context.Context, post *models.Post) error {
	res := s.db.WithContext(ctx).Model(&models.Post{}).
		Where("id = ?", post.ID).
		Updates(map[string]interface{}{
			"title":         post.Title,
			"content":       post.Content,
			"forum_section": post.ForumSection,
			"status":        post.Status,
			"published_at":  post.PublishedAt,
			"updated_at":    post.UpdatedAt,
		})
	if res.Error != nil {
		return s.translate("save post", res.Error, zap.String("post_id", post.ID))
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) SetVoteCounts(ctx context.Context, postID string, counts models.VoteCounts, at time.Time) error {
	res := s.db.WithContext(ctx).Model(&models.Post{}).
		Where("id = ?", postID).
		Updates(map[string]interface{}{
			"upvotes":    counts.Upvotes,
			"downvotes":  counts.Downvotes,
			"updated_at": at,
		})
	if res.Error != nil {
		return s.translate("set vote counts", res.Error, zap.String("post_id", postID))
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) ListPosts(ctx context.Context, filter PostFilter) ([]models.Post, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.Post{})
	if filter.AuthorID != "" {
		query = query.Where("author_id = ?", filter.AuthorID)
	}
	if filter.ForumSection != "" {
		query = query.Where("forum_section = ?", filter.ForumSection)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		like := "%" + strings.ToLower(search) + "%"
		query = query.Where("LOWER(title) LIKE ? OR LOWER(content) LIKE ?", like, like)
	}

	query = query.Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, s.translate("count posts", err)
	}

	var posts []models.Post
	query = query.Order("created_at DESC").Order("id DESC")
	if filter.PageSize > 0 {
		query = query.Offset(filter.Offset()).Limit(filter.PageSize)
	}
	if err := query.Find(&posts).Error; err != nil {
		return nil, 0, s.translate("list posts", err)
	}
	return posts, total, nil
}

func (s *GormStore) GetVote(ctx context.Context, userID, postID string) (models.Vote, bool, error) {
	var vote models.Vote
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND post_id = ?", userID, postID).
		First(&vote).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Vote{}, false, nil
		}
		return models.Vote{}, false, s.translate("get vote", err, zap.String("post_id", postID), zap.String("user_id", userID))
	}
	return vote, true, nil
}

func (s *GormStore) CreateVote(ctx context.Context, vote *models.Vote) error {
	if err := s.db.WithContext(ctx).Create(vote).Error; err != nil {
		return s.translate("create vote", err, zap.String("post_id", vote.PostID), zap.String("user_id", vote.UserID))
	}
	return nil
}

func (s *GormStore) UpdateVoteType(ctx context.Context, voteID string, voteType models.VoteType, at time.Time) error {
	res := s.db.WithContext(ctx).Model(&models.Vote{}).
		Where("id = ?", voteID).
		Updates(map[string]interface{}{"vote_type": voteType, "updated_at": at})
	if res.Error != nil {
		return s.translate("update vote", res.Error, zap.String("vote_id", voteID))
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) DeleteVote(ctx context.Context, voteID string) error {
	res := s.db.WithContext(ctx).Where("id = ?", voteID).Delete(&models.Vote{})
	if res.Error != nil {
		return s.translate("delete vote", res.Error, zap.String("vote_id", voteID))
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) ListVotesByPost(ctx context.Context, postID string) ([]models.Vote, error) {
	var votes []models.Vote
	if err := s.db.WithContext(ctx).
		Where("post_id = ?", postID).
		Order("created_at ASC").
		Find(&votes).Error; err != nil {
		return nil, s.translate("list votes", err, zap.String("post_id", postID))
	}
	return votes, nil
}

func (s *GormStore) CreateComment(ctx context.Context, comment *models.Comment) error {
	if err := s.db.WithContext(ctx).Create(comment).Error; err != nil {
		return s.translate("create comment", err, zap.String("post_id", comment.PostID))
	}
	return nil
}

func (s *GormStore) GetComment(ctx context.Context, id string) (models.Comment, error) {
	var comment models.Comment
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&comment).Error; err != nil {
		return models.Comment{}, s.translate("get comment", err, zap.String("comment_id", id))
	}
	return comment, nil
}

func (s *GormStore) DeleteComment(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Comment{})
	if res.Error != nil {
		return s.translate("delete comment", res.Error, zap.String("comment_id", id))
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) ListComments(ctx context.Context, postID string) ([]models.Comment, error) {
	var comments []models.Comment
	if err := s.db.WithContext(ctx).
		Where("post_id = ?", postID).
		Order("created_at ASC").
		Find(&comments).Error; err != nil {
		return nil, s.translate("list comments", err, zap.String("post_id", postID))
	}
	return comments, nil
}

func (s *GormStore) CreateUser(ctx context.Context, user *models.User) error {
	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		return s.translate("create user", err, zap.String("username", user.Username))
	}
	return nil
}

func (s *GormStore) GetUser(ctx context.Context, id string) (models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		return models.User{}, s.translate("get user", err, zap.String("user_id", id))
	}
	return user, nil
}

func (s *GormStore) GetUserByUsername(ctx context.Context, username string) (models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("username = ?", username).First(&user).Error; err != nil {
		return models.User{}, s.translate("get user by username", err, zap.String("username", username))
	}
	return user, nil
}

func (s *GormStore) CountUsers(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Count(&n).Error; err != nil {
		return 0, s.translate("count users", err)
	}
	return n, nil
}

// translate maps driver errors onto the store sentinels and logs anything
// unexpected.
func (s *GormStore) translate(op string, err error, fields ...zap.Field) error {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case isUniqueViolation(err):
		return ErrConflict
	}
	s.logger.Error("store "+op+" failed", append(fields, zap.Error(err))...)
	return err
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "duplicate entry")
}
