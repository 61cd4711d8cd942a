package store

import (
	"context"
	"maps"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/villageone/api/models"
)

type voteKey struct {
	userID string
	postID string
}

// memData is one consistent snapshot of every collection. A snapshot
// shares its maps with the committed data until it writes to them.
type memData struct {
	posts     map[string]models.Post
	votes     map[string]models.Vote
	voteIndex map[voteKey]string
	comments  map[string]models.Comment
	users     map[string]models.User
	usernames map[string]string

	owned part
}

type part uint8

const (
	partPosts part = 1 << iota
	partVotes
	partComments
	partUsers
)

func newMemData() *memData {
	return &memData{
		posts:     make(map[string]models.Post),
		votes:     make(map[string]models.Vote),
		voteIndex: make(map[voteKey]string),
		comments:  make(map[string]models.Comment),
		users:     make(map[string]models.User),
		usernames: make(map[string]string),
	}
}

// snapshot returns a view over d that copies a collection on first write.
func (d *memData) snapshot() *memData {
	out := *d
	out.owned = 0
	return &out
}

// mutable gives the snapshot its own copy of p's maps.
func (d *memData) mutable(p part) {
	if d.owned&p != 0 {
		return
	}
	switch p {
	case partPosts:
		d.posts = maps.Clone(d.posts)
	case partVotes:
		d.votes = maps.Clone(d.votes)
		d.voteIndex = maps.Clone(d.voteIndex)
	case partComments:
		d.comments = maps.Clone(d.comments)
	case partUsers:
		d.users = maps.Clone(d.users)
		d.usernames = maps.Clone(d.usernames)
	}
	d.owned |= p
}

// MemoryStore keeps everything in process memory. Transactions are
// serialized by a single writer lock and work on a snapshot that replaces
// the live data only when the transaction succeeds. A write copies only
// the collections it touches.
type MemoryStore struct {
	mu   sync.RWMutex
	data *memData
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: newMemData()}
}

// Transaction implements Repository.
func (s *MemoryStore) Transaction(ctx context.Context, fn func(tx Repository) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.data.snapshot()
	if err := fn(&memTx{data: snapshot}); err != nil {
		return err
	}
	s.data = snapshot
	return nil
}

func (s *MemoryStore) read() *memTx {
	return &memTx{data: s.data}
}

func (s *MemoryStore) CreatePost(ctx context.Context, post *models.Post) error {
	return s.Transaction(ctx, func(tx Repository) error { return tx.CreatePost(ctx, post) })
}

func (s *MemoryStore) GetPost(ctx context.Context, id string) (models.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read().GetPost(ctx, id)
}

func (s *MemoryStore) GetPostForUpdate(ctx context.Context, id string) (models.Post, error) {
	return s.GetPost(ctx, id)
}

func (s *MemoryStore) SavePost(ctx context.Context, post *models.Post) error {
	return s.Transaction(ctx, func(tx Repository) error { return tx.SavePost(ctx, post) })
}

func (s *MemoryStore) SetVoteCounts(ctx context.Context, postID string, counts models.VoteCounts, at time.Time) error {
	return s.Transaction(ctx, func(tx Repository) error { return tx.SetVoteCounts(ctx, postID, counts, at) })
}

func (s *MemoryStore) ListPosts(ctx context.Context, filter PostFilter) ([]models.Post, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read().ListPosts(ctx, filter)
}

func (s *MemoryStore) GetVote(ctx context.Context, userID, postID string) (models.Vote, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read().GetVote(ctx, userID, postID)
}

func (s *MemoryStore) CreateVote(ctx context.Context, vote *models.Vote) error {
	return s.Transaction(ctx, func(tx Repository) error { return tx.CreateVote(ctx, vote) })
}

func (s *MemoryStore) UpdateVoteType(ctx context.Context, voteID string, voteType models.VoteType, at time.Time) error {
	return s.Transaction(ctx, func(tx Repository) error { return tx.UpdateVoteType(ctx, voteID, voteType, at) })
}

func (s *MemoryStore) DeleteVote(ctx context.Context, voteID string) error {
	return s.Transaction(ctx, func(tx Repository) error { return tx.DeleteVote(ctx, voteID) })
}

func (s *MemoryStore) ListVotesByPost(ctx context.Context, postID string) ([]models.Vote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read().ListVotesByPost(ctx, postID)
}

func (s *MemoryStore) CreateComment(ctx context.Context, comment *models.Comment) error {
	return s.Transaction(ctx, func(tx Repository) error { return tx.CreateComment(ctx, comment) })
}

func (s *MemoryStore) GetComment(ctx context.Context, id string) (models.Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read().GetComment(ctx, id)
}

func (s *MemoryStore) DeleteComment(ctx context.Context, id string) error {
	return s.Transaction(ctx, func(tx Repository) error { return tx.DeleteComment(ctx, id) })
}

func (s *MemoryStore) ListComments(ctx context.Context, postID string) ([]models.Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read().ListComments(ctx, postID)
}

func (s *MemoryStore) CreateUser(ctx context.Context, user *models.User) error {
	return s.Transaction(ctx, func(tx Repository) error { return tx.CreateUser(ctx, user) })
}

func (s *MemoryStore) GetUser(ctx context.Context, id string) (models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read().GetUser(ctx, id)
}

func (s *MemoryStore) GetUserByUsername(ctx context.Context, username string) (models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read().GetUserByUsername(ctx, username)
}

func (s *MemoryStore) CountUsers(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read().CountUsers(ctx)
}

// memTx operates on a snapshot without locking; the owning MemoryStore
// holds the lock for the lifetime of the transaction.
type memTx struct {
	data *memData
}

// Transaction joins the enclosing transaction.
func (t *memTx) Transaction(ctx context.Context, fn func(tx Repository) error) error {
	return fn(t)
}

func (t *memTx) CreatePost(_ context.Context, post *models.Post) error {
	t.data.mutable(partPosts)
	if _, exists := t.data.posts[post.ID]; exists {
		return ErrConflict
	}
	stored := *post
	stored.PublishedAt = copyTime(post.PublishedAt)
	t.data.posts[post.ID] = stored
	return nil
}

func (t *memTx) GetPost(_ context.Context, id string) (models.Post, error) {
	post, ok := t.data.posts[id]
	if !ok {
		return models.Post{}, ErrNotFound
	}
	post.PublishedAt = copyTime(post.PublishedAt)
	return post, nil
}

func (t *memTx) GetPostForUpdate(ctx context.Context, id string) (models.Post, error) {
	return t.GetPost(ctx, id)
}

func (t *memTx) SavePost(_ context.Context, post *models.Post) error {
	t.data.mutable(partPosts)
	stored, ok := t.data.posts[post.ID]
	if !ok {
		return ErrNotFound
	}
	stored.Title = post.Title
	stored.Content = post.Content
	stored.ForumSection = post.ForumSection
	stored.Status = post.Status
	stored.PublishedAt = copyTime(post.PublishedAt)
	stored.UpdatedAt = post.UpdatedAt
	t.data.posts[post.ID] = stored
	return nil
}

func (t *memTx) SetVoteCounts(_ context.Context, postID string, counts models.VoteCounts, at time.Time) error {
	t.data.mutable(partPosts)
	stored, ok := t.data.posts[postID]
	if !ok {
		return ErrNotFound
	}
	stored.Upvotes = counts.Upvotes
	stored.Downvotes = counts.Downvotes
	stored.UpdatedAt = at
	t.data.posts[postID] = stored
	return nil
}

func (t *memTx) ListPosts(_ context.Context, filter PostFilter) ([]models.Post, int64, error) {
	search := strings.ToLower(strings.TrimSpace(filter.Search))
	matched := make([]models.Post, 0)
	for _, post := range t.data.posts {
		if filter.AuthorID != "" && post.AuthorID != filter.AuthorID {
			continue
		}
		if filter.ForumSection != "" && post.ForumSection != filter.ForumSection {
			continue
		}
		if filter.Status != "" && post.Status != filter.Status {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(post.Title), search) &&
			!strings.Contains(strings.ToLower(post.Content), search) {
			continue
		}
		post.PublishedAt = copyTime(post.PublishedAt)
		matched = append(matched, post)
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID > matched[j].ID
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := int64(len(matched))
	if filter.PageSize <= 0 {
		return matched, total, nil
	}
	start := filter.Offset()
	if start >= len(matched) {
		return []models.Post{}, total, nil
	}
	end := start + filter.PageSize
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total, nil
}

func (t *memTx) GetVote(_ context.Context, userID, postID string) (models.Vote, bool, error) {
	id, ok := t.data.voteIndex[voteKey{userID: userID, postID: postID}]
	if !ok {
		return models.Vote{}, false, nil
	}
	return t.data.votes[id], true, nil
}

func (t *memTx) CreateVote(_ context.Context, vote *models.Vote) error {
	t.data.mutable(partVotes)
	key := voteKey{userID: vote.UserID, postID: vote.PostID}
	if _, exists := t.data.voteIndex[key]; exists {
		return ErrConflict
	}
	if _, exists := t.data.votes[vote.ID]; exists {
		return ErrConflict
	}
	t.data.votes[vote.ID] = *vote
	t.data.voteIndex[key] = vote.ID
	return nil
}

func (t *memTx) UpdateVoteType(_ context.Context, voteID string, voteType models.VoteType, at time.Time) error {
	t.data.mutable(partVotes)
	vote, ok := t.data.votes[voteID]
	if !ok {
		return ErrNotFound
	}
	vote.VoteType = voteType
	vote.UpdatedAt = at
	t.data.votes[voteID] = vote
	return nil
}

func (t *memTx) DeleteVote(_ context.Context, voteID string) error {
	t.data.mutable(partVotes)
	vote, ok := t.data.votes[voteID]
	if !ok {
		return ErrNotFound
	}
	delete(t.data.votes, voteID)
	delete(t.data.voteIndex, voteKey{userID: vote.UserID, postID: vote.PostID})
	return nil
}

func (t *memTx) ListVotesByPost(_ context.Context, postID string) ([]models.Vote, error) {
	votes := make([]models.Vote, 0)
	for _, vote := range t.data.votes {
		if vote.PostID == postID {
			votes = append(votes, vote)
		}
	}
	sort.Slice(votes, func(i, j int) bool { return votes[i].CreatedAt.Before(votes[j].CreatedAt) })
	return votes, nil
}

func (t *memTx) CreateComment(_ context.Context, comment *models.Comment) error {
	t.data.mutable(partComments)
	if _, exists := t.data.comments[comment.ID]; exists {
		return ErrConflict
	}
	t.data.comments[comment.ID] = *comment
	return nil
}

func (t *memTx) GetComment(_ context.Context, id string) (models.Comment, error) {
	comment, ok := t.data.comments[id]
	if !ok {
		return models.Comment{}, ErrNotFound
	}
	return comment, nil
}

func (t *memTx) DeleteComment(_ context.Context, id string) error {
	t.data.mutable(partComments)
	if _, ok := t.data.comments[id]; !ok {
		return ErrNotFound
	}
	delete(t.data.comments, id)
	return nil
}

func (t *memTx) ListComments(_ context.Context, postID string) ([]models.Comment, error) {
	comments := make([]models.Comment, 0)
	for _, comment := range t.data.comments {
		if comment.PostID == postID {
			comments = append(comments, comment)
		}
	}
	sort.Slice(comments, func(i, j int) bool { return comments[i].CreatedAt.Before(comments[j].CreatedAt) })
	return comments, nil
}

func (t *memTx) CreateUser(_ context.Context, user *models.User) error {
	t.data.mutable(partUsers)
	if _, exists := t.data.usernames[user.Username]; exists {
		return ErrConflict
	}
	if _, exists := t.data.users[user.ID]; exists {
		return ErrConflict
	}
	t.data.users[user.ID] = *user
	t.data.usernames[user.Username] = user.ID
	return nil
}

func (t *memTx) GetUser(_ context.Context, id string) (models.User, error) {
	user, ok := t.data.users[id]
	if !ok {
		return models.User{}, ErrNotFound
	}
	return user, nil
}

func (t *memTx) GetUserByUsername(_ context.Context, username string) (models.User, error) {
	id, ok := t.data.usernames[username]
	if !ok {
		return models.User{}, ErrNotFound
	}
	return t.data.users[id], nil
}

func (t *memTx) CountUsers(_ context.Context) (int64, error) {
	return int64(len(t.data.users)), nil
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
