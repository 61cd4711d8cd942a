package forum

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/villageone/api/models"
	"github.com/villageone/api/store"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)}
}

// Tick advances by one second on every read so successive mutations are
// distinguishable.
func (c *fakeClock) Tick() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

func sequentialIDs(prefix string) IDGenerator {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("%s-%d", prefix, n)
	}
}

type fixture struct {
	repo      store.Repository
	clock     *fakeClock
	lifecycle *PostLifecycle
	ledger    *VoteLedger
	comments  *Comments
}

func newFixture() *fixture {
	return newFixtureOn(store.NewMemoryStore())
}

func newFixtureOn(repo store.Repository) *fixture {
	clock := newFakeClock()
	return &fixture{
		repo:      repo,
		clock:     clock,
		lifecycle: &PostLifecycle{Store: repo, Clock: clock.Tick, IDGen: sequentialIDs("post")},
		ledger:    &VoteLedger{Store: repo, Clock: clock.Tick, IDGen: sequentialIDs("vote")},
		comments:  &Comments{Store: repo, Clock: clock.Tick, IDGen: sequentialIDs("comment")},
	}
}

func (f *fixture) createPost(t *testing.T, authorID string, status models.PostStatus) models.Post {
	t.Helper()
	post, err := f.lifecycle.Create(context.Background(), authorID, CreatePostInput{
		Title:        "Spring planting day",
		Content:      "Bring gloves.",
		ForumSection: models.SectionLand,
		Status:       status,
	})
	if err != nil {
		t.Fatalf("create post: %v", err)
	}
	return post
}

// assertCountsConsistent checks that the cached counters equal a scan of the votes.
func (f *fixture) assertCountsConsistent(t *testing.T, postID string) {
	t.Helper()
	ctx := context.Background()
	post, err := f.repo.GetPost(ctx, postID)
	if err != nil {
		t.Fatalf("get post: %v", err)
	}
	scanned, err := f.ledger.GetVoteCounts(ctx, postID)
	if err != nil {
		t.Fatalf("count votes: %v", err)
	}
	if post.Upvotes != scanned.Upvotes || post.Downvotes != scanned.Downvotes {
		t.Fatalf("cached counters %d/%d differ from scan %d/%d",
			post.Upvotes, post.Downvotes, scanned.Upvotes, scanned.Downvotes)
	}
}
