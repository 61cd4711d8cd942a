package forum

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/villageone/api/models"
	"github.com/villageone/api/store"
)

func newSQLiteFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "forum.db")), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := db.AutoMigrate(store.Models()...); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return newFixtureOn(store.NewGormStore(db, nil))
}

func TestGormCastVoteToggleAndSwitch(t *testing.T) {
	f := newSQLiteFixture(t)
	ctx := context.Background()
	post := f.createPost(t, "author", models.PostStatusPublished)

	steps := []struct {
		cast          models.VoteType
		wantVote      string
		wantUpvotes   int64
		wantDownvotes int64
	}{
		{models.VoteUp, "upvote", 1, 0},
		{models.VoteDown, "downvote", 0, 1},
		{models.VoteDown, "<nil>", 0, 0},
		{models.VoteUp, "upvote", 1, 0},
	}
	for i, step := range steps {
		res, err := f.ledger.CastVote(ctx, "voter", post.ID, step.cast)
		if err != nil {
			t.Fatalf("step %d cast %s: %v", i, step.cast, err)
		}
		if got := voteTypeOf(res.CurrentVote); got != step.wantVote {
			t.Fatalf("step %d: current vote = %s, want %s", i, got, step.wantVote)
		}
		if res.Upvotes != step.wantUpvotes || res.Downvotes != step.wantDownvotes {
			t.Fatalf("step %d: counts = %d/%d, want %d/%d", i, res.Upvotes, res.Downvotes, step.wantUpvotes, step.wantDownvotes)
		}
		f.assertCountsConsistent(t, post.ID)
	}

	votes, err := f.repo.ListVotesByPost(ctx, post.ID)
	if err != nil {
		t.Fatalf("list votes: %v", err)
	}
	if len(votes) != 1 {
		t.Fatalf("expected one vote row, got %d", len(votes))
	}
}

func TestGormLifecycleTransitions(t *testing.T) {
	f := newSQLiteFixture(t)
	ctx := context.Background()
	post := f.createPost(t, "author", models.PostStatusDraft)
	if _, err := f.ledger.CastVote(ctx, "voter", post.ID, models.VoteUp); err != nil {
		t.Fatalf("cast: %v", err)
	}

	published, err := f.lifecycle.Publish(ctx, post.ID, "author")
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if !published.IsPublished() || published.PublishedAt == nil {
		t.Fatalf("publish result: %+v", published)
	}
	if published.Upvotes != 1 {
		t.Fatalf("publish lost vote counters: %d", published.Upvotes)
	}

	if _, err := f.lifecycle.Revert(ctx, post.ID, "intruder"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("revert by non-author: got %v", err)
	}
	reverted, err := f.lifecycle.Revert(ctx, post.ID, "author")
	if err != nil {
		t.Fatalf("revert: %v", err)
	}
	if reverted.Status != models.PostStatusDraft || reverted.PublishedAt != nil {
		t.Fatalf("revert result: %+v", reverted)
	}

	stored, err := f.repo.GetPost(ctx, post.ID)
	if err != nil {
		t.Fatalf("get post: %v", err)
	}
	if stored.Status != models.PostStatusDraft || stored.PublishedAt != nil || stored.Upvotes != 1 {
		t.Fatalf("stored post: %+v", stored)
	}
}

func TestGormCastVoteConcurrentClicks(t *testing.T) {
	f := newSQLiteFixture(t)
	ctx := context.Background()
	post := f.createPost(t, "author", models.PostStatusPublished)

	const voters = 20
	var wg sync.WaitGroup
	errs := make(chan error, voters*2)
	for i := 0; i < voters; i++ {
		user := fmt.Sprintf("user-%d", i)
		vt := models.VoteUp
		if i%2 == 1 {
			vt = models.VoteDown
		}
		for j := 0; j < 2; j++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := f.ledger.CastVote(ctx, user, post.ID, vt); err != nil {
					errs <- err
				}
			}()
		}
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent cast: %v", err)
	}

	counts, err := f.ledger.GetVoteCounts(ctx, post.ID)
	if err != nil {
		t.Fatalf("counts: %v", err)
	}
	if counts.Upvotes != 0 || counts.Downvotes != 0 {
		t.Fatalf("counts = %d/%d, want 0/0", counts.Upvotes, counts.Downvotes)
	}
	f.assertCountsConsistent(t, post.ID)
}
