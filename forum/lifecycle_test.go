package forum

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/villageone/api/models"
	"github.com/villageone/api/store"
)

func strPtr(s string) *string { return &s }

func TestCreateValidation(t *testing.T) {
	valid := CreatePostInput{Title: "Tool library", Content: "Shelves needed", ForumSection: models.SectionResources}
	tests := []struct {
		name   string
		author string
		mutate func(in *CreatePostInput)
	}{
		{"missing author", "", func(in *CreatePostInput) {}},
		{"blank title", "a", func(in *CreatePostInput) { in.Title = "   " }},
		{"long title", "a", func(in *CreatePostInput) { in.Title = strings.Repeat("x", MaxTitleLength+1) }},
		{"blank content", "a", func(in *CreatePostInput) { in.Content = "" }},
		{"unknown section", "a", func(in *CreatePostInput) { in.ForumSection = "gossip" }},
		{"unknown status", "a", func(in *CreatePostInput) { in.Status = "archived" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			in := valid
			tt.mutate(&in)
			if _, err := f.lifecycle.Create(context.Background(), tt.author, in); !errors.Is(err, ErrInvalidArgument) {
				t.Fatalf("expected ErrInvalidArgument, got %v", err)
			}
			_, total, _ := f.repo.ListPosts(context.Background(), store.PostFilter{})
			if total != 0 {
				t.Fatalf("rejected input still stored a post")
			}
		})
	}
}

func TestCreateInitialStatus(t *testing.T) {
	f := newFixture()
	draft := f.createPost(t, "author", "")
	if draft.Status != models.PostStatusDraft || draft.PublishedAt != nil {
		t.Fatalf("default create should be an unpublished draft: %+v", draft)
	}
	if draft.Upvotes != 0 || draft.Downvotes != 0 {
		t.Fatalf("new post has counters %d/%d", draft.Upvotes, draft.Downvotes)
	}

	published := f.createPost(t, "author", models.PostStatusPublished)
	if published.PublishedAt == nil || !published.PublishedAt.Equal(published.CreatedAt) {
		t.Fatalf("published at creation should stamp published_at: %+v", published)
	}
}

func TestLifecycleRoundTrip(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	created := f.createPost(t, "author", models.PostStatusDraft)

	published, err := f.lifecycle.Publish(ctx, created.ID, "author")
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if published.Status != models.PostStatusPublished || published.PublishedAt == nil {
		t.Fatalf("publish did not stamp: %+v", published)
	}
	if !published.UpdatedAt.After(created.UpdatedAt) {
		t.Fatalf("publish did not refresh updated_at")
	}

	reverted, err := f.lifecycle.Revert(ctx, created.ID, "author")
	if err != nil {
		t.Fatalf("revert: %v", err)
	}
	if reverted.Status != models.PostStatusDraft || reverted.PublishedAt != nil {
		t.Fatalf("revert did not clear: %+v", reverted)
	}

	stored, err := f.repo.GetPost(ctx, created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	stored.UpdatedAt = created.UpdatedAt
	if stored != created {
		t.Fatalf("round trip changed more than updated_at:\n got %+v\nwant %+v", stored, created)
	}
}

func TestPublishIsNoOpWhenPublished(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	post := f.createPost(t, "author", models.PostStatusPublished)

	again, err := f.lifecycle.Publish(ctx, post.ID, "author")
	if err != nil {
		t.Fatalf("republish: %v", err)
	}
	if !again.PublishedAt.Equal(*post.PublishedAt) {
		t.Fatalf("republish moved published_at from %v to %v", post.PublishedAt, again.PublishedAt)
	}
	if !again.UpdatedAt.Equal(post.UpdatedAt) {
		t.Fatalf("republish should not write")
	}
}

func TestOwnershipEnforcement(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	post := f.createPost(t, "author", models.PostStatusPublished)

	ops := map[string]func() error{
		"publish": func() error { _, err := f.lifecycle.Publish(ctx, post.ID, "intruder"); return err },
		"revert":  func() error { _, err := f.lifecycle.Revert(ctx, post.ID, "intruder"); return err },
		"update": func() error {
			_, err := f.lifecycle.Update(ctx, post.ID, "intruder", PostUpdate{Title: strPtr("mine now")})
			return err
		},
	}
	for name, op := range ops {
		if err := op(); !errors.Is(err, ErrForbidden) {
			t.Fatalf("%s by non-author: expected ErrForbidden, got %v", name, err)
		}
	}
	stored, _ := f.repo.GetPost(ctx, post.ID)
	if stored.Status != models.PostStatusPublished || stored.Title != post.Title {
		t.Fatalf("forbidden operation mutated the post: %+v", stored)
	}

	if _, err := f.lifecycle.Publish(ctx, "missing", "author"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown post: expected ErrNotFound, got %v", err)
	}
}

func TestUpdateStatusStampsPublishedAt(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	post := f.createPost(t, "author", models.PostStatusDraft)

	published := models.PostStatusPublished
	got, err := f.lifecycle.Update(ctx, post.ID, "author", PostUpdate{Status: &published})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.PublishedAt == nil {
		t.Fatalf("status change via update did not stamp published_at")
	}

	draft := models.PostStatusDraft
	got, err = f.lifecycle.Update(ctx, post.ID, "author", PostUpdate{Status: &draft, Title: strPtr("  Renamed  ")})
	if err != nil {
		t.Fatalf("update back: %v", err)
	}
	if got.PublishedAt != nil || got.Title != "Renamed" {
		t.Fatalf("unexpected post after update: %+v", got)
	}
}

func TestUpdateValidatesBeforeMutating(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	post := f.createPost(t, "author", models.PostStatusDraft)

	bad := models.ForumSection("gossip")
	_, err := f.lifecycle.Update(ctx, post.ID, "author", PostUpdate{Title: strPtr("New"), ForumSection: &bad})
	if !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
	if _, err := f.lifecycle.Update(ctx, post.ID, "author", PostUpdate{}); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("empty update: expected ErrInvalidArgument, got %v", err)
	}
	stored, _ := f.repo.GetPost(ctx, post.ID)
	if stored.Title != post.Title {
		t.Fatalf("partial update applied: %q", stored.Title)
	}
}

func TestUpdateKeepsVoteCounters(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	post := f.createPost(t, "author", models.PostStatusPublished)
	if _, err := f.ledger.CastVote(ctx, "voter", post.ID, models.VoteUp); err != nil {
		t.Fatalf("vote: %v", err)
	}
	got, err := f.lifecycle.Update(ctx, post.ID, "author", PostUpdate{Content: strPtr("edited")})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.Upvotes != 1 {
		t.Fatalf("update lost the upvote: %d", got.Upvotes)
	}
	f.assertCountsConsistent(t, post.ID)
}

func TestDraftVisibility(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	draft := f.createPost(t, "author", models.PostStatusDraft)

	if _, err := f.lifecycle.Get(ctx, draft.ID, "author"); err != nil {
		t.Fatalf("author cannot see own draft: %v", err)
	}
	if _, err := f.lifecycle.Get(ctx, draft.ID, "stranger"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("stranger sees draft: %v", err)
	}
	if _, _, err := f.lifecycle.List(ctx, store.PostFilter{ForumSection: "gossip"}); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("list with unknown section: %v", err)
	}
}

func TestAuthorPublishesAfterVotesAndOthersCannotRevert(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	p := f.createPost(t, "A", models.PostStatusDraft)

	res, err := f.ledger.CastVote(ctx, "B", p.ID, models.VoteUp)
	if err != nil || voteTypeOf(res.CurrentVote) != "upvote" || res.Upvotes != 1 || res.Downvotes != 0 {
		t.Fatalf("first upvote: %+v %v", res, err)
	}
	res, err = f.ledger.CastVote(ctx, "B", p.ID, models.VoteUp)
	if err != nil || res.CurrentVote != nil || res.Upvotes != 0 || res.Downvotes != 0 {
		t.Fatalf("second upvote: %+v %v", res, err)
	}
	published, err := f.lifecycle.Publish(ctx, p.ID, "A")
	if err != nil || published.Status != models.PostStatusPublished || published.PublishedAt == nil {
		t.Fatalf("publish: %+v %v", published, err)
	}
	if _, err := f.lifecycle.Revert(ctx, p.ID, "C"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("revert by C: expected ErrForbidden, got %v", err)
	}
	stored, _ := f.repo.GetPost(ctx, p.ID)
	if stored.Status != models.PostStatusPublished {
		t.Fatalf("post should remain published, got %s", stored.Status)
	}
}
