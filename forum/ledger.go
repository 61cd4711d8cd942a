package forum

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/villageone/api/models"
	"github.com/villageone/api/store"
)

// VoteResult is the caller's vote state after CastVote. CurrentVote is nil
// when the vote was withdrawn.
type VoteResult struct {
	CurrentVote *models.VoteType `json:"current_vote"`
	Upvotes     int64            `json:"upvotes"`
	Downvotes   int64            `json:"downvotes"`
}

// VoteLedger keeps at most one vote per (user, post) and derives a post's
// counters from its votes.
type VoteLedger struct {
	Store  store.Repository
	Clock  Clock
	IDGen  IDGenerator
	Logger *zap.Logger
}

// NewVoteLedger wires a VoteLedger with the default clock and ids.
func NewVoteLedger(repo store.Repository, logger *zap.Logger) *VoteLedger {
	return &VoteLedger{Store: repo, Logger: resolveLogger(logger)}
}

// CastVote applies toggle semantics: no vote creates one, the same type
// withdraws it, the opposite type switches it in place. The post's counters
// are recomputed in the same transaction.
func (l *VoteLedger) CastVote(ctx context.Context, userID, postID string, voteType models.VoteType) (VoteResult, error) {
	logger := resolveLogger(l.Logger)
	if strings.TrimSpace(userID) == "" || strings.TrimSpace(postID) == "" {
		return VoteResult{}, invalid("user and post are required")
	}
	if !voteType.Valid() {
		return VoteResult{}, invalid("unknown vote type %q", voteType)
	}

	var result VoteResult
	var action string
	err := l.Store.Transaction(ctx, func(tx store.Repository) error {
		if _, err := tx.GetPostForUpdate(ctx, postID); err != nil {
			return fromStore(err, "post")
		}
		existing, found, err := tx.GetVote(ctx, userID, postID)
		if err != nil {
			return err
		}

		now := l.Clock.now()
		var current *models.VoteType
		switch {
		case !found:
			vote := models.Vote{
				ID:        l.IDGen.next(),
				UserID:    userID,
				PostID:    postID,
				VoteType:  voteType,
				CreatedAt: now,
				UpdatedAt: now,
			}
			if err := tx.CreateVote(ctx, &vote); err != nil {
				return fromStore(err, "vote")
			}
			action = "created"
			current = &vote.VoteType
		case existing.VoteType == voteType:
			if err := tx.DeleteVote(ctx, existing.ID); err != nil {
				return fromStore(err, "vote")
			}
			action = "withdrawn"
		default:
			if err := tx.UpdateVoteType(ctx, existing.ID, voteType, now); err != nil {
				return fromStore(err, "vote")
			}
			action = "switched"
			switched := voteType
			current = &switched
		}

		counts, err := syncCounts(ctx, tx, postID, now)
		if err != nil {
			return err
		}
		result = VoteResult{CurrentVote: current, Upvotes: counts.Upvotes, Downvotes: counts.Downvotes}
		return nil
	})
	if err != nil {
		logger.Warn("vote rejected",
			zap.String("post_id", postID),
			zap.String("user_id", userID),
			zap.String("vote_type", string(voteType)),
			zap.Error(err),
		)
		return VoteResult{}, err
	}
	logger.Info("vote "+action,
		zap.String("post_id", postID),
		zap.String("user_id", userID),
		zap.Int64("upvotes", result.Upvotes),
		zap.Int64("downvotes", result.Downvotes),
	)
	return result, nil
}

// GetUserVote returns the user's current vote type on the post, or nil.
func (l *VoteLedger) GetUserVote(ctx context.Context, userID, postID string) (*models.VoteType, error) {
	vote, found, err := l.Store.GetVote(ctx, userID, postID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return &vote.VoteType, nil
}

// GetVoteCounts counts the post's votes by type. This scan is the source of
// truth; the counters stored on the post are a cache of it.
func (l *VoteLedger) GetVoteCounts(ctx context.Context, postID string) (models.VoteCounts, error) {
	if _, err := l.Store.GetPost(ctx, postID); err != nil {
		return models.VoteCounts{}, fromStore(err, "post")
	}
	return countVotes(ctx, l.Store, postID)
}

// Recount rewrites a post's cached counters from its votes.
func (l *VoteLedger) Recount(ctx context.Context, postID string) (models.VoteCounts, error) {
	var counts models.VoteCounts
	err := l.Store.Transaction(ctx, func(tx store.Repository) error {
		if _, err := tx.GetPostForUpdate(ctx, postID); err != nil {
			return fromStore(err, "post")
		}
		var err error
		counts, err = syncCounts(ctx, tx, postID, l.Clock.now())
		return err
	})
	return counts, err
}

// syncCounts is the only writer of a post's vote counters.
func syncCounts(ctx context.Context, tx store.Repository, postID string, now time.Time) (models.VoteCounts, error) {
	counts, err := countVotes(ctx, tx, postID)
	if err != nil {
		return models.VoteCounts{}, err
	}
	if err := tx.SetVoteCounts(ctx, postID, counts, now); err != nil {
		return models.VoteCounts{}, fromStore(err, "post")
	}
	return counts, nil
}

func countVotes(ctx context.Context, repo store.Repository, postID string) (models.VoteCounts, error) {
	votes, err := repo.ListVotesByPost(ctx, postID)
	if err != nil {
		return models.VoteCounts{}, err
	}
	var counts models.VoteCounts
	for _, vote := range votes {
		switch vote.VoteType {
		case models.VoteUp:
			counts.Upvotes++
		case models.VoteDown:
			counts.Downvotes++
		}
	}
	return counts, nil
}
