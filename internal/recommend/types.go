// Loomfeed - Hybrid Feed Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/loomfeed

package recommend

// InteractionType is a positive-signal label reported by clients.
type InteractionType string

const (
	// InteractionLike is the strongest positive signal.
	InteractionLike InteractionType = "like"
	// InteractionComment is a slightly weaker positive signal than a like.
	InteractionComment InteractionType = "comment"
)

// String returns the wire name of the interaction type.
func (t InteractionType) String() string {
	return string(t)
}

// Tag is a single taxonomy label produced by the tagging service.
type Tag struct {
	// Label is the taxonomy label, e.g. "impressionism".
	Label string `json:"label"`

	// Confidence is the tagger's confidence in [0, 1].
	Confidence float64 `json:"confidence"`
}

// Tags maps a taxonomy category (e.g. "style") to its ordered tag list.
type Tags map[string][]Tag

// Labels returns the set of labels across all categories.
func (t Tags) Labels() map[string]struct{} {
	labels := make(map[string]struct{})
	for _, list := range t {
		for _, tag := range list {
			labels[tag.Label] = struct{}{}
		}
	}
	return labels
}

// Post is a candidate post supplied by the caller.
type Post struct {
	// ID is the post identifier.
	ID string

	// CreatorID identifies the post's creator (artist).
	CreatorID string

	// Tags is the coerced tag structure.
	Tags Tags

	// Raw is the original request object, echoed back in responses.
	Raw map[string]any
}

// HistoryEntry is one past interaction used to build tag affinity.
type HistoryEntry struct {
	// Tags is the tag structure of the post interacted with.
	Tags Tags

	// Weight scales the contribution of every tag in the entry.
	// Default: 1.0.
	Weight float64
}

// Trust carries the creator behavior features produced by bot detection.
// Zero values are neutral.
type Trust struct {
	// BotScore is the bot probability in [0, 1].
	BotScore float64

	// FastReplyPct is the share of suspiciously fast replies.
	FastReplyPct float64

	// CircadianFlatness measures how evenly activity spreads over the day.
	CircadianFlatness float64

	// IntervalRegularity measures how regular posting intervals are.
	IntervalRegularity float64
}

// Affinity maps category -> label -> normalized preference weight.
type Affinity map[string]map[string]float64

// SeenTags counts label occurrences within the feed being assembled.
type SeenTags map[string]int

// FeedItem is a ranked post in a response.
type FeedItem struct {
	// Post is the scored candidate.
	Post Post

	// Score is the hybrid score in [0, 1].
	Score float64

	// NCFWeight is the blend weight given to the latent model for this viewer.
	NCFWeight float64

	// Serendipity marks posts picked for discovery rather than affinity.
	Serendipity bool
}

// FeedRequest is the input of a recommendation call.
type FeedRequest struct {
	// UserID is the viewer; empty for anonymous feeds.
	UserID string

	// Posts are the candidates to rank.
	Posts []Post

	// History is the viewer's recent interactions.
	History []HistoryEntry

	// Followed is the set of creator IDs the viewer follows.
	Followed map[string]struct{}

	// Trust maps creator ID to behavior features.
	Trust map[string]Trust

	// TopN is the target feed size.
	TopN int

	// Exploration is the upper bound of the random exploration term.
	Exploration float64
}

// InteractionEvent is a single training signal for the latent model.
type InteractionEvent struct {
	// UserID is the acting user.
	UserID string `json:"user_id"`

	// PostID is the post that received the interaction.
	PostID string `json:"post_id"`

	// Type is the interaction kind.
	Type InteractionType `json:"interaction_type"`

	// Negatives are other candidate post IDs used for negative sampling.
	Negatives []string `json:"negatives,omitempty"`
}

// LatentModel is the read side of the collaborative model used while scoring.
type LatentModel interface {
	// Predict returns the model score in (0, 1) for a user/post pair.
	Predict(userID, postID string) float64

	// Weight returns the blend weight given to Predict for this user.
	Weight(userID string) float64
}
