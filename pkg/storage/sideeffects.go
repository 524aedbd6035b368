package storage

import (
	bolt "go.etcd.io/bbolt"

	"github.com/dpc/rostra/pkg/rostra"
)

// applyHeaderSideEffectsTx applies the subset of step 6's kind-specific
// side effects that only need the event header — never its (possibly not
// yet arrived) content: SOCIAL_POST's reply bookkeeping and reaction counts
// key off ParentAux alone, and DELETE's target is ParentAux too. It runs
// inside ProcessEvent's write transaction.
//
// FOLLOW, UNFOLLOW and SOCIAL_PROFILE_UPDATE need their content decoded
// (the followee/display-name/bio live in the opaque payload, not the
// header) and so are applied later, in applyContentSideEffectsTx, once
// ProcessEventContent has verified and stored that content.
func (db *DB) applyHeaderSideEffectsTx(tx *bolt.Tx, event rostra.Event, id rostra.ShortEventId) error {
	switch event.Kind {
	case rostra.EventKindSocialPost:
		return applySocialPostTx(tx, event, id)
	case rostra.EventKindSocialUpvote, rostra.EventKindSocialRepost:
		return applyReactionTx(tx, event, id)
	case rostra.EventKindDelete:
		return applyDeleteTx(tx, event, id)
	default:
		return nil
	}
}

// applyContentSideEffectsTx applies the content-dependent kind-specific
// side effects once an event's content has been verified and is available,
// inside ProcessEventContent's write transaction.
func (db *DB) applyContentSideEffectsTx(tx *bolt.Tx, event rostra.Event, id rostra.ShortEventId, content []byte) error {
	switch event.Kind {
	case rostra.EventKindFollow:
		return applyFollowTx(tx, event, content)
	case rostra.EventKindUnfollow:
		return applyUnfollowTx(tx, event, content)
	case rostra.EventKindSocialProfileUpdate:
		return applyProfileUpdateTx(tx, event, id, content)
	default:
		return nil
	}
}
