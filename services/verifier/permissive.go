package verifier

import (
	"context"
	"fmt"
)

// PermissiveVerifier checks likes through Likes and confirms reposts and
// replies without contacting the platform. It exists for environments where
// timeline access is not provisioned and must not be used where rewards carry
// real value.
type PermissiveVerifier struct {
	Likes Verifier
}

func (p *PermissiveVerifier) Verify(ctx context.Context, cred Credential, kind ActionKind, postID string) (Result, error) {
	switch kind {
	case Like:
		return p.Likes.Verify(ctx, cred, kind, postID)
	case Repost, Reply:
		if cred.AccessToken == "" {
			return Result{Kind: kind, PostID: postID}, ErrUnauthorized
		}
		return Result{Confirmed: true, Kind: kind, PostID: postID}, nil
	default:
		return Result{Kind: kind, PostID: postID}, fmt.Errorf("%w: %q", ErrUnknownAction, kind)
	}
}
