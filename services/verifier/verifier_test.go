package verifier

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseActionKind(t *testing.T) {
	k, err := ParseActionKind(" Like ")
	require.NoError(t, err)
	require.Equal(t, Like, k)

	_, err = ParseActionKind("bookmark")
	require.ErrorIs(t, err, ErrUnknownAction)
}

func TestParsePostURL(t *testing.T) {
	cases := []struct {
		raw  string
		want string
		ok   bool
	}{
		{"https://twitter.com/alice/status/1234567890", "1234567890", true},
		{"https://x.com/alice/status/987?s=20", "987", true},
		{"mobile.twitter.com/alice/status/55", "55", true},
		{"https://www.x.com/i/web/status/77", "77", true},
		{"https://example.com/alice/status/1", "", false},
		{"https://x.com/alice", "", false},
		{"https://x.com/alice/status/abc", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		t.Run(tc.raw, func(t *testing.T) {
			got, err := ParsePostURL(tc.raw)
			if !tc.ok {
				require.ErrorIs(t, err, ErrInvalidPostURL)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestPermissiveVerifier(t *testing.T) {
	likes := 0
	p := &PermissiveVerifier{Likes: Func(func(ctx context.Context, cred Credential, kind ActionKind, postID string) (Result, error) {
		likes++
		return Result{Kind: kind, PostID: postID}, nil
	})}
	cred := Credential{AccessToken: "t"}

	res, err := p.Verify(context.Background(), cred, Like, "1")
	require.NoError(t, err)
	require.False(t, res.Confirmed)
	require.Equal(t, 1, likes)

	res, err = p.Verify(context.Background(), cred, Repost, "1")
	require.NoError(t, err)
	require.True(t, res.Confirmed)

	res, err = p.Verify(context.Background(), cred, Reply, "1")
	require.NoError(t, err)
	require.True(t, res.Confirmed)
	require.Equal(t, 1, likes)

	_, err = p.Verify(context.Background(), Credential{}, Reply, "1")
	require.ErrorIs(t, err, ErrUnauthorized)
}
