package activity

import (
	"testing"

	"boostfix/pkg/db/pagination"
	"boostfix/pkg/errutil"
	"boostfix/pkg/gen"
	"boostfix/services/verifier"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func newTestFeed(t *testing.T) *Feed {
	t.Helper()
	node, err := gen.NewSnowflakeNode(1)
	require.NoError(t, err)
	return NewFeed(node)
}

func TestTipKind(t *testing.T) {
	require.Equal(t, KindTipLike, TipKind(verifier.Like))
	require.Equal(t, KindTipRepost, TipKind(verifier.Repost))
	require.Equal(t, KindTipReply, TipKind(verifier.Reply))
}

func TestAppendNewestFirst(t *testing.T) {
	f := newTestFeed(t)

	first := f.Append(Record{Kind: KindDeposit, UserID: "sponsor", Amount: decimal.NewFromInt(10), TxRef: "0x1"})
	second := f.Append(Record{Kind: KindTipLike, UserID: "alice", Amount: decimal.RequireFromString("0.1")})
	require.NotEmpty(t, first.ID)
	require.False(t, first.CreatedAt.IsZero())

	all := f.Snapshot()
	require.Len(t, all, 2)
	require.Equal(t, second.ID, all[0].ID)
	require.Equal(t, first.ID, all[1].ID)
}

func TestListPages(t *testing.T) {
	f := newTestFeed(t)
	var ids []string
	for i := 0; i < 5; i++ {
		ids = append(ids, f.Append(Record{Kind: KindTipLike, UserID: "alice"}).ID)
	}

	page, info, err := f.List("", pagination.Pagination{Limit: 2})
	require.NoError(t, err)
	require.Len(t, page, 2)
	require.Equal(t, ids[4], page[0].ID)
	require.True(t, info.HasMore)

	page, info, err = f.List("", pagination.Pagination{Limit: 2, Cursor: info.NextCursor})
	require.NoError(t, err)
	require.Equal(t, ids[2], page[0].ID)
	require.Equal(t, ids[1], page[1].ID)

	page, info, err = f.List("", pagination.Pagination{Limit: 2, Cursor: info.NextCursor})
	require.NoError(t, err)
	require.Len(t, page, 1)
	require.False(t, info.HasMore)

	_, _, err = f.List("", pagination.Pagination{Cursor: "not-a-cursor"})
	require.Equal(t, errutil.StatusBadRequest, errutil.StatusOf(err))
}

func TestListRejectsStaleCursor(t *testing.T) {
	f := newTestFeed(t)
	for i := 0; i < 3; i++ {
		f.Append(Record{Kind: KindTipLike, UserID: "alice"})
	}
	_, info, err := f.List("", pagination.Pagination{Limit: 1})
	require.NoError(t, err)
	require.True(t, info.HasMore)

	f.Reset()
	f.Append(Record{Kind: KindDeposit, UserID: "sponsor"})

	_, _, err = f.List("", pagination.Pagination{Limit: 1, Cursor: info.NextCursor})
	require.ErrorIs(t, err, ErrCursorNotFound)
	require.Equal(t, errutil.StatusBadRequest, errutil.StatusOf(err))
}

func TestListByUser(t *testing.T) {
	f := newTestFeed(t)
	f.Append(Record{Kind: KindDeposit, UserID: "sponsor"})
	f.Append(Record{Kind: KindTipReply, UserID: "alice"})

	page, _, err := f.List("alice", pagination.Pagination{})
	require.NoError(t, err)
	require.Len(t, page, 1)
	require.Equal(t, KindTipReply, page[0].Kind)
}

func TestRestoreAndReset(t *testing.T) {
	f := newTestFeed(t)
	f.Append(Record{Kind: KindDeposit, UserID: "sponsor"})
	f.Append(Record{Kind: KindTipLike, UserID: "alice"})
	snap := f.Snapshot()

	other := newTestFeed(t)
	other.Restore(snap)
	require.Equal(t, snap, other.Snapshot())

	other.Reset()
	require.Zero(t, other.Len())
}
