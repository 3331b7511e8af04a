package tree

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"binarymlm/internal/models"
)

func ids(members []models.Member) []uint {
	out := make([]uint, 0, len(members))
	for _, m := range members {
		out = append(out, m.ID)
	}
	return out
}

func TestTeamsAndDescendants(t *testing.T) {
	e, _, root := newEngine(t)
	ctx := context.Background()

	a := register(t, e, root.ID, models.SideLeft)
	b := register(t, e, root.ID, models.SideRight)
	c := register(t, e, a.ID, models.SideLeft)
	d := register(t, e, a.ID, models.SideRight)
	f := register(t, e, c.ID, models.SideRight)

	left, err := e.LeftTeam(ctx, root.ID, 0)
	require.NoError(t, err)
	require.Equal(t, []uint{a.ID, c.ID, d.ID, f.ID}, ids(left))

	shallow, err := e.LeftTeam(ctx, root.ID, 2)
	require.NoError(t, err)
	require.Equal(t, []uint{a.ID, c.ID, d.ID}, ids(shallow))

	right, err := e.RightTeam(ctx, root.ID, 5)
	require.NoError(t, err)
	require.Equal(t, []uint{b.ID}, ids(right))

	empty, err := e.RightTeam(ctx, b.ID, 5)
	require.NoError(t, err)
	require.Empty(t, empty)

	ok, err := e.IsDescendant(ctx, a.ID, f.ID)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = e.IsDescendant(ctx, b.ID, f.ID)
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = e.IsDescendant(ctx, f.ID, a.ID)
	require.NoError(t, err)
	require.False(t, ok)

	_, err = e.Team(ctx, 999, models.SideLeft, 1)
	require.ErrorIs(t, err, ErrNotPlaced)
}

func TestFindParentUsesRepository(t *testing.T) {
	e, _, root := newEngine(t)
	ctx := context.Background()

	parent, err := FindParent(ctx, e.Repository(), root.ID, models.SideRight)
	require.NoError(t, err)
	require.Equal(t, root.ID, parent)

	a := register(t, e, root.ID, models.SideRight)
	parent, err = FindParent(ctx, e.Repository(), root.ID, models.SideRight)
	require.NoError(t, err)
	require.Equal(t, a.ID, parent)

	_, err = FindParent(ctx, e.Repository(), 999, models.SideRight)
	require.ErrorIs(t, err, ErrSponsorNotFound)
}
