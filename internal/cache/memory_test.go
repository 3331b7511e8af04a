package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"binarymlm/internal/models"
)

type countingLoader struct {
	calls  int
	points int64
}

func (l *countingLoader) load(context.Context) (*models.Wallet, error) {
	l.calls++
	return &models.Wallet{ID: 1, Points: decimal.NewFromInt(l.points)}, nil
}

func TestMemoryServesWithinTTL(t *testing.T) {
	c := NewMemory(30*time.Second, nil)
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	l := &countingLoader{points: 10}

	w, err := c.Fetch(context.Background(), 1, l.load)
	require.NoError(t, err)
	require.True(t, w.Points.Equal(decimal.NewFromInt(10)))

	l.points = 20
	w, err = c.Fetch(context.Background(), 1, l.load)
	require.NoError(t, err)
	require.True(t, w.Points.Equal(decimal.NewFromInt(10)))
	require.Equal(t, 1, l.calls)

	now = now.Add(31 * time.Second)
	w, err = c.Fetch(context.Background(), 1, l.load)
	require.NoError(t, err)
	require.True(t, w.Points.Equal(decimal.NewFromInt(20)))
	require.Equal(t, 2, l.calls)
}

func TestMemoryInvalidateForcesReload(t *testing.T) {
	c := NewMemory(time.Minute, nil)
	l := &countingLoader{points: 10}

	_, err := c.Fetch(context.Background(), 1, l.load)
	require.NoError(t, err)
	require.Equal(t, 1, c.Len())

	l.points = 50
	c.Invalidate(context.Background(), 1, 2)
	require.Zero(t, c.Len())

	w, err := c.Fetch(context.Background(), 1, l.load)
	require.NoError(t, err)
	require.True(t, w.Points.Equal(decimal.NewFromInt(50)))
}

func TestMemoryDropsSnapshotRacingAnInvalidation(t *testing.T) {
	c := NewMemory(time.Minute, nil)

	_, err := c.Fetch(context.Background(), 1, func(ctx context.Context) (*models.Wallet, error) {
		// A ledger write commits while this read is in flight.
		c.Invalidate(ctx, 1)
		return &models.Wallet{ID: 1, Points: decimal.NewFromInt(1)}, nil
	})
	require.NoError(t, err)
	require.Zero(t, c.Len())
}

func TestMemoryReturnsCopies(t *testing.T) {
	c := NewMemory(time.Minute, nil)
	l := &countingLoader{points: 10}

	w, err := c.Fetch(context.Background(), 1, l.load)
	require.NoError(t, err)
	w.Points = decimal.NewFromInt(999)

	again, err := c.Fetch(context.Background(), 1, l.load)
	require.NoError(t, err)
	require.True(t, again.Points.Equal(decimal.NewFromInt(10)))
}

func TestMemoryLoaderErrorIsNotCached(t *testing.T) {
	c := NewMemory(time.Minute, nil)
	boom := errors.New("db down")

	_, err := c.Fetch(context.Background(), 1, func(context.Context) (*models.Wallet, error) { return nil, boom })
	require.ErrorIs(t, err, boom)
	require.Zero(t, c.Len())
}
