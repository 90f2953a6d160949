package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAvailabilityService_Check(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.reservations.Create(ctx, basic(15))
	require.NoError(t, err)
	plus := basic(10)
	plus.Category = "PLUS"
	plus.StartDate, plus.EndDate = "2026-01-11", "2026-01-20"
	_, err = f.reservations.Create(ctx, plus)
	require.NoError(t, err)

	rows, err := f.availability.Check(ctx, "2026-01-10", "2026-01-11")
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, CategoryAvailability{Category: "BASIC", Capacity: 20, Reserved: 15, Available: 5, Price: 10000}, rows[0])
	assert.Equal(t, CategoryAvailability{Category: "PLUS", Capacity: 50, Reserved: 0, Available: 50, Price: 15000}, rows[1])
	assert.Equal(t, CategoryAvailability{Category: "VIP", Capacity: 8, Reserved: 0, Available: 8, Price: 30000}, rows[2])

	rows, err = f.availability.Check(ctx, "2026-01-11T00:00:00Z", "2026-01-12T00:00:00Z")
	require.NoError(t, err)
	assert.Equal(t, 10, rows[1].Reserved)
}

func TestAvailabilityService_InvalidRange(t *testing.T) {
	f := newFixture(t)
	for _, r := range [][2]string{{"", "2026-01-10"}, {"2026-01-10", ""}, {"2026-01-12", "2026-01-10"}, {"bad", "2026-01-10"}} {
		_, err := f.availability.Check(context.Background(), r[0], r[1])
		assert.ErrorIs(t, err, ErrInvalidDateRange, "range %v", r)
		assert.Equal(t, KindInvalidInput, KindOf(err))
	}
}

func TestLedger_AvailableNeverNegative(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.reservations.Create(ctx, basic(20))
	require.NoError(t, err)

	cats, err := f.store.ListCategories(ctx)
	require.NoError(t, err)
	shrunk := cats[0]
	shrunk.Capacity = 5

	start, end := testNow.AddDate(0, 0, 5), testNow.AddDate(0, 0, 7)
	available, reserved, err := NewLedger(f.store).Available(ctx, shrunk, start, end)
	require.NoError(t, err)
	assert.Equal(t, 0, available)
	assert.Equal(t, 20, reserved)
}
