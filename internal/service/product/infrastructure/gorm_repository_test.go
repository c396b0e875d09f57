package infrastructure

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coupon-core/internal/pkg/database/dbtest"
	"coupon-core/internal/service/product/domain"
)

func TestGormRepository_OptimisticUpdate(t *testing.T) {
	repo := NewGormRepository(dbtest.Open(t, &ProductModel{}))
	ctx := context.Background()

	p := &domain.Product{Name: "keyboard", Price: 4999, Stock: 10}
	require.NoError(t, repo.Create(ctx, p))

	a, err := repo.FindByID(ctx, p.ID)
	require.NoError(t, err)
	b, err := repo.FindByID(ctx, p.ID)
	require.NoError(t, err)

	require.NoError(t, a.Deduct(2))
	require.NoError(t, repo.UpdateStock(ctx, a))
	assert.Equal(t, int64(1), a.Version)

	require.NoError(t, b.Deduct(1))
	assert.ErrorIs(t, repo.UpdateStock(ctx, b), domain.ErrConcurrentModification)

	got, err := repo.FindByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(8), got.Stock)
	assert.Equal(t, int64(1), got.Version)

	_, err = repo.FindByID(ctx, 404)
	assert.ErrorIs(t, err, domain.ErrProductNotFound)
}

func TestGormRepository_WithinTxRollsBack(t *testing.T) {
	repo := NewGormRepository(dbtest.Open(t, &ProductModel{}))
	ctx := context.Background()
	p := &domain.Product{Name: "mouse", Stock: 5}
	require.NoError(t, repo.Create(ctx, p))

	boom := errors.New("boom")
	err := repo.WithinTx(ctx, func(tx domain.Repository) error {
		got, err := tx.FindByID(ctx, p.ID)
		require.NoError(t, err)
		require.NoError(t, got.Deduct(5))
		require.NoError(t, tx.UpdateStock(ctx, got))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := repo.FindByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(5), got.Stock)
}
