package repository

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/wallet-pass-service/internal/domain"
	"github.com/spec-kit/wallet-pass-service/internal/persistence"
)

// openTestPool connects to TEST_POSTGRES_DSN and seeds one business with one customer.
func openTestPool(t *testing.T) (*pgxpool.Pool, string, string) {
	t.Helper()
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set; skipping postgres integration test")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	require.NoError(t, persistence.RunMigrations(ctx, pool, zap.NewNop()))

	bid, cid := "b-"+uuid.NewString(), "c-"+uuid.NewString()
	_, err = pool.Exec(ctx, `INSERT INTO businesses (id, name) VALUES ($1, 'Cafe')`, bid)
	require.NoError(t, err)
	_, err = pool.Exec(ctx, `INSERT INTO customers (id, business_id, name, stamps) VALUES ($1, $2, 'Ada', 2)`, cid, bid)
	require.NoError(t, err)
	t.Cleanup(func() {
		_, _ = pool.Exec(context.Background(), `DELETE FROM businesses WHERE id=$1`, bid)
	})
	return pool, bid, cid
}

func TestEnsureAuthTokenMintsOnceUnderContention(t *testing.T) {
	pool, _, cid := openTestPool(t)
	repo := NewCustomerRepository(pool)
	ctx := context.Background()

	const workers = 8
	tokens := make([]string, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tok, err := repo.EnsureAuthToken(ctx, cid, uuid.NewString())
			assert.NoError(t, err)
			tokens[i] = tok
		}(i)
	}
	wg.Wait()

	for _, tok := range tokens[1:] {
		assert.Equal(t, tokens[0], tok)
	}
	customer, err := repo.GetByID(ctx, cid)
	require.NoError(t, err)
	require.NotNil(t, customer.AuthToken)
	assert.Equal(t, tokens[0], *customer.AuthToken)
}

func TestRegistrationUpsertIsIdempotent(t *testing.T) {
	pool, bid, cid := openTestPool(t)
	repo := NewRegistrationRepository(pool)
	ctx := context.Background()

	created, err := repo.Upsert(ctx, &domain.DeviceRegistration{CustomerID: cid, DeviceID: "d1", PassTypeID: "p", PushToken: "t1"})
	require.NoError(t, err)
	assert.True(t, created)

	created, err = repo.Upsert(ctx, &domain.DeviceRegistration{CustomerID: cid, DeviceID: "d1", PassTypeID: "p", PushToken: "t2"})
	require.NoError(t, err)
	assert.False(t, created)

	regs, err := repo.ListByCustomer(ctx, cid)
	require.NoError(t, err)
	require.Len(t, regs, 1)
	assert.Equal(t, "t2", regs[0].PushToken)

	serials, err := repo.ListUpdatedSerials(ctx, bid, "d1", "p", nil)
	require.NoError(t, err)
	require.Len(t, serials, 1)
	assert.Equal(t, cid, serials[0].Serial)

	future := time.Now().Add(time.Hour)
	serials, err = repo.ListUpdatedSerials(ctx, bid, "d1", "p", &future)
	require.NoError(t, err)
	assert.Empty(t, serials)

	require.NoError(t, repo.Delete(ctx, cid, "d1", "p"))
	require.NoError(t, repo.Delete(ctx, cid, "d1", "p"))
	regs, err = repo.ListByCustomer(ctx, cid)
	require.NoError(t, err)
	assert.Empty(t, regs)
}

func TestGetCustomerMissingIsNotFound(t *testing.T) {
	pool, _, _ := openTestPool(t)
	_, err := NewCustomerRepository(pool).GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
