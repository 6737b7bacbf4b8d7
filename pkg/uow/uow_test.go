package uow_test

import (
	"context"
	"errors"
	"testing"

	"github.com/fsdevblog/peerinvest/pkg/uow"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTx struct {
	pgx.Tx
	committed  bool
	rolledBack bool
}

func (t *fakeTx) Commit(context.Context) error {
	t.committed = true
	return nil
}

func (t *fakeTx) Rollback(context.Context) error {
	if t.committed {
		return pgx.ErrTxClosed
	}
	t.rolledBack = true
	return nil
}

type fakeConn struct {
	uow.DBTX
	tx       *fakeTx
	isoLevel pgx.TxIsoLevel
}

func (c *fakeConn) BeginTx(_ context.Context, opts pgx.TxOptions) (pgx.Tx, error) {
	c.isoLevel = opts.IsoLevel
	c.tx = &fakeTx{}
	return c.tx, nil
}

type counterRepo struct {
	db uow.DBTX
}

const counterRepoName uow.RepositoryName = "counter"

func newUOW(t *testing.T, conn uow.Conn, opts ...uow.Option) *uow.UnitOfWork {
	t.Helper()
	u := uow.NewUnitOfWork(conn, opts...)
	require.NoError(t, u.Register(counterRepoName, func(db uow.DBTX) uow.Repository {
		return &counterRepo{db: db}
	}))
	return u
}

func TestRegister(t *testing.T) {
	u := newUOW(t, &fakeConn{})
	err := u.Register(counterRepoName, func(uow.DBTX) uow.Repository { return nil })
	assert.ErrorIs(t, err, uow.ErrRepositoryAlreadyRegistered)
}

func TestGetRepositoryAs(t *testing.T) {
	conn := &fakeConn{}
	u := newUOW(t, conn)

	repo, err := uow.GetRepositoryAs[*counterRepo](u, counterRepoName)
	require.NoError(t, err)
	assert.Same(t, conn, repo.db)

	_, err = uow.GetRepositoryAs[*counterRepo](u, "missing")
	assert.ErrorIs(t, err, uow.ErrRepositoryNotRegistered)

	_, err = uow.GetRepositoryAs[string](u, counterRepoName)
	assert.ErrorIs(t, err, uow.ErrInvalidRepositoryType)
}

func TestDo(t *testing.T) {
	t.Run("commit", func(t *testing.T) {
		conn := &fakeConn{}
		u := newUOW(t, conn)

		err := u.Do(t.Context(), func(_ context.Context, tx uow.TX) error {
			first, getErr := uow.GetAs[*counterRepo](tx, counterRepoName)
			require.NoError(t, getErr)
			second, getErr := uow.GetAs[*counterRepo](tx, counterRepoName)
			require.NoError(t, getErr)

			assert.Same(t, first, second)
			assert.Same(t, conn.tx, first.db)
			return nil
		})
		require.NoError(t, err)
		assert.True(t, conn.tx.committed)
		assert.False(t, conn.tx.rolledBack)
		assert.Equal(t, pgx.ReadCommitted, conn.isoLevel)
	})

	t.Run("rollback on error", func(t *testing.T) {
		conn := &fakeConn{}
		u := newUOW(t, conn, uow.WithIsolationLevel(pgx.Serializable))
		fnErr := errors.New("release failed")

		err := u.Do(t.Context(), func(context.Context, uow.TX) error {
			return fnErr
		})
		require.ErrorIs(t, err, fnErr)
		assert.False(t, conn.tx.committed)
		assert.True(t, conn.tx.rolledBack)
		assert.Equal(t, pgx.Serializable, conn.isoLevel)
	})

	t.Run("rollback on panic", func(t *testing.T) {
		conn := &fakeConn{}
		u := newUOW(t, conn)

		assert.Panics(t, func() {
			_ = u.Do(t.Context(), func(context.Context, uow.TX) error {
				panic("boom")
			})
		})
		assert.True(t, conn.tx.rolledBack)
	})

	t.Run("unknown repository in transaction", func(t *testing.T) {
		u := newUOW(t, &fakeConn{})
		err := u.Do(t.Context(), func(_ context.Context, tx uow.TX) error {
			_, getErr := uow.GetAs[*counterRepo](tx, "missing")
			return getErr
		})
		assert.ErrorIs(t, err, uow.ErrRepositoryNotRegistered)
	})
}

func TestGetAs_NilTransaction(t *testing.T) {
	_, err := uow.GetAs[*counterRepo](nil, counterRepoName)
	assert.ErrorIs(t, err, uow.ErrNilTransaction)
}
