package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/blingsync/backend/internal/domain/credential"
)

func TestGormConnectionRepository_UpdateVersioned(t *testing.T) {
	t.Run("advances the version on success", func(t *testing.T) {
		db, mock, mockDB := newMockDB(t)
		defer mockDB.Close()
		repo := NewGormConnectionRepository(db)

		conn := credential.NewConnection(uuid.New(), "client-1", "enc-secret")
		conn.Version = 3

		mock.ExpectExec(`UPDATE "erp_connections" SET .* WHERE id = \$\d+ AND version = \$\d+`).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := repo.UpdateVersioned(context.Background(), conn)

		require.NoError(t, err)
		assert.Equal(t, int64(4), conn.Version)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns ErrVersionConflict when a concurrent update won", func(t *testing.T) {
		db, mock, mockDB := newMockDB(t)
		defer mockDB.Close()
		repo := NewGormConnectionRepository(db)

		conn := credential.NewConnection(uuid.New(), "client-1", "enc-secret")
		conn.Version = 3

		mock.ExpectExec(`UPDATE "erp_connections" SET .* WHERE id = \$\d+ AND version = \$\d+`).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := repo.UpdateVersioned(context.Background(), conn)

		assert.ErrorIs(t, err, credential.ErrVersionConflict)
		assert.Equal(t, int64(3), conn.Version)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGormConnectionRepository_FindByID(t *testing.T) {
	t.Run("maps a stored row to the domain entity", func(t *testing.T) {
		db, mock, mockDB := newMockDB(t)
		defer mockDB.Close()
		repo := NewGormConnectionRepository(db)

		connID := uuid.New()
		tenantID := uuid.New()
		expires := time.Now().Add(6 * time.Hour)

		rows := sqlmock.NewRows([]string{"id", "tenant_id", "client_id", "encrypted_client_secret", "token_expires_at", "scopes", "status", "version"}).
			AddRow(connID, tenantID, "client-1", "enc-secret", expires, "produtos pedidos", "ACTIVE", 2)

		mock.ExpectQuery(`SELECT \* FROM "erp_connections" WHERE id = \$1 ORDER BY .* LIMIT .*`).
			WithArgs(connID, 1).
			WillReturnRows(rows)

		conn, err := repo.FindByID(context.Background(), connID)

		require.NoError(t, err)
		assert.Equal(t, credential.ConnectionStatusActive, conn.Status)
		assert.Equal(t, []string{"produtos", "pedidos"}, conn.Scopes)
		assert.Equal(t, int64(2), conn.Version)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns ErrConnectionNotFound for missing row", func(t *testing.T) {
		db, mock, mockDB := newMockDB(t)
		defer mockDB.Close()
		repo := NewGormConnectionRepository(db)

		connID := uuid.New()
		mock.ExpectQuery(`SELECT \* FROM "erp_connections" WHERE id = \$1 ORDER BY .* LIMIT .*`).
			WithArgs(connID, 1).
			WillReturnError(gorm.ErrRecordNotFound)

		conn, err := repo.FindByID(context.Background(), connID)

		assert.Nil(t, conn)
		assert.ErrorIs(t, err, credential.ErrConnectionNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
