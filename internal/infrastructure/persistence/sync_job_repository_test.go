package persistence

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	syncdomain "github.com/blingsync/backend/internal/domain/sync"
)

// newMockDB creates a GORM handle backed by sqlmock
func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	dialector := postgres.New(postgres.Config{
		Conn:       mockDB,
		DriverName: "postgres",
	})

	gormDB, err := gorm.Open(dialector, &gorm.Config{
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)

	return gormDB, mock, mockDB
}

func TestGormJobRepository_Claim(t *testing.T) {
	t.Run("claims a pending job", func(t *testing.T) {
		db, mock, mockDB := newMockDB(t)
		defer mockDB.Close()
		repo := NewGormJobRepository(db)

		jobID := uuid.New()
		tenantID := uuid.New()

		// The claim also zeroes the progress counters of any earlier attempt
		mock.ExpectExec(`UPDATE "sync_jobs" SET .*"progress_total"=\$\d+.* WHERE id = \$\d+ AND status = \$\d+`).
			WillReturnResult(sqlmock.NewResult(0, 1))

		rows := sqlmock.NewRows([]string{"id", "tenant_id", "connection_id", "type", "direction", "triggered_by", "status", "correlation_id", "config"}).
			AddRow(jobID, tenantID, uuid.New(), "PRODUCTS", "IMPORT", "WEBHOOK", "PROCESSING", "corr-1", `{"batch_size":100,"max_retries":3}`)

		mock.ExpectQuery(`SELECT \* FROM "sync_jobs" WHERE id = \$1 ORDER BY .* LIMIT .*`).
			WithArgs(jobID, 1).
			WillReturnRows(rows)

		job, err := repo.Claim(context.Background(), jobID)

		require.NoError(t, err)
		assert.Equal(t, syncdomain.JobStatusProcessing, job.Status)
		assert.Equal(t, syncdomain.TriggerWebhook, job.Trigger)
		assert.Equal(t, 100, job.Config.BatchSize)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("loses the claim when the row is no longer pending", func(t *testing.T) {
		db, mock, mockDB := newMockDB(t)
		defer mockDB.Close()
		repo := NewGormJobRepository(db)

		mock.ExpectExec(`UPDATE "sync_jobs" SET .* WHERE id = \$\d+ AND status = \$\d+`).
			WillReturnResult(sqlmock.NewResult(0, 0))

		job, err := repo.Claim(context.Background(), uuid.New())

		assert.Nil(t, job)
		assert.ErrorIs(t, err, syncdomain.ErrJobNotClaimable)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGormJobRepository_FindByID(t *testing.T) {
	t.Run("returns ErrJobNotFound for missing job", func(t *testing.T) {
		db, mock, mockDB := newMockDB(t)
		defer mockDB.Close()
		repo := NewGormJobRepository(db)

		jobID := uuid.New()
		mock.ExpectQuery(`SELECT \* FROM "sync_jobs" WHERE id = \$1 ORDER BY .* LIMIT .*`).
			WithArgs(jobID, 1).
			WillReturnError(gorm.ErrRecordNotFound)

		job, err := repo.FindByID(context.Background(), jobID)

		assert.Nil(t, job)
		assert.ErrorIs(t, err, syncdomain.ErrJobNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGormJobRepository_Create(t *testing.T) {
	t.Run("rejects a second non-terminal job of the same type", func(t *testing.T) {
		db, mock, mockDB := newMockDB(t)
		defer mockDB.Close()
		repo := NewGormJobRepository(db)

		tenantID := uuid.New()
		job := syncdomain.NewSyncJob(tenantID, uuid.New(), syncdomain.JobTypeProducts, syncdomain.DirectionImport, syncdomain.DefaultConfiguration(tenantID))

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT count\(\*\) FROM "sync_jobs" WHERE tenant_id = \$\d+ AND type = \$\d+ AND status IN \(\$\d+,\$\d+\)`).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
		mock.ExpectRollback()

		err := repo.Create(context.Background(), job)

		assert.ErrorIs(t, err, syncdomain.ErrJobAlreadyRunning)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
