package db

import (
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"booking-core-backend/config"
	"booking-core-backend/internal/model"
)

func TestInit_SQLite(t *testing.T) {
	gormDB, err := Init(&config.DatabaseConfig{
		Driver:   "sqlite",
		DSN:      "file:" + uuid.NewString() + "?mode=memory&cache=shared",
		LogLevel: "silent",
	})
	require.NoError(t, err)

	for _, table := range []any{&model.Resource{}, &model.AvailabilityWindow{}, &model.Reservation{}, &model.RescheduleAudit{}, &model.Participant{}, &model.AccessToken{}} {
		assert.True(t, gormDB.Migrator().HasTable(table))
	}
	assert.True(t, gormDB.Migrator().HasColumn(&model.Reservation{}, "meeting_url"))
}

func TestInit_UnknownDriver(t *testing.T) {
	_, err := Init(&config.DatabaseConfig{Driver: "oracle"})
	assert.Error(t, err)
}

func TestApplyPostgresDDL(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{})
	require.NoError(t, err)

	countQuery := regexp.QuoteMeta(`SELECT count(*) FROM pg_constraint WHERE conname = $1`)

	mock.ExpectExec(regexp.QuoteMeta(`CREATE EXTENSION IF NOT EXISTS btree_gist`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(countQuery).WithArgs("reservations_interval_valid").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(countQuery).WithArgs("reservations_capacity_positive").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec(regexp.QuoteMeta(`ADD CONSTRAINT reservations_capacity_positive`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(countQuery).WithArgs("reservations_exclusive_no_overlap").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec(regexp.QuoteMeta(`EXCLUDE USING GIST (resource_id WITH =, tstzrange(start_time, end_time, '[)') WITH &&)`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(`CREATE INDEX IF NOT EXISTS idx_reservations_period`)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, applyPostgresDDL(gormDB))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLogLevel(t *testing.T) {
	testCases := []struct {
		in   string
		want logger.LogLevel
	}{
		{"silent", logger.Silent},
		{"ERROR", logger.Error},
		{"info", logger.Info},
		{"warn", logger.Warn},
		{"", logger.Warn},
	}
	for _, tc := range testCases {
		assert.Equal(t, tc.want, logLevel(tc.in), tc.in)
	}
}
