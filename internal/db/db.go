package db

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"booking-core-backend/config"
	"booking-core-backend/internal/model"
)

// Init opens the configured database, applies pool settings and runs migrations.
func Init(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "postgres":
		dialector = postgres.Open(cfg.DSN)
	case "sqlite":
		dialector = sqlite.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:  logger.New(log.New(os.Stdout, "\r\n", log.LstdFlags), logger.Config{SlowThreshold: 200 * time.Millisecond, LogLevel: logLevel(cfg.LogLevel), IgnoreRecordNotFoundError: true}),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	if cfg.Driver == "sqlite" {
		// sqlite allows one writer; a single connection makes transactions queue instead of failing with SQLITE_BUSY
		sqlDB.SetMaxOpenConns(1)
	} else {
		if cfg.MaxOpenConns > 0 {
			sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
		}
		if cfg.MaxIdleConns > 0 {
			sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
		}
		sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetimeMinutes) * time.Minute)
	}

	log.Println("Running database migrations...")
	if err := Migrate(db); err != nil {
		return nil, err
	}

	if cfg.Driver == "postgres" && cfg.EnableExclusionConstraint {
		log.Println("Applying reservation exclusion constraint...")
		if err := applyPostgresDDL(db); err != nil {
			log.Printf("Warning: failed to apply reservation constraints: %v. Continuing with row locks only.", err)
		}
	}

	log.Println("Database initialization complete.")
	return db, nil
}

// Migrate creates or updates every table.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&model.Resource{},
		&model.AvailabilityWindow{},
		&model.Blackout{},
		&model.Reservation{},
		&model.RescheduleAudit{},
		&model.Participant{},
		&model.AccessToken{},
		&model.PushSubscription{},
	); err != nil {
		return fmt.Errorf("automigrate failed: %w", err)
	}
	return nil
}

func logLevel(level string) logger.LogLevel {
	switch strings.ToLower(level) {
	case "silent":
		return logger.Silent
	case "error":
		return logger.Error
	case "info":
		return logger.Info
	default:
		return logger.Warn
	}
}

type constraintDDL struct {
	name string
	ddl  string
}

// applyPostgresDDL adds the constraints AutoMigrate cannot express.
// The exclusion constraint backs the row-lock check for capacity-1 resources.
func applyPostgresDDL(db *gorm.DB) error {
	if err := db.Exec("CREATE EXTENSION IF NOT EXISTS btree_gist;").Error; err != nil {
		return fmt.Errorf("DDL failed on btree_gist: %w", err)
	}

	constraints := []constraintDDL{
		{
			name: "reservations_interval_valid",
			ddl:  "ALTER TABLE reservations ADD CONSTRAINT reservations_interval_valid CHECK (start_time < end_time);",
		},
		{
			name: "reservations_capacity_positive",
			ddl:  "ALTER TABLE reservations ADD CONSTRAINT reservations_capacity_positive CHECK (capacity_consumed >= 1);",
		},
		{
			name: "reservations_exclusive_no_overlap",
			ddl: "ALTER TABLE reservations ADD CONSTRAINT reservations_exclusive_no_overlap " +
				"EXCLUDE USING GIST (resource_id WITH =, tstzrange(start_time, end_time, '[)') WITH &&) " +
				"WHERE (exclusive AND status IN ('held', 'confirmed'));",
		},
	}
	for _, c := range constraints {
		exists, err := constraintExists(db, c.name)
		if err != nil {
			return err
		}
		if exists {
			continue
		}
		if err := db.Exec(c.ddl).Error; err != nil {
			return fmt.Errorf("DDL failed on %q: %w", c.name, err)
		}
	}

	index := "CREATE INDEX IF NOT EXISTS idx_reservations_period ON reservations " +
		"USING GIST (resource_id, tstzrange(start_time, end_time, '[)'));"
	if err := db.Exec(index).Error; err != nil {
		return fmt.Errorf("DDL failed on idx_reservations_period: %w", err)
	}
	return nil
}

func constraintExists(db *gorm.DB, name string) (bool, error) {
	var n int64
	if err := db.Raw("SELECT count(*) FROM pg_constraint WHERE conname = ?", name).Scan(&n).Error; err != nil {
		return false, fmt.Errorf("failed to look up constraint %s: %w", name, err)
	}
	return n > 0, nil
}
