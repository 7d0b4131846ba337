package db

import (
	"fmt"
	"log"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"makerspace-reservation-backend/config"
	"makerspace-reservation-backend/internal/model"
)

// Init initializes the database connection and runs migrations.
func Init(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetimeMinutes) * time.Minute)

	log.Println("Running database migrations...")
	if err := Migrate(db); err != nil {
		return nil, err
	}

	if cfg.EnableExclusionDDL {
		log.Println("Applying postgres interval-index DDL...")
		if err := applyExclusionDDL(db); err != nil {
			return nil, err
		}
	}

	log.Println("Database initialization complete.")
	return db, nil
}

// Migrate creates or updates the schema for every reservation entity.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&model.MachineType{},
		&model.Machine{},
		&model.ReservationRule{},
		&model.Quota{},
		&model.Reservation{},
		&model.MachineUsageRule{},
	); err != nil {
		return fmt.Errorf("automigrate failed: %w", err)
	}
	return nil
}

// applyExclusionDDL backs the row-lock overlap check with a GIST index over
// the reservation interval, so concurrent writers that slip past the
// advisory path still cannot commit overlapping rows.
func applyExclusionDDL(db *gorm.DB) error {
	ddls := []string{
		"CREATE EXTENSION IF NOT EXISTS btree_gist;",

		"ALTER TABLE reservations DROP CONSTRAINT IF EXISTS reservations_interval_valid;",
		"ALTER TABLE reservations " +
			"ADD CONSTRAINT reservations_interval_valid CHECK (start_time < end_time);",

		"ALTER TABLE reservations DROP CONSTRAINT IF EXISTS reservations_no_overlap;",
		"ALTER TABLE reservations " +
			"ADD CONSTRAINT reservations_no_overlap EXCLUDE USING GIST " +
			"(machine_id WITH =, tstzrange(start_time, end_time, '[)') WITH &&);",
	}

	for _, ddl := range ddls {
		if err := db.Exec(ddl).Error; err != nil {
			return fmt.Errorf("DDL failed on %q: %w", ddl, err)
		}
	}
	return nil
}
