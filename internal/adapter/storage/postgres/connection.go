package postgres

import (
	"fmt"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/gridwatt/csms-core/internal/domain"
)

// NewConnection initializes a new PostgreSQL connection using GORM.
func NewConnection(url string, logQueries bool, log *zap.Logger) (*gorm.DB, error) {
	level := logger.Warn
	if logQueries {
		level = logger.Info
	}

	db, err := gorm.Open(postgres.Open(url), &gorm.Config{
		Logger: logger.Default.LogMode(level),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)

	log.Info("Successfully connected to PostgreSQL")
	return db, nil
}

// RunMigrations creates the tables this core owns. Account tables are owned
// by the billing schema and only read here, so they are migrated as well for
// local development but treated as external in production deploys.
func RunMigrations(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.ChargePoint{},
		&domain.ChargingSession{},
		&domain.ChargingTransaction{},
		&domain.ChargingService{},
		&domain.OutboxEvent{},
		&individualAccount{},
		&businessAccount{},
	)
}

func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
