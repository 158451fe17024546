// Command seed bootstraps a development database with a demo user and
// product so the lifecycle endpoints have something to operate on.
package main

import (
	"errors"
	"log"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/widgetworks/service-subscription/internal/config"
	"github.com/widgetworks/service-subscription/internal/database"
	"github.com/widgetworks/service-subscription/internal/logger"
	"github.com/widgetworks/service-subscription/internal/repository"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	zapLogger, err := logger.NewNamed(cfg.AppEnv, "seed")
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer zapLogger.Sync()

	db, err := database.Connect(database.PostgresConfig{
		Host:     cfg.DBConfig.Host,
		Port:     cfg.DBConfig.Port,
		User:     cfg.DBConfig.User,
		Password: cfg.DBConfig.Password,
		DBName:   cfg.DBConfig.DBName,
		SSLMode:  cfg.DBConfig.SSLMode,
	}, zapLogger)
	if err != nil {
		zapLogger.Fatal("failed to connect to database", zap.Error(err))
	}

	if err := db.AutoMigrate(
		&repository.AddressModel{},
		&repository.UserModel{},
		&repository.ProductModel{},
		&repository.SubscriptionModel{},
		&repository.TransactionModel{},
	); err != nil {
		zapLogger.Fatal("failed to auto-migrate", zap.Error(err))
	}

	now := time.Now().UTC()

	// Upsert on natural keys so the seed can run repeatedly.
	var existing repository.UserModel
	err = db.Where("email = ?", "foo@example.com").First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		billing := repository.AddressModel{
			ID:         uuid.New(),
			Addr1:      "123 Mountain Town Rd",
			City:       "Hudson",
			State:      "NY",
			Country:    "USA",
			PostalCode: "12345",
			CreatedAt:  now,
		}
		if err := db.Create(&billing).Error; err != nil {
			zapLogger.Fatal("failed to seed billing address", zap.Error(err))
		}
		jane := repository.UserModel{
			ID:               uuid.New(),
			Email:            "foo@example.com",
			FirstName:        "Jane",
			LastName:         "Lynch",
			Phone:            "518-555-1212",
			BillingAddressID: billing.ID,
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		if err := db.Create(&jane).Error; err != nil {
			zapLogger.Fatal("failed to seed user", zap.Error(err))
		}
		zapLogger.Info("seeded user", zap.String("email", jane.Email))
	} else if err != nil {
		zapLogger.Fatal("failed to check existing user", zap.Error(err))
	}

	widget := repository.ProductModel{
		ID:          uuid.New(),
		SKU:         "12345",
		Slug:        "widget_1",
		Description: "The Widget to Rule Them All",
		State:       "GA",
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "slug"}},
		DoNothing: true,
	}).Create(&widget).Error; err != nil {
		zapLogger.Fatal("failed to seed product", zap.Error(err))
	}

	zapLogger.Info("seed completed")
}
