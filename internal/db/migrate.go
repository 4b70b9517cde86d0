package db

import (
	"os"

	"github.com/aabhushan/aabhushan-backend/internal/app/model"
	"github.com/aabhushan/aabhushan-backend/pkg/logger"
	"github.com/aabhushan/aabhushan-backend/pkg/util"
)

// Migrate runs database migrations
func Migrate() error {
	logger.Info("Running database migrations...")

	models := []interface{}{
		&model.User{},
		&model.Category{},
		&model.SubCategory{},
		&model.Product{},
		&model.ProductImage{},
		&model.Cart{},
		&model.CartItem{},
		&model.Order{},
		&model.OrderItem{},
		&model.Address{},
		&model.Review{},
		&model.ReviewImage{},
	}

	if err := DB.AutoMigrate(models...); err != nil {
		logger.Error("Failed to run migrations", err)
		return err
	}

	logger.Info("Database migrations completed successfully", map[string]interface{}{
		"models_count": len(models),
	})
	return nil
}

// Seed adds initial data to the database (optional)
func Seed() error {
	return seedAdminAccount()
}

// seedAdminAccount creates the default admin panel account if none exists.
// Credentials come from ADMIN_EMAIL / ADMIN_PASSWORD at deploy time; the
// fallback is only for local development.
func seedAdminAccount() error {
	var count int64
	if err := DB.Model(&model.User{}).Where("role = ?", model.RoleAdmin).Count(&count).Error; err != nil {
		return err
	}

	if count > 0 {
		logger.Info("Admin account already seeded, skipping...", map[string]interface{}{
			"existing_count": count,
		})
		return nil
	}

	hash, err := util.HashPassword(getSeedEnv("ADMIN_PASSWORD", "admin1234"))
	if err != nil {
		return err
	}

	admin := &model.User{
		Phone:        getSeedEnv("ADMIN_PHONE", "9000000000"),
		Name:         "Administrator",
		Email:        getSeedEnv("ADMIN_EMAIL", "admin@aabhushan.local"),
		PasswordHash: hash,
		Role:         model.RoleAdmin,
	}

	if err := DB.Create(admin).Error; err != nil {
		logger.Error("Failed to seed admin account", err)
		return err
	}

	logger.Info("Admin account seeded successfully", map[string]interface{}{
		"email": admin.Email,
	})
	return nil
}

func getSeedEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
