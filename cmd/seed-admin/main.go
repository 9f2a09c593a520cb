// seed-admin creates or updates the initial lecturer account so a fresh
// deployment has someone who can resolve flagged records.
//
// Usage (from backend directory):
//   DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME=... \
//     SEED_USERNAME=... SEED_PASSWORD=... go run ./cmd/seed-admin
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/mmdatafocus/easytask_backend/config"
	"github.com/mmdatafocus/easytask_backend/models"
	"github.com/mmdatafocus/easytask_backend/utils"
	"gorm.io/gorm"
)

const (
	defaultUsername = "lecturer"
	defaultName     = "Course Lecturer"
)

func main() {
	ctx := context.Background()
	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil). Set DB_* env vars.")
		os.Exit(1)
	}
	models.MigrateTable()

	username := os.Getenv("SEED_USERNAME")
	if username == "" {
		username = defaultUsername
	}
	password := os.Getenv("SEED_PASSWORD")
	if password == "" {
		fmt.Fprintln(os.Stderr, "SEED_PASSWORD is required")
		os.Exit(1)
	}
	name := os.Getenv("SEED_NAME")
	if name == "" {
		name = defaultName
	}

	hashed, err := utils.HashPassword(password)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to hash password: %v\n", err)
		os.Exit(1)
	}
	hashedStr := string(hashed)

	var existing models.User
	err = db.WithContext(ctx).Model(&models.User{}).Where("username = ?", username).First(&existing).Error
	if err != nil {
		if err != gorm.ErrRecordNotFound {
			fmt.Fprintf(os.Stderr, "failed to lookup user: %v\n", err)
			os.Exit(1)
		}
		u := models.User{
			Username: username,
			Name:     name,
			Password: hashedStr,
			IsActive: utils.NewTrue(),
			Role:     models.UserRoleLecturer,
		}
		if err := db.WithContext(ctx).Create(&u).Error; err != nil {
			fmt.Fprintf(os.Stderr, "failed to create lecturer user: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Created lecturer user: username=%q\n", username)
		return
	}

	// Update existing user: ensure password and lecturer role.
	if err := db.WithContext(ctx).Model(&models.User{}).Where("username = ?", username).Updates(map[string]any{
		"password":  hashedStr,
		"name":      name,
		"is_active": utils.NewTrue(),
		"role":      models.UserRoleLecturer,
	}).Error; err != nil {
		fmt.Fprintf(os.Stderr, "failed to update lecturer user: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Updated lecturer user: username=%q\n", username)
}
