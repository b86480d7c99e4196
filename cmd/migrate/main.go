package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"support-chat/config"
	"support-chat/internal/repository"
	"support-chat/pkg/database"
)

const usage = `
Support Chat - Database CLI Tool

Usage:
  migrate [flags] [command]

Commands:
  up          Create or update all tables
  status      Show database connection status
  seed        Make sure an admin account exists
  seed-dev    Seed an admin and demo customers
  truncate    Delete every row from every table (DANGEROUS)

Flags:
  -admin-email string  Admin email for seeding (default "admin@support.chat")
  -admin-pass string   Admin password for seeding (default "Admin@123!")
  -users int           Demo customers created by seed-dev (default 3)

Examples:
  go run ./cmd/migrate up
  go run ./cmd/migrate -admin-email ops@example.com -admin-pass 'S3cret!pw' seed
  go run ./cmd/migrate seed-dev
`

func main() {
	adminEmail := flag.String("admin-email", "admin@support.chat", "Admin email for seeding")
	adminPass := flag.String("admin-pass", "Admin@123!", "Admin password for seeding")
	userCount := flag.Int("users", 3, "Demo customers created by seed-dev")

	flag.Usage = func() {
		fmt.Print(usage)
	}
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(1)
	}

	command := flag.Arg(0)

	cfg := config.LoadConfig()
	database.Connect(cfg)
	defer database.Close()

	switch command {
	case "up":
		runMigrationsUp()
	case "status":
		showStatus()
	case "seed":
		runSeedProduction(*adminEmail, *adminPass)
	case "seed-dev":
		runSeedDevelopment(*userCount)
	case "truncate":
		runTruncate()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		flag.Usage()
		os.Exit(1)
	}
}

func runMigrationsUp() {
	log.Println("🚀 Running migrations UP...")

	if err := repository.InitSchema(database.DB); err != nil {
		log.Fatalf("❌ Migration failed: %v", err)
	}

	log.Println("✅ Migrations completed successfully!")
}

func showStatus() {
	log.Println("🔍 Checking database status...")

	if err := database.Ping(); err != nil {
		log.Fatalf("❌ Database connection failed: %v", err)
	}
	log.Println("✅ Database connection: OK")

	for _, table := range []string{"users", "user_sessions", "conversations", "messages"} {
		if !database.TableExists(table) {
			log.Printf("❌ Table %-15s does not exist", table)
			continue
		}
		count, err := database.GetTableCount(table)
		if err != nil {
			log.Printf("⚠️  Error counting table %s: %v", table, err)
			continue
		}
		log.Printf("✅ Table %-15s exists (%d rows)", table, count)
	}

	if err := database.HealthCheck(); err != nil {
		log.Printf("⚠️  Health check warning: %v", err)
	} else {
		log.Println("✅ Health check: PASSED")
	}
}

func runSeedProduction(adminEmail, adminPass string) {
	log.Println("🌱 Seeding database (production mode)...")

	admin, err := database.SeedProduction(database.DB, adminEmail, adminPass)
	if err != nil {
		log.Fatalf("❌ Seeding failed: %v", err)
	}

	log.Printf("✅ Admin user created/verified: %s (ID: %s)", admin.Email, admin.ID)
	log.Println("✅ Production seeding completed!")
}

func runSeedDevelopment(userCount int) {
	log.Println("🌱 Seeding database (development mode)...")

	result, err := database.SeedDevelopment(database.DB, userCount)
	if err != nil {
		log.Fatalf("❌ Seeding failed: %v", err)
	}

	log.Println("📊 Seed Summary:")
	log.Printf("   - Admin user: %s", result.AdminUser.Email)
	log.Printf("   - Test users: %d", len(result.TestUsers))
	log.Println("✅ Development seeding completed!")
}

func runTruncate() {
	log.Println("⚠️  WARNING: This will delete every row!")

	if err := repository.TruncateAll(database.DB); err != nil {
		log.Fatalf("❌ Truncate failed: %v", err)
	}

	log.Println("✅ All tables truncated!")
}
