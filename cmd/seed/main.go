// seed inserts development sample data for local testing.
// Idempotent: skips inserts if the admin user already exists.
package main

import (
	"context"
	"log"
	"time"

	"watchtrack/backend/internal/config"
	"watchtrack/backend/internal/db"
	"watchtrack/backend/internal/security"
	userdomain "watchtrack/backend/internal/user/domain"
	userrepo "watchtrack/backend/internal/user/repository"
	watchlistdomain "watchtrack/backend/internal/watchlist/domain"
	watchlistrepo "watchtrack/backend/internal/watchlist/repository"
)

const (
	adminUsername = "admin"
	adminPassword = "password123"
	demoUsername  = "demo"
	demoPassword  = "password123"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
	}

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer conn.Close()

	ctx := context.Background()
	users := userrepo.NewPostgresRepository(conn)

	existing, err := users.GetByUsername(ctx, adminUsername)
	if err != nil {
		log.Fatalf("seed: %v", err)
	}
	if existing != nil {
		log.Println("seed: admin user already exists, nothing to do")
		return
	}

	hasher := security.NewHasher(cfg.BcryptCost)

	admin := seedUser(ctx, users, hasher, adminUsername, adminPassword, "Admin", userdomain.RoleAdmin)
	demo := seedUser(ctx, users, hasher, demoUsername, demoPassword, "Demo", userdomain.RoleUser)
	log.Printf("seed: created users admin (id=%d) and demo (id=%d)", admin.ID, demo.ID)

	items := watchlistrepo.NewPostgresRepository(conn)
	for _, item := range []*watchlistdomain.Item{
		{UserID: demo.ID, TMDBID: 603, Title: "The Matrix", Status: watchlistdomain.StatusWatched},
		{UserID: demo.ID, TMDBID: 27205, Title: "Inception", Status: watchlistdomain.StatusToWatch},
	} {
		item.CreatedAt = time.Now().UTC()
		if err := items.Create(ctx, item); err != nil {
			log.Fatalf("seed: %v", err)
		}
	}
	log.Println("seed: created demo watchlist items")
}

func seedUser(ctx context.Context, users *userrepo.PostgresRepository, hasher *security.Hasher, username, password, displayName, role string) *userdomain.User {
	hashed, err := hasher.Hash([]byte(password))
	if err != nil {
		log.Fatalf("seed: %v", err)
	}
	u := &userdomain.User{
		Username:     username,
		PasswordHash: hashed,
		DisplayName:  displayName,
		Role:         role,
		CreatedAt:    time.Now().UTC(),
	}
	if err := users.Create(ctx, u); err != nil {
		log.Fatalf("seed: %v", err)
	}
	return u
}
