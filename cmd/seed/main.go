// Command seed creates the schema and fills an empty catalog with the
// launch museums, bundles and an admin account.
//
//	go run ./cmd/seed          # seed when the museum table is empty
//	go run ./cmd/seed -reset   # wipe every table first
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"github.com/iliyamo/museum-tour-access/internal/config"
	"github.com/iliyamo/museum-tour-access/internal/database"
	"github.com/iliyamo/museum-tour-access/internal/model"
	"github.com/iliyamo/museum-tour-access/internal/repository"
)

func main() {
	reset := flag.Bool("reset", false, "delete all rows before seeding")
	flag.Parse()

	config.LoadDotEnv()
	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("seed: database: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if err := database.Migrate(ctx, db); err != nil {
		log.Fatalf("seed: migrate: %v", err)
	}
	if *reset {
		if err := database.Reset(ctx, db); err != nil {
			log.Fatalf("seed: reset: %v", err)
		}
		log.Printf("seed: tables cleared")
	}

	museums := repository.NewMuseumRepo(db)
	bundles := repository.NewBundleRepo(db)
	users := repository.NewUserRepo(db)

	if err := seedAdmin(ctx, users, cfg.BcryptCost); err != nil {
		log.Fatalf("seed: admin: %v", err)
	}

	n, err := museums.Count(ctx)
	if err != nil {
		log.Fatalf("seed: %v", err)
	}
	if n > 0 {
		log.Printf("seed: catalog already has %d museums, skipping", n)
		return
	}
	if err := seedCatalog(ctx, museums, bundles); err != nil {
		log.Fatalf("seed: catalog: %v", err)
	}
	log.Printf("seed: done")
}

// seedAdmin creates the admin account from SEED_ADMIN_* variables unless
// an admin already exists.  Without SEED_ADMIN_PASSWORD no account is
// created.
func seedAdmin(ctx context.Context, users *repository.UserRepo, cost int) error {
	n, err := users.CountByRole(ctx, model.RoleAdmin)
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	password := os.Getenv("SEED_ADMIN_PASSWORD")
	if password == "" {
		log.Printf("seed: SEED_ADMIN_PASSWORD not set, no admin created")
		return nil
	}
	id, err := users.Create(ctx, repository.NewUser{
		Username: envOr("SEED_ADMIN_USERNAME", "admin"),
		Email:    envOr("SEED_ADMIN_EMAIL", "admin@example.com"),
		Name:     "Admin User",
		Password: password,
		Role:     model.RoleAdmin,
	}, cost)
	if err != nil {
		return err
	}
	log.Printf("seed: created admin user %d", id)
	return nil
}

func seedCatalog(ctx context.Context, museums *repository.MuseumRepo, bundles *repository.BundleRepo) error {
	ids := make([]uint64, 0, len(launchMuseums))
	for i := range launchMuseums {
		m := launchMuseums[i]
		if err := museums.Create(ctx, &m); err != nil {
			return err
		}
		ids = append(ids, m.ID)
	}
	log.Printf("seed: created %d museums", len(ids))

	// The pioneer pass covers the first two museums, the all-access pass
	// every museum.
	for _, lb := range launchBundles {
		b := lb.bundle
		if err := bundles.Create(ctx, &b); err != nil {
			return err
		}
		members := ids
		if lb.firstN > 0 && lb.firstN < len(ids) {
			members = ids[:lb.firstN]
		}
		for _, mid := range members {
			if _, err := bundles.AddMuseum(ctx, b.ID, mid); err != nil {
				return err
			}
		}
	}
	log.Printf("seed: created %d bundles", len(launchBundles))
	return nil
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
