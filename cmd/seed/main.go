// Command seed loads districts, sirens and operator accounts from a YAML
// fixture file. Rows are upserted by id, so reruns are safe. Relay-owned
// columns (status, playing, last_checked) are only set on insert.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"

	"github.com/sirenwatch/siren-backend/internal/utils"
)

var (
	fixturePath = flag.String("file", "fixtures.yaml", "Path to the YAML fixture file")
	dsn         = flag.String("dsn", "", "Postgres DSN (default: env DATABASE_URL)")
	dryRun      = flag.Bool("dry-run", false, "Parse + validate only; no DB writes")
	advisoryKey = flag.Int64("advisory-lock", 0, "Optional Postgres advisory lock key. 0 = disabled")
)

func main() {
	_ = godotenv.Load(".env.local")
	flag.Parse()
	if *dsn == "" {
		*dsn = os.Getenv("DATABASE_URL")
	}

	fx, err := loadFixtures(*fixturePath)
	if err != nil {
		fatalf("load fixtures: %v", err)
	}
	if err := fx.validate(); err != nil {
		fatalf("fixture validation failed:\n%v", err)
	}

	fmt.Printf("Loaded %d districts, %d sirens, %d users from %s\n",
		len(fx.Districts), len(fx.Sirens), len(fx.Users), *fixturePath)

	if *dryRun {
		printPlan(fx)
		fmt.Println("Dry run complete. No changes made.")
		return
	}
	if *dsn == "" {
		fatalf("--dsn not provided and DATABASE_URL not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	db, err := sql.Open("pgx", *dsn)
	if err != nil {
		fatalf("connect: %v", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		fatalf("ping: %v", err)
	}

	tx, err := db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		fatalf("begin tx: %v", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if *advisoryKey != 0 {
		if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, *advisoryKey); err != nil {
			fatalf("advisory lock: %v", err)
		}
	}

	if err := upsertDistricts(ctx, tx, fx.Districts); err != nil {
		fatalf("upsert districts: %v", err)
	}
	if err := upsertSirens(ctx, tx, fx.Sirens); err != nil {
		fatalf("upsert sirens: %v", err)
	}
	if err := upsertUsers(ctx, tx, fx.Users); err != nil {
		fatalf("upsert users: %v", err)
	}

	if err := tx.Commit(); err != nil {
		fatalf("commit: %v", err)
	}
	fmt.Println("Seed complete")
}

func printPlan(fx *Fixtures) {
	for _, d := range fx.Districts {
		fmt.Printf("  district %-12s %-20s blocks=%v\n", d.ID, d.Name, d.Blocks)
	}
	for _, s := range fx.Sirens {
		fmt.Printf("  siren    %-12s %-20s %s/%s (%.5f,%.5f)\n",
			s.ID, s.Name, s.District, s.Block, s.Location.Lat, s.Location.Lng)
	}
	for _, u := range fx.Users {
		fmt.Printf("  user     %-12s role=%s\n", u.Username, roleOrDefault(u.Role))
	}
}

func upsertDistricts(ctx context.Context, tx *sql.Tx, ds []DistrictFixture) error {
	const q = `
INSERT INTO siren.districts (id, name, blocks, created_at, updated_at)
VALUES ($1, $2, $3, now(), now())
ON CONFLICT (id) DO UPDATE
SET name = EXCLUDED.name, blocks = EXCLUDED.blocks, updated_at = now()`

	for _, d := range ds {
		if _, err := tx.ExecContext(ctx, q, d.ID, d.Name, nonNil(d.Blocks)); err != nil {
			return fmt.Errorf("district %s: %w", d.ID, err)
		}
	}
	return nil
}

func upsertSirens(ctx context.Context, tx *sql.Tx, ss []SirenFixture) error {
	const q = `
INSERT INTO siren.sirens
  (id, name, location_lat, location_lng, playing, types, status, last_checked,
   district, block, parent_site, color, labels, created_at, updated_at)
VALUES ($1, $2, $3, $4, false, $5, 'inactive', now(), $6, $7, $8, $9, $10, now(), now())
ON CONFLICT (id) DO UPDATE
SET name = EXCLUDED.name,
    location_lat = EXCLUDED.location_lat,
    location_lng = EXCLUDED.location_lng,
    types = EXCLUDED.types,
    district = EXCLUDED.district,
    block = EXCLUDED.block,
    parent_site = EXCLUDED.parent_site,
    color = EXCLUDED.color,
    labels = EXCLUDED.labels,
    updated_at = now()`

	for _, s := range ss {
		_, err := tx.ExecContext(ctx, q,
			s.ID, s.Name, s.Location.Lat, s.Location.Lng, nonNil(s.Type),
			s.District, s.Block, s.ParentSite, s.Color, nonNil(s.Labels))
		if err != nil {
			return fmt.Errorf("siren %s: %w", s.ID, err)
		}
	}
	return nil
}

func upsertUsers(ctx context.Context, tx *sql.Tx, us []UserFixture) error {
	const q = `
INSERT INTO siren_auth.users (user_id, username, email, name, hashed_password, role, created_at)
VALUES ($1, $2, $3, $4, $5, $6, now())
ON CONFLICT (username) DO UPDATE
SET email = EXCLUDED.email,
    name = EXCLUDED.name,
    hashed_password = EXCLUDED.hashed_password,
    role = EXCLUDED.role`

	for _, u := range us {
		password := os.Getenv(u.PasswordEnv)
		if password == "" {
			return fmt.Errorf("user %s: %s is not set", u.Username, u.PasswordEnv)
		}
		hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("user %s: hash password: %w", u.Username, err)
		}
		_, err = tx.ExecContext(ctx, q,
			utils.GenerateUUID(), u.Username, u.Email, u.Name, string(hashed), roleOrDefault(u.Role))
		if err != nil {
			return fmt.Errorf("user %s: %w", u.Username, err)
		}
	}
	return nil
}

func roleOrDefault(role string) string {
	if role == "" {
		return "user"
	}
	return role
}

func nonNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}
