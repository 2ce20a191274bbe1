package sirens_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/sirenwatch/siren-backend/internal/db"
	"github.com/sirenwatch/siren-backend/internal/sirens"
)

var dbAvailable bool

func TestMain(m *testing.M) {
	_ = godotenv.Load("../../.env.local")

	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		os.Exit(m.Run())
	}

	if err := db.Connect(databaseURL); err != nil {
		fmt.Fprintln(os.Stderr, "connect:", err)
		os.Exit(1)
	}
	if err := sirens.Init(); err != nil {
		fmt.Fprintln(os.Stderr, "init:", err)
		os.Exit(1)
	}
	dbAvailable = true

	os.Exit(m.Run())
}

func createTestSiren(t *testing.T) sirens.Siren {
	t.Helper()
	if !dbAvailable {
		t.Skip("skipping integration test (requires DATABASE_URL)")
	}

	s := sirens.Siren{
		ID:          "test-" + uuid.New().String()[:8],
		Name:        "Integration Siren",
		Location:    sirens.Location{Lat: 18.5, Lng: 73.8},
		Status:      sirens.StatusInactive,
		LastChecked: time.Now().UTC(),
		District:    "Pune",
		Block:       "Haveli",
		ParentSite:  "Haveli",
		Color:       "#000000",
	}
	if err := db.DB.Create(&s).Error; err != nil {
		t.Fatalf("create siren: %v", err)
	}
	t.Cleanup(func() {
		db.DB.Delete(&sirens.Siren{}, "id = ?", s.ID)
	})
	return s
}

func TestStoreUpdateState(t *testing.T) {
	s := createTestSiren(t)
	store := sirens.NewStore(db.DB)
	ctx := context.Background()

	at := time.Now().UTC().Truncate(time.Millisecond)
	if err := store.UpdateState(ctx, s.ID, sirens.StatePatch{Status: sirens.StatusActive, LastChecked: at}); err != nil {
		t.Fatalf("UpdateState: %v", err)
	}

	playing := true
	if err := store.UpdateState(ctx, s.ID, sirens.StatePatch{Playing: &playing, LastChecked: at.Add(time.Second)}); err != nil {
		t.Fatalf("UpdateState playing: %v", err)
	}

	got, err := store.Find(ctx, s.ID)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if got.Status != sirens.StatusActive {
		t.Errorf("status = %s, want active (playing patch must not touch it)", got.Status)
	}
	if !got.Playing {
		t.Error("playing not persisted")
	}
	if !got.LastChecked.Equal(at.Add(time.Second)) {
		t.Errorf("lastChecked = %v, want %v", got.LastChecked, at.Add(time.Second))
	}
}

func TestStoreSkipsStaleStatus(t *testing.T) {
	s := createTestSiren(t)
	store := sirens.NewStore(db.DB)
	ctx := context.Background()

	registeredAt := time.Now().UTC().Truncate(time.Microsecond)
	droppedAt := registeredAt.Add(time.Second)

	if err := store.UpdateState(ctx, s.ID, sirens.StatePatch{Status: sirens.StatusInactive, LastChecked: droppedAt}); err != nil {
		t.Fatalf("UpdateState disconnect: %v", err)
	}
	err := store.UpdateState(ctx, s.ID, sirens.StatePatch{Status: sirens.StatusActive, LastChecked: registeredAt})
	if !errors.Is(err, sirens.ErrStale) {
		t.Fatalf("late register err = %v, want ErrStale", err)
	}

	got, err := store.Find(ctx, s.ID)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if got.Status != sirens.StatusInactive {
		t.Errorf("status = %s, want inactive", got.Status)
	}
}

func TestStoreNotFound(t *testing.T) {
	if !dbAvailable {
		t.Skip("skipping integration test (requires DATABASE_URL)")
	}
	store := sirens.NewStore(db.DB)
	ctx := context.Background()

	err := store.UpdateState(ctx, "does-not-exist", sirens.StatePatch{Status: sirens.StatusActive, LastChecked: time.Now()})
	if !errors.Is(err, sirens.ErrNotFound) {
		t.Errorf("UpdateState err = %v, want ErrNotFound", err)
	}
	if _, err := store.Find(ctx, "does-not-exist"); !errors.Is(err, sirens.ErrNotFound) {
		t.Errorf("Find err = %v, want ErrNotFound", err)
	}
}

func TestStoreList(t *testing.T) {
	s := createTestSiren(t)
	list, err := sirens.NewStore(db.DB).List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	for _, got := range list {
		if got.ID == s.ID {
			return
		}
	}
	t.Errorf("List did not include %s", s.ID)
}
