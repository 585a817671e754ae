package profiles

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/subsage-app/subsage-backend/pkg/db/models"
	"github.com/subsage-app/subsage-backend/pkg/enums"
	pkgerrors "github.com/subsage-app/subsage-backend/pkg/errors"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:profiles_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.Profile{}); err != nil {
		t.Fatalf("migrate profiles: %v", err)
	}
	return db
}

func newTestService(t *testing.T) (Service, *gorm.DB) {
	t.Helper()
	db := newTestDB(t)
	svc, err := NewService(ServiceParams{ProfileRepo: NewRepository(db)})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc, db
}

func TestGetOrCreateCreatesFreeProfile(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	ctx := context.Background()
	userID := uuid.New()

	profile, err := svc.GetOrCreate(ctx, userID, "alex@example.com")
	if err != nil {
		t.Fatalf("get or create: %v", err)
	}
	if profile.UserID != userID {
		t.Fatalf("unexpected user id %s", profile.UserID)
	}
	if profile.SubscriptionTier != enums.SubscriptionTierFree {
		t.Fatalf("expected free tier, got %s", profile.SubscriptionTier)
	}
	if profile.DodoCustomerID != nil {
		t.Fatalf("expected no customer id on a fresh profile")
	}

	// A second call returns the same row rather than inserting again.
	again, err := svc.GetOrCreate(ctx, userID, "alex@example.com")
	if err != nil {
		t.Fatalf("get or create again: %v", err)
	}
	if again.ID != profile.ID {
		t.Fatalf("expected same profile, got %s and %s", profile.ID, again.ID)
	}
}

func TestGetNotFound(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	_, err := svc.Get(context.Background(), uuid.New())
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestActivateProRecordsProviderIDs(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	ctx := context.Background()
	userID := uuid.New()

	if _, err := svc.GetOrCreate(ctx, userID, "alex@example.com"); err != nil {
		t.Fatalf("seed profile: %v", err)
	}
	if err := svc.ActivatePro(ctx, userID, "cus_1", "sub_1"); err != nil {
		t.Fatalf("activate pro: %v", err)
	}

	profile, err := svc.Get(ctx, userID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if profile.SubscriptionTier != enums.SubscriptionTierPro {
		t.Fatalf("expected pro tier, got %s", profile.SubscriptionTier)
	}
	if profile.DodoCustomerID == nil || *profile.DodoCustomerID != "cus_1" {
		t.Fatalf("customer id not recorded: %+v", profile)
	}
	if profile.DodoSubscriptionID == nil || *profile.DodoSubscriptionID != "sub_1" {
		t.Fatalf("subscription id not recorded: %+v", profile)
	}
}

func TestDowngradeKeepsProviderIDs(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	ctx := context.Background()
	userID := uuid.New()

	if _, err := svc.GetOrCreate(ctx, userID, "alex@example.com"); err != nil {
		t.Fatalf("seed profile: %v", err)
	}
	if err := svc.ActivatePro(ctx, userID, "cus_1", "sub_1"); err != nil {
		t.Fatalf("activate pro: %v", err)
	}
	if err := svc.Downgrade(ctx, userID); err != nil {
		t.Fatalf("downgrade: %v", err)
	}

	profile, err := svc.Get(ctx, userID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if profile.SubscriptionTier != enums.SubscriptionTierFree {
		t.Fatalf("expected free tier after downgrade, got %s", profile.SubscriptionTier)
	}
	if profile.DodoCustomerID == nil || *profile.DodoCustomerID != "cus_1" {
		t.Fatalf("customer id should survive downgrade: %+v", profile)
	}
}

func TestActivateProUnknownUser(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	err := svc.ActivatePro(context.Background(), uuid.New(), "cus_1", "sub_1")
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}
