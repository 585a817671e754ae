package subscriptions

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/subsage-app/subsage-backend/internal/billingcycle"
	"github.com/subsage-app/subsage-backend/internal/profiles"
	"github.com/subsage-app/subsage-backend/pkg/db/models"
	"github.com/subsage-app/subsage-backend/pkg/enums"
	pkgerrors "github.com/subsage-app/subsage-backend/pkg/errors"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:subscriptions_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.Profile{}, &models.Subscription{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func newTestService(t *testing.T) (Service, profiles.Service, *gorm.DB) {
	t.Helper()
	db := newTestDB(t)

	profileService, err := profiles.NewService(profiles.ServiceParams{
		ProfileRepo: profiles.NewRepository(db),
	})
	if err != nil {
		t.Fatalf("new profile service: %v", err)
	}

	svc, err := NewService(ServiceParams{
		SubscriptionRepo: NewRepository(db),
		ProfileService:   profileService,
		FreeTierLimit:    5,
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc, profileService, db
}

func seedUser(t *testing.T, profileService profiles.Service, tier enums.SubscriptionTier) uuid.UUID {
	t.Helper()
	ctx := context.Background()
	userID := uuid.New()
	if _, err := profileService.GetOrCreate(ctx, userID, "user@example.com"); err != nil {
		t.Fatalf("seed profile: %v", err)
	}
	if tier == enums.SubscriptionTierPro {
		if err := profileService.ActivatePro(ctx, userID, "cus_test", "sub_test"); err != nil {
			t.Fatalf("activate pro: %v", err)
		}
	}
	return userID
}

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func TestCreateAndGet(t *testing.T) {
	t.Parallel()

	svc, profileService, _ := newTestService(t)
	ctx := context.Background()
	userID := seedUser(t, profileService, enums.SubscriptionTierFree)

	created, err := svc.Create(ctx, userID, CreateInput{
		ServiceName:     "Netflix",
		Amount:          decimal.RequireFromString("15.49"),
		BillingCycle:    enums.BillingCycleMonthly,
		NextBillingDate: date(2024, time.April, 1),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.ID == uuid.Nil {
		t.Fatal("expected generated id")
	}
	if !created.IsActive {
		t.Fatal("new subscriptions start active")
	}

	loaded, err := svc.Get(ctx, userID, created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if loaded.ServiceName != "Netflix" {
		t.Fatalf("unexpected service name %q", loaded.ServiceName)
	}
	if !loaded.Amount.Equal(decimal.RequireFromString("15.49")) {
		t.Fatalf("unexpected amount %s", loaded.Amount)
	}
}

func TestCreateRejectsInvalidInput(t *testing.T) {
	t.Parallel()

	svc, profileService, _ := newTestService(t)
	ctx := context.Background()
	userID := seedUser(t, profileService, enums.SubscriptionTierFree)

	cases := []struct {
		name  string
		input CreateInput
	}{
		{"blank name", CreateInput{Amount: decimal.NewFromInt(5), BillingCycle: enums.BillingCycleMonthly, NextBillingDate: date(2024, time.April, 1)}},
		{"negative amount", CreateInput{ServiceName: "X", Amount: decimal.NewFromInt(-1), BillingCycle: enums.BillingCycleMonthly, NextBillingDate: date(2024, time.April, 1)}},
		{"zero date", CreateInput{ServiceName: "X", Amount: decimal.NewFromInt(5), BillingCycle: enums.BillingCycleMonthly}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Create(ctx, userID, tc.input)
			if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}

	_, err := svc.Create(ctx, userID, CreateInput{
		ServiceName:     "X",
		Amount:          decimal.NewFromInt(5),
		BillingCycle:    enums.BillingCycle("quarterly"),
		NextBillingDate: date(2024, time.April, 1),
	})
	if !errors.Is(err, billingcycle.ErrInvalidCycle) {
		t.Fatalf("expected invalid cycle error, got %v", err)
	}
}

func TestCreateAcceptsZeroAmount(t *testing.T) {
	t.Parallel()

	svc, profileService, _ := newTestService(t)
	ctx := context.Background()
	userID := seedUser(t, profileService, enums.SubscriptionTierFree)

	// Free trials are tracked at 0.00 until the first paid cycle.
	sub, err := svc.Create(ctx, userID, CreateInput{
		ServiceName:     "Trial",
		Amount:          decimal.Zero,
		BillingCycle:    enums.BillingCycleMonthly,
		NextBillingDate: date(2024, time.April, 1),
	})
	if err != nil {
		t.Fatalf("create with zero amount: %v", err)
	}
	if !sub.Amount.IsZero() {
		t.Fatalf("unexpected amount %s", sub.Amount)
	}
}

func TestFreeTierAdmission(t *testing.T) {
	t.Parallel()

	svc, profileService, _ := newTestService(t)
	ctx := context.Background()
	userID := seedUser(t, profileService, enums.SubscriptionTierFree)

	for i := 0; i < 5; i++ {
		if _, err := svc.Create(ctx, userID, CreateInput{
			ServiceName:     "Service",
			Amount:          decimal.NewFromInt(10),
			BillingCycle:    enums.BillingCycleMonthly,
			NextBillingDate: date(2024, time.April, 1),
		}); err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
	}

	_, err := svc.Create(ctx, userID, CreateInput{
		ServiceName:     "One too many",
		Amount:          decimal.NewFromInt(10),
		BillingCycle:    enums.BillingCycleMonthly,
		NextBillingDate: date(2024, time.April, 1),
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeForbidden {
		t.Fatalf("expected forbidden at the cap, got %v", err)
	}
}

func TestFreeTierAdmissionCountsInactive(t *testing.T) {
	t.Parallel()

	svc, profileService, _ := newTestService(t)
	ctx := context.Background()
	userID := seedUser(t, profileService, enums.SubscriptionTierFree)

	var last *models.Subscription
	for i := 0; i < 5; i++ {
		sub, err := svc.Create(ctx, userID, CreateInput{
			ServiceName:     "Service",
			Amount:          decimal.NewFromInt(10),
			BillingCycle:    enums.BillingCycleMonthly,
			NextBillingDate: date(2024, time.April, 1),
		})
		if err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
		last = sub
	}

	// Deactivating does not free a slot; the cap is on rows held, so a
	// free user cannot hoard paused subscriptions past the limit.
	inactive := false
	if _, err := svc.Update(ctx, userID, last.ID, UpdateInput{IsActive: &inactive}); err != nil {
		t.Fatalf("deactivate: %v", err)
	}

	_, err := svc.Create(ctx, userID, CreateInput{
		ServiceName:     "One too many",
		Amount:          decimal.NewFromInt(10),
		BillingCycle:    enums.BillingCycleMonthly,
		NextBillingDate: date(2024, time.April, 1),
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeForbidden {
		t.Fatalf("expected forbidden after deactivation, got %v", err)
	}

	// Deleting the row does free the slot.
	if err := svc.Delete(ctx, userID, last.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := svc.Create(ctx, userID, CreateInput{
		ServiceName:     "Back under the cap",
		Amount:          decimal.NewFromInt(10),
		BillingCycle:    enums.BillingCycleMonthly,
		NextBillingDate: date(2024, time.April, 1),
	}); err != nil {
		t.Fatalf("expected create to pass after delete, got %v", err)
	}
}

func TestCanAddSubscription(t *testing.T) {
	t.Parallel()

	cases := []struct {
		tier  enums.SubscriptionTier
		count int64
		want  bool
	}{
		{enums.SubscriptionTierFree, 0, true},
		{enums.SubscriptionTierFree, 4, true},
		{enums.SubscriptionTierFree, 5, false},
		{enums.SubscriptionTierFree, 6, false},
		{enums.SubscriptionTierPro, 1000, true},
	}
	for _, tc := range cases {
		if got := canAddSubscription(tc.tier, tc.count, 5); got != tc.want {
			t.Errorf("canAddSubscription(%s, %d) = %v, want %v", tc.tier, tc.count, got, tc.want)
		}
	}
}

func TestProTierHasNoCap(t *testing.T) {
	t.Parallel()

	svc, profileService, _ := newTestService(t)
	ctx := context.Background()
	userID := seedUser(t, profileService, enums.SubscriptionTierPro)

	for i := 0; i < 7; i++ {
		if _, err := svc.Create(ctx, userID, CreateInput{
			ServiceName:     "Service",
			Amount:          decimal.NewFromInt(10),
			BillingCycle:    enums.BillingCycleMonthly,
			NextBillingDate: date(2024, time.April, 1),
		}); err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
	}
}

func TestListOrdersByNextBillingDate(t *testing.T) {
	t.Parallel()

	svc, profileService, _ := newTestService(t)
	ctx := context.Background()
	userID := seedUser(t, profileService, enums.SubscriptionTierPro)

	dates := []time.Time{
		date(2024, time.June, 15),
		date(2024, time.April, 1),
		date(2024, time.May, 20),
	}
	for _, d := range dates {
		if _, err := svc.Create(ctx, userID, CreateInput{
			ServiceName:     "Service",
			Amount:          decimal.NewFromInt(10),
			BillingCycle:    enums.BillingCycleMonthly,
			NextBillingDate: d,
		}); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	subs, err := svc.List(ctx, userID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(subs) != 3 {
		t.Fatalf("expected 3 subscriptions, got %d", len(subs))
	}
	for i := 1; i < len(subs); i++ {
		if subs[i].NextBillingDate.Before(subs[i-1].NextBillingDate) {
			t.Fatalf("list not sorted: %s before %s", subs[i].NextBillingDate, subs[i-1].NextBillingDate)
		}
	}
}

func TestOwnerScoping(t *testing.T) {
	t.Parallel()

	svc, profileService, _ := newTestService(t)
	ctx := context.Background()
	owner := seedUser(t, profileService, enums.SubscriptionTierFree)
	other := seedUser(t, profileService, enums.SubscriptionTierFree)

	created, err := svc.Create(ctx, owner, CreateInput{
		ServiceName:     "Spotify",
		Amount:          decimal.RequireFromString("9.99"),
		BillingCycle:    enums.BillingCycleMonthly,
		NextBillingDate: date(2024, time.April, 1),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := svc.Get(ctx, other, created.ID); pkgerrors.As(err) == nil || pkgerrors.As(err).Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found for foreign user, got %v", err)
	}
	if err := svc.Delete(ctx, other, created.ID); pkgerrors.As(err) == nil || pkgerrors.As(err).Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected delete to be scoped, got %v", err)
	}
	if _, err := svc.Get(ctx, owner, created.ID); err != nil {
		t.Fatalf("owner lost access: %v", err)
	}
}

func TestUpdatePartial(t *testing.T) {
	t.Parallel()

	svc, profileService, _ := newTestService(t)
	ctx := context.Background()
	userID := seedUser(t, profileService, enums.SubscriptionTierFree)

	created, err := svc.Create(ctx, userID, CreateInput{
		ServiceName:     "Spotify",
		Amount:          decimal.RequireFromString("9.99"),
		BillingCycle:    enums.BillingCycleMonthly,
		NextBillingDate: date(2024, time.April, 1),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	newAmount := decimal.RequireFromString("10.99")
	flagged := true
	updated, err := svc.Update(ctx, userID, created.ID, UpdateInput{
		Amount:    &newAmount,
		IsFlagged: &flagged,
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if !updated.Amount.Equal(newAmount) {
		t.Fatalf("amount not updated: %s", updated.Amount)
	}
	if !updated.IsFlagged {
		t.Fatal("flag not updated")
	}
	if updated.ServiceName != "Spotify" {
		t.Fatalf("untouched field changed: %q", updated.ServiceName)
	}

	if _, err := svc.Update(ctx, userID, created.ID, UpdateInput{}); pkgerrors.As(err) == nil || pkgerrors.As(err).Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error for empty update, got %v", err)
	}
}

func TestMarkPaidRollsForward(t *testing.T) {
	t.Parallel()

	svc, profileService, _ := newTestService(t)
	ctx := context.Background()
	userID := seedUser(t, profileService, enums.SubscriptionTierFree)

	created, err := svc.Create(ctx, userID, CreateInput{
		ServiceName:     "iCloud",
		Amount:          decimal.RequireFromString("2.99"),
		BillingCycle:    enums.BillingCycleMonthly,
		NextBillingDate: date(2024, time.January, 31),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	paid, err := svc.MarkPaid(ctx, userID, created.ID)
	if err != nil {
		t.Fatalf("mark paid: %v", err)
	}
	if want := date(2024, time.February, 29); !paid.NextBillingDate.Equal(want) {
		t.Fatalf("got %s, want %s", paid.NextBillingDate, want)
	}

	loaded, err := svc.Get(ctx, userID, created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !loaded.NextBillingDate.Equal(date(2024, time.February, 29)) {
		t.Fatalf("rollover not persisted: %s", loaded.NextBillingDate)
	}
}
