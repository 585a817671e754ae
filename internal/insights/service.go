// Package insights aggregates a user's tracked subscriptions into
// spending figures for the dashboard.
package insights

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/subsage-app/subsage-backend/internal/subscriptions"
	"github.com/subsage-app/subsage-backend/pkg/db/models"
	"github.com/subsage-app/subsage-backend/pkg/enums"
	pkgerrors "github.com/subsage-app/subsage-backend/pkg/errors"
)

// Weekly amounts are averaged over a month as 52 weeks / 12 months.
var (
	weeksPerMonth = decimal.RequireFromString("4.33")
	monthsPerYear = decimal.NewFromInt(12)
)

const uncategorized = "Uncategorized"

// CategoryTotal is the monthly-normalized spend for one category.
type CategoryTotal struct {
	Category     string          `json:"category"`
	MonthlyTotal decimal.Decimal `json:"monthly_total"`
	Count        int             `json:"count"`
}

// Summary is the full insights payload for a user.
type Summary struct {
	ActiveCount         int             `json:"active_count"`
	MonthlyTotal        decimal.Decimal `json:"monthly_total"`
	YearlyProjection    decimal.Decimal `json:"yearly_projection"`
	ByCategory          []CategoryTotal `json:"by_category"`
	FlaggedCount        int             `json:"flagged_count"`
	DuplicateCategories []string        `json:"duplicate_categories"`
}

// ServiceParams groups dependencies for the insights service.
type ServiceParams struct {
	SubscriptionService subscriptions.Service
}

// Service computes spending insights.
type Service interface {
	Summarize(ctx context.Context, userID uuid.UUID) (*Summary, error)
}

type service struct {
	subscriptionService subscriptions.Service
}

// NewService builds an insights service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.SubscriptionService == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "subscription service is required")
	}
	return &service{subscriptionService: params.SubscriptionService}, nil
}

func (s *service) Summarize(ctx context.Context, userID uuid.UUID) (*Summary, error) {
	subs, err := s.subscriptionService.List(ctx, userID)
	if err != nil {
		return nil, err
	}

	summary := &Summary{
		MonthlyTotal:     decimal.Zero,
		YearlyProjection: decimal.Zero,
	}

	categoryTotals := map[string]*CategoryTotal{}
	for _, sub := range subs {
		if !sub.IsActive {
			continue
		}
		summary.ActiveCount++
		if sub.IsFlagged {
			summary.FlaggedCount++
		}

		monthly := monthlyAmount(sub)
		summary.MonthlyTotal = summary.MonthlyTotal.Add(monthly)

		category := uncategorized
		if sub.Category != nil && *sub.Category != "" {
			category = *sub.Category
		}
		entry, ok := categoryTotals[category]
		if !ok {
			entry = &CategoryTotal{Category: category, MonthlyTotal: decimal.Zero}
			categoryTotals[category] = entry
		}
		entry.MonthlyTotal = entry.MonthlyTotal.Add(monthly)
		entry.Count++
	}

	summary.MonthlyTotal = summary.MonthlyTotal.Round(2)
	summary.YearlyProjection = summary.MonthlyTotal.Mul(monthsPerYear).Round(2)

	summary.ByCategory = make([]CategoryTotal, 0, len(categoryTotals))
	for _, entry := range categoryTotals {
		entry.MonthlyTotal = entry.MonthlyTotal.Round(2)
		summary.ByCategory = append(summary.ByCategory, *entry)
		if entry.Count > 1 {
			summary.DuplicateCategories = append(summary.DuplicateCategories, entry.Category)
		}
	}
	// Largest spend first so the dashboard reads top-down.
	sort.Slice(summary.ByCategory, func(i, j int) bool {
		if summary.ByCategory[i].MonthlyTotal.Equal(summary.ByCategory[j].MonthlyTotal) {
			return summary.ByCategory[i].Category < summary.ByCategory[j].Category
		}
		return summary.ByCategory[i].MonthlyTotal.GreaterThan(summary.ByCategory[j].MonthlyTotal)
	})
	sort.Strings(summary.DuplicateCategories)

	return summary, nil
}

// monthlyAmount normalizes an amount to its monthly equivalent.
func monthlyAmount(sub models.Subscription) decimal.Decimal {
	switch sub.BillingCycle {
	case enums.BillingCycleWeekly:
		return sub.Amount.Mul(weeksPerMonth)
	case enums.BillingCycleYearly:
		return sub.Amount.Div(monthsPerYear)
	default:
		return sub.Amount
	}
}
