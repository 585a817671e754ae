// Package reminders sends upcoming-payment emails ahead of each
// subscription's billing date.
package reminders

import (
	"context"
	"fmt"
	"html"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"

	"github.com/subsage-app/subsage-backend/internal/subscriptions"
	pkgerrors "github.com/subsage-app/subsage-backend/pkg/errors"
	"github.com/subsage-app/subsage-backend/pkg/logger"
	"github.com/subsage-app/subsage-backend/pkg/resend"
)

const (
	// JobName identifies this job in the worker registry and lock keys.
	JobName = "billing-reminders"

	defaultLeadDays = 3
)

type dueLister interface {
	ListDueOn(ctx context.Context, date time.Time) ([]subscriptions.DueSubscription, error)
}

type mailer interface {
	Send(ctx context.Context, msg resend.Message) (string, error)
}

// ServiceParams groups dependencies for the reminder job.
type ServiceParams struct {
	Logger           *logger.Logger
	SubscriptionRepo *subscriptions.Repository
	Mailer           mailer
	// LeadDays is how many days before the billing date the email goes
	// out. Defaults to three.
	LeadDays int
	// Now is injectable for tests; defaults to time.Now.
	Now func() time.Time
}

// Result summarizes one reminder run.
type Result struct {
	SentCount int      `json:"sent_count"`
	Errors    []string `json:"errors,omitempty"`
}

// Service finds subscriptions billing soon and emails their owners,
// one email per owner covering everything due that day.
type Service struct {
	logg     *logger.Logger
	due      dueLister
	mailer   mailer
	leadDays int
	now      func() time.Time
}

// NewService builds the reminder job.
func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "logger is required")
	}
	if params.SubscriptionRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "subscription repo is required")
	}
	if params.Mailer == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "mailer is required")
	}

	leadDays := params.LeadDays
	if leadDays <= 0 {
		leadDays = defaultLeadDays
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}

	return &Service{
		logg:     params.Logger,
		due:      params.SubscriptionRepo,
		mailer:   params.Mailer,
		leadDays: leadDays,
		now:      now,
	}, nil
}

// newServiceForTest injects a dueLister fake directly.
func newServiceForTest(logg *logger.Logger, due dueLister, m mailer, leadDays int, now func() time.Time) *Service {
	return &Service{logg: logg, due: due, mailer: m, leadDays: leadDays, now: now}
}

// Job adapts the reminder service to the worker registry.
type Job struct {
	svc *Service
}

// NewJob wraps a reminder service for the cron worker.
func NewJob(svc *Service) *Job {
	return &Job{svc: svc}
}

// Name identifies the job in logs, metrics, and lock keys.
func (j *Job) Name() string {
	return JobName
}

// Run executes one reminder pass for the cron worker.
func (j *Job) Run(ctx context.Context) error {
	_, err := j.svc.Execute(ctx)
	return err
}

// Execute runs one reminder pass. A failure for one owner does not stop
// delivery to the others; per-owner failures are collected in the
// result.
func (s *Service) Execute(ctx context.Context) (Result, error) {
	targetDate := s.targetDate()

	due, err := s.due.ListDueOn(ctx, targetDate)
	if err != nil {
		return Result{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list due subscriptions")
	}
	if len(due) == 0 {
		s.logg.Info(ctx, "no subscriptions due, nothing to send")
		return Result{}, nil
	}

	groups := groupByOwner(due)

	result := Result{}
	var combined error
	for _, group := range groups {
		subject, body := composeEmail(group, targetDate)
		if _, err := s.mailer.Send(ctx, resend.Message{
			To:      group.Email,
			Subject: subject,
			HTML:    body,
		}); err != nil {
			s.logg.Error(ctx, "send reminder failed", err)
			result.Errors = append(result.Errors, fmt.Sprintf("user %s: %v", group.UserID, err))
			combined = multierr.Append(combined, err)
			continue
		}
		result.SentCount++
	}

	s.logg.Info(ctx, fmt.Sprintf("reminder run complete: %d sent, %d failed", result.SentCount, len(result.Errors)))
	return result, combined
}

func (s *Service) targetDate() time.Time {
	now := s.now().UTC()
	target := now.AddDate(0, 0, s.leadDays)
	return time.Date(target.Year(), target.Month(), target.Day(), 0, 0, 0, 0, time.UTC)
}

// ownerGroup collects one owner's due subscriptions. Grouping is keyed
// by owner id, not email address, so two accounts sharing an inbox
// still get their own emails.
type ownerGroup struct {
	UserID uuid.UUID
	Email  string
	Items  []subscriptions.DueSubscription
}

func groupByOwner(due []subscriptions.DueSubscription) []ownerGroup {
	byOwner := map[uuid.UUID]*ownerGroup{}
	order := []uuid.UUID{}
	for _, row := range due {
		group, ok := byOwner[row.UserID]
		if !ok {
			group = &ownerGroup{UserID: row.UserID, Email: row.Email}
			byOwner[row.UserID] = group
			order = append(order, row.UserID)
		}
		group.Items = append(group.Items, row)
	}

	groups := make([]ownerGroup, 0, len(order))
	for _, id := range order {
		groups = append(groups, *byOwner[id])
	}
	return groups
}

func composeEmail(group ownerGroup, billingDate time.Time) (string, string) {
	items := make([]subscriptions.DueSubscription, len(group.Items))
	copy(items, group.Items)
	sort.Slice(items, func(i, j int) bool { return items[i].ServiceName < items[j].ServiceName })

	total := decimal.Zero
	var rows strings.Builder
	for _, item := range items {
		total = total.Add(item.Amount)
		fmt.Fprintf(&rows, "<li><strong>%s</strong> &mdash; $%s</li>",
			html.EscapeString(item.ServiceName), item.Amount.StringFixed(2))
	}

	subject := fmt.Sprintf("Upcoming payments on %s", billingDate.Format("Jan 2"))

	body := fmt.Sprintf(
		`<h2>Payments due %s</h2><ul>%s</ul><p>Total: <strong>$%s</strong></p><p>Mark them as paid in SubSage once they go through.</p>`,
		billingDate.Format("January 2, 2006"),
		rows.String(),
		total.StringFixed(2),
	)
	return subject, body
}
