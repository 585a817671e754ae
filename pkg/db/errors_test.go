package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestIsUniqueViolation(t *testing.T) {
	pgDup := &pgconn.PgError{Code: "23505", ConstraintName: "profiles_user_id_key"}

	cases := []struct {
		name       string
		err        error
		constraint string
		want       bool
	}{
		{"nil error", nil, "", false},
		{"pg duplicate", pgDup, "", true},
		{"pg duplicate named", pgDup, "profiles_user_id_key", true},
		{"pg duplicate wrong constraint", pgDup, "subscriptions_pkey", false},
		{"pg other code", &pgconn.PgError{Code: "23503"}, "", false},
		{"wrapped pg error", fmt.Errorf("insert: %w", pgDup), "profiles_user_id_key", true},
		{"message fallback", errors.New(`duplicate key value violates unique constraint "profiles_user_id_key"`), "", true},
		{"sqlite message", errors.New("UNIQUE constraint failed: profiles.user_id"), "", true},
		{"unrelated error", errors.New("connection refused"), "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsUniqueViolation(tc.err, tc.constraint); got != tc.want {
				t.Fatalf("IsUniqueViolation(%v, %q) = %v, want %v", tc.err, tc.constraint, got, tc.want)
			}
		})
	}
}
