package database

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestUniqueViolationMatchesWrappedErrors(t *testing.T) {
	err := fmt.Errorf("failed to create user: %w", &pgconn.PgError{
		Code:           "23505",
		ConstraintName: "users_email_key",
	})

	if !IsUniqueViolation(err, "") {
		t.Error("expected unique violation without constraint filter")
	}
	if !IsUniqueViolation(err, "users_email_key") {
		t.Error("expected unique violation for matching constraint")
	}
	if IsUniqueViolation(err, "users_username_key") {
		t.Error("constraint filter should reject other constraints")
	}
}

func TestViolationHelpersRejectOtherErrors(t *testing.T) {
	cases := []error{
		nil,
		errors.New("boom"),
		&pgconn.PgError{Code: "40001"},
	}

	for _, err := range cases {
		if IsUniqueViolation(err, "") || IsForeignKeyViolation(err) || IsCheckViolation(err) || IsOutOfRange(err) {
			t.Errorf("unexpected match for %v", err)
		}
	}

	if !IsForeignKeyViolation(&pgconn.PgError{Code: "23503"}) {
		t.Error("expected foreign key violation")
	}
	if !IsCheckViolation(&pgconn.PgError{Code: "23514"}) {
		t.Error("expected check violation")
	}
	if !IsOutOfRange(fmt.Errorf("failed to add gift: %w", &pgconn.PgError{Code: "22003"})) {
		t.Error("expected out of range error")
	}
}
