package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestMetadataForKnownCodes(t *testing.T) {
	tests := []struct {
		code      Code
		status    int
		retryable bool
		detailsOK bool
	}{
		{code: CodeValidation, status: http.StatusBadRequest, detailsOK: true},
		{code: CodeNotFound, status: http.StatusNotFound},
		{code: CodeConflict, status: http.StatusConflict},
		{code: CodeStateConflict, status: http.StatusUnprocessableEntity, detailsOK: true},
		{code: CodeDataIntegrity, status: http.StatusInternalServerError},
		{code: CodeReconciliationMismatch, status: http.StatusConflict, detailsOK: true},
		{code: CodeInternal, status: http.StatusInternalServerError, retryable: true},
		{code: CodeDependency, status: http.StatusServiceUnavailable, retryable: true, detailsOK: true},
	}

	for _, tt := range tests {
		meta := MetadataFor(tt.code)
		if meta.HTTPStatus != tt.status {
			t.Fatalf("code %s expected status %d got %d", tt.code, tt.status, meta.HTTPStatus)
		}
		if meta.Retryable != tt.retryable {
			t.Fatalf("code %s expected retryable %v got %v", tt.code, tt.retryable, meta.Retryable)
		}
		if meta.DetailsAllowed != tt.detailsOK {
			t.Fatalf("code %s expected details allowed %v got %v", tt.code, tt.detailsOK, meta.DetailsAllowed)
		}
		if meta.PublicMessage == "" {
			t.Fatalf("code %s missing public message", tt.code)
		}
	}
}

func TestMetadataForUnknownCodeDefaultsToInternal(t *testing.T) {
	meta := MetadataFor("SOMETHING_UNKNOWN")
	if meta.HTTPStatus != http.StatusInternalServerError {
		t.Fatalf("expected internal status, got %d", meta.HTTPStatus)
	}
}

func TestErrorConstructors(t *testing.T) {
	base := Newf(CodeValidation, "rank %d out of range", 0)
	if base.Code() != CodeValidation {
		t.Fatalf("expected validation code, got %s", base.Code())
	}
	if base.Message() != "rank 0 out of range" {
		t.Fatalf("unexpected message %q", base.Message())
	}

	cause := stdErrors.New("boom")
	wrapped := Wrap(CodeDependency, cause, "load receipts")
	if !stdErrors.Is(wrapped, cause) {
		t.Fatalf("Wrap did not preserve cause")
	}
	if wrapped.Error() != "DEPENDENCY_ERROR: load receipts: boom" {
		t.Fatalf("unexpected error string %q", wrapped.Error())
	}
}

func TestIsCodeAndRetryable(t *testing.T) {
	integrity := fmt.Errorf("builder 7: %w", New(CodeDataIntegrity, "negative balance"))
	if !IsCode(integrity, CodeDataIntegrity) {
		t.Fatal("expected wrapped integrity code to be detected")
	}
	if IsRetryable(integrity) {
		t.Fatal("integrity errors must not be retryable")
	}
	if !IsRetryable(Wrap(CodeDependency, stdErrors.New("conn reset"), "query")) {
		t.Fatal("dependency errors should be retryable")
	}
	if IsRetryable(nil) {
		t.Fatal("nil is not retryable")
	}
}

func TestDumpCollectsChain(t *testing.T) {
	err := fmt.Errorf("outer: %w", New(CodeNotFound, "claim"))
	dump := Dump(err)
	if dump.Code != CodeNotFound {
		t.Fatalf("expected not found code, got %s", dump.Code)
	}
	if len(dump.Chain) != 2 {
		t.Fatalf("expected two chain entries, got %d", len(dump.Chain))
	}
}

func TestDumpLiftsPostgresDiagnostics(t *testing.T) {
	pg := &pgconn.PgError{Code: "23505", ConstraintName: "ux_weekly_claims_week", TableName: "weekly_claims"}
	err := Wrap(CodeConflict, fmt.Errorf("insert claim: %w", pg), "publish week")

	dump := Dump(err)
	if dump.PGCode != "23505" || dump.PGConstraint != "ux_weekly_claims_week" || dump.PGTable != "weekly_claims" {
		t.Fatalf("unexpected pg fields %+v", dump)
	}
	if dump.Retryable {
		t.Fatal("conflicts are not retryable")
	}
}
