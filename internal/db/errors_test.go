package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestViolationHelpers(t *testing.T) {
	tests := map[string]struct {
		err        error
		wantUnique bool
		wantFK     bool
	}{
		"unique": {
			err:        &pgconn.PgError{Code: "23505"},
			wantUnique: true,
		},
		"wrapped unique": {
			err:        fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"}),
			wantUnique: true,
		},
		"foreign key": {
			err:    &pgconn.PgError{Code: "23503"},
			wantFK: true,
		},
		"other pg error": {
			err: &pgconn.PgError{Code: "40001"},
		},
		"plain error": {
			err: errors.New("boom"),
		},
		"nil": {},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			if got := IsUniqueViolation(tt.err); got != tt.wantUnique {
				t.Fatalf("IsUniqueViolation = %v, want %v", got, tt.wantUnique)
			}
			if got := IsForeignKeyViolation(tt.err); got != tt.wantFK {
				t.Fatalf("IsForeignKeyViolation = %v, want %v", got, tt.wantFK)
			}
		})
	}
}
