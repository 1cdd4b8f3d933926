package mysql

import (
	"context"
	"database/sql/driver"
	"errors"
	"testing"

	mysqldrv "github.com/go-sql-driver/mysql"

	"hoodrate/internal/domain"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want error
	}{
		{"deadlock", &mysqldrv.MySQLError{Number: erLockDeadlock}, domain.ErrTransientStore},
		{"lock wait", &mysqldrv.MySQLError{Number: erLockWaitTimeout}, domain.ErrTransientStore},
		{"check", &mysqldrv.MySQLError{Number: erCheckConstraint}, domain.ErrConstraintViolation},
		{"dup", &mysqldrv.MySQLError{Number: erDupEntry}, domain.ErrConstraintViolation},
		{"bad conn", driver.ErrBadConn, domain.ErrTransientStore},
		{"invalid conn", mysqldrv.ErrInvalidConn, domain.ErrTransientStore},
	}
	for _, tc := range cases {
		got := classify(tc.err)
		if !errors.Is(got, tc.want) {
			t.Fatalf("%s: classify = %v, want %v", tc.name, got, tc.want)
		}
		if !errors.Is(got, tc.err) {
			t.Fatalf("%s: original error dropped: %v", tc.name, got)
		}
	}

	if got := classify(context.Canceled); got != context.Canceled {
		t.Fatalf("context error should pass through, got %v", got)
	}
	if classify(nil) != nil {
		t.Fatal("nil should stay nil")
	}
	other := &mysqldrv.MySQLError{Number: 1146}
	if got := classify(other); errors.Is(got, domain.ErrTransientStore) || errors.Is(got, domain.ErrConstraintViolation) {
		t.Fatalf("unknown code classified: %v", got)
	}
}
