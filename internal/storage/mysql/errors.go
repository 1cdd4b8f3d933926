package mysql

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"

	mysqldrv "github.com/go-sql-driver/mysql"

	"hoodrate/internal/domain"
)

// See https://dev.mysql.com/doc/mysql-errors/8.0/en/server-error-reference.html
const (
	erDupEntry          = 1062
	erLockWaitTimeout   = 1205
	erLockDeadlock      = 1213
	erNoReferencedRow   = 1452
	erCheckConstraint   = 3819
	erServerShutdown    = 1053
	erTooManyConnection = 1040
)

// classify maps driver errors onto domain sentinels, keeping the original in
// the chain.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var me *mysqldrv.MySQLError
	if errors.As(err, &me) {
		switch me.Number {
		case erLockDeadlock, erLockWaitTimeout, erServerShutdown, erTooManyConnection:
			return fmt.Errorf("%w: %w", domain.ErrTransientStore, err)
		case erDupEntry, erCheckConstraint, erNoReferencedRow:
			return fmt.Errorf("%w: %w", domain.ErrConstraintViolation, err)
		}
		return err
	}

	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, mysqldrv.ErrInvalidConn) || errors.Is(err, sql.ErrConnDone) {
		return fmt.Errorf("%w: %w", domain.ErrTransientStore, err)
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return fmt.Errorf("%w: %w", domain.ErrTransientStore, err)
	}
	return err
}
