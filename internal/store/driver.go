package store

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// Accepted DATABASE_DRIVER values.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

var dialectors = map[string]func(dsn string) gorm.Dialector{
	DriverSQLite:   sqlite.Open,
	DriverPostgres: postgres.Open,
}

// GetDialector opens dsn with the named driver.
func GetDialector(driver, dsn string) (gorm.Dialector, error) {
	open, ok := dialectors[driver]
	if !ok {
		return nil, fmt.Errorf("%w: %q (use %s or %s)", ErrUnsupportedDriver, driver, DriverSQLite, DriverPostgres)
	}
	if dsn == "" {
		return nil, fmt.Errorf("database DSN is empty for driver %s", driver)
	}
	return open(dsn), nil
}
