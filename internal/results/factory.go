package results

import (
	"context"
	"fmt"
	"os"
)

// Open selects a run store backend using environment variables.
// Defaults to sqlite when unset.
//
//	CARBONCORE_RESULTS_DRIVER: memory|sqlite|postgres (default sqlite)
//	CARBONCORE_RESULTS_SQLITE_PATH: path to sqlite file (default ./carboncore.db)
//	CARBONCORE_RESULTS_POSTGRES_DSN: postgres DSN when driver=postgres
func Open(ctx context.Context) (Store, error) {
	driver := os.Getenv("CARBONCORE_RESULTS_DRIVER")
	if driver == "" {
		driver = string(DriverSQLite)
	}
	switch Driver(driver) {
	case DriverMemory:
		return NewMemory(), nil
	case DriverSQLite:
		return NewSQLite(os.Getenv("CARBONCORE_RESULTS_SQLITE_PATH"))
	case DriverPostgres:
		return NewPostgres(ctx, os.Getenv("CARBONCORE_RESULTS_POSTGRES_DSN"))
	default:
		return nil, fmt.Errorf("results: unknown driver %q", driver)
	}
}
