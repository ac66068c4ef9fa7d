package cli

import (
	"context"
	"fmt"
	"io"
	"os"
)

// MigrateFunc applies pending schema migrations and returns their versions.
type MigrateFunc func(ctx context.Context) ([]string, error)

// MigrateCommand applies migrations and lists what ran.
func MigrateCommand(ctx context.Context, migrate MigrateFunc, stdout, stderr io.Writer) int {
	if stdout == nil {
		stdout = os.Stdout
	}
	if stderr == nil {
		stderr = os.Stderr
	}
	applied, err := migrate(ctx)
	for _, v := range applied {
		_, _ = fmt.Fprintf(stdout, "applied %s\n", v)
	}
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "migrate: %v\n", err)
		return 1
	}
	if len(applied) == 0 {
		_, _ = fmt.Fprintln(stdout, "schema up to date")
	}
	return 0
}
