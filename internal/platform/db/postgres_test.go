package db

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewRejectsMalformedDSN(t *testing.T) {
	_, err := New(context.Background(), "postgres://%zz", PoolOptions{MaxConns: 4})
	require.ErrorContains(t, err, "parse config")
}
