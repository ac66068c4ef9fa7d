package migrations

import (
	"regexp"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/require"
)

func TestListSortsByName(t *testing.T) {
	fsys := fstest.MapFS{
		"0002_more.sql":  {Data: []byte("SELECT 2;")},
		"0001_first.sql": {Data: []byte("SELECT 1;")},
		"README.md":      {Data: []byte("ignored")},
	}
	list, err := List(fsys)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, "0001_first", list[0].Version)
	require.Equal(t, "SELECT 2;", list[1].SQL)
}

func TestEmbeddedSchemaCoversTables(t *testing.T) {
	list, err := List(Files)
	require.NoError(t, err)
	require.NotEmpty(t, list)
	tables := regexp.MustCompile(`CREATE TABLE IF NOT EXISTS (\w+)`).FindAllStringSubmatch(list[0].SQL, -1)
	var names []string
	for _, m := range tables {
		names = append(names, m[1])
	}
	for _, want := range []string{
		"warehouses", "material_requests", "material_request_items", "purchase_orders",
		"purchase_order_items", "warehouse_stock", "stock_movements", "receipts",
		"receipt_lines", "approvals", "audit_logs", "idempotency_keys",
	} {
		require.Contains(t, names, want)
	}
}
