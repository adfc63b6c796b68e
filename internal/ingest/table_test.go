package ingest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeHeader(t *testing.T) {
	assert.Equal(t, "org_id", normalizeHeader(" Org ID "))
	assert.Equal(t, "created_at", normalizeHeader("Created-At"))
	assert.Equal(t, "amount", normalizeHeader("amount"))
}

func TestTableBindAndGet(t *testing.T) {
	tbl := NewTable("subscriptions",
		[]string{"Subscription ID", "Plan Amount", "Email"},
		[][]string{
			{"sub_1", " 99.00 ", "jo@x.com"},
			{"sub_2"}, // short row
		})
	tbl.Bind(Aliases{
		"id":     {"id", "subscription_id"},
		"amount": {"amount", "plan_amount"},
		"email":  {"email"},
		"status": {"status"},
	})

	assert.True(t, tbl.Has("id"))
	assert.True(t, tbl.Has("amount"))
	assert.False(t, tbl.Has("status"))

	assert.Equal(t, "sub_1", tbl.Get(tbl.Rows[0], "id"))
	assert.Equal(t, "99.00", tbl.Get(tbl.Rows[0], "amount"))
	// Short rows and unbound columns read as empty.
	assert.Equal(t, "", tbl.Get(tbl.Rows[1], "amount"))
	assert.Equal(t, "", tbl.Get(tbl.Rows[0], "status"))
}

func TestTableRequire(t *testing.T) {
	tbl := NewTable("subscriptions", []string{"id"}, nil)
	tbl.Bind(Aliases{"id": {"id"}, "status": {"status"}})

	require.NoError(t, tbl.Require("id"))

	err := tbl.Require("id", "status")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `table "subscriptions"`)
	assert.Contains(t, err.Error(), `required column "status"`)
}

func TestAliasesMerge(t *testing.T) {
	base := Aliases{"id": {"id"}, "amount": {"amount"}}
	merged := base.merge(Aliases{"amount": {"total_price"}})

	assert.Equal(t, []string{"id"}, merged["id"])
	assert.Equal(t, []string{"total_price"}, merged["amount"])
	// Nil overrides return the defaults untouched.
	assert.Equal(t, base, base.merge(nil))
}

func TestLoadAliasOverrides(t *testing.T) {
	got, err := LoadAliasOverrides("")
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = LoadAliasOverrides(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Nil(t, got)

	path := filepath.Join(t.TempDir(), "aliases.yaml")
	require.NoError(t, os.WriteFile(path, []byte("amount:\n  - total_price\n  - amount\n"), 0644))
	got, err = LoadAliasOverrides(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"total_price", "amount"}, got["amount"])

	require.NoError(t, os.WriteFile(path, []byte(":\tnot yaml"), 0644))
	_, err = LoadAliasOverrides(path)
	assert.Error(t, err)
}
