package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeInput(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
}

// writeMinimalInputs lays down the four required tables.
func writeMinimalInputs(t *testing.T, dir string) {
	writeInput(t, dir, "subscriptions.csv",
		"id,status,interval,amount,customer_email,org_id\n"+
			"sub_1,active,year,1200,jo@acme.com,org-1\n"+
			"sub_2,trialing,month,99,kim@beta.io,\n")
	writeInput(t, dir, "organizations.csv",
		"org_id,org_name,created_at\norg-1,Acme,2025-01-01\n")
	writeInput(t, dir, "memberships.csv",
		"org_id,user_identity,email,role\norg-1,u-1,jo@acme.com,owner\n")
	writeInput(t, dir, "users.csv",
		"user_identity,email,org_id\nu-1,jo@acme.com,org-1\n")
}

func TestLoadInputs(t *testing.T) {
	dir := t.TempDir()
	writeMinimalInputs(t, dir)
	writeInput(t, dir, "arr_snapshots.csv",
		"snapshot_date,org_id,bom_arr,eom_arr\n2025-05-31,org-1,1000,1100\n")
	writeInput(t, dir, "promo_redemptions.csv",
		"org_id,promo_code,redeemed_at\norg-1,TRIAL30,2025-02-01\n")

	in, err := LoadInputs(context.Background(), dir, "")
	require.NoError(t, err)

	assert.Len(t, in.Subscriptions, 2)
	assert.Len(t, in.Orgs, 1)
	assert.Len(t, in.Memberships, 1)
	assert.Len(t, in.Users, 1)
	assert.Len(t, in.Snapshots, 1)
	assert.Len(t, in.Redemptions, 1)

	assert.Equal(t, 2, in.Stats[TableSubscriptions].Kept)
	assert.Equal(t, 7, in.TotalRows())
}

func TestLoadInputs_OptionalTablesAbsent(t *testing.T) {
	dir := t.TempDir()
	writeMinimalInputs(t, dir)

	in, err := LoadInputs(context.Background(), dir, "")
	require.NoError(t, err)
	assert.Empty(t, in.Snapshots)
	assert.Empty(t, in.Redemptions)
	_, tracked := in.Stats[TableSnapshots]
	assert.False(t, tracked)
}

func TestLoadInputs_MissingRequiredTable(t *testing.T) {
	dir := t.TempDir()
	writeMinimalInputs(t, dir)
	require.NoError(t, os.Remove(filepath.Join(dir, "users.csv")))

	_, err := LoadInputs(context.Background(), dir, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `required input table "users" not found`)
}

func TestLoadInputs_AliasOverrideFile(t *testing.T) {
	dir := t.TempDir()
	writeMinimalInputs(t, dir)

	// Rename the amount column so only the override file can find it.
	writeInput(t, dir, "subscriptions.csv",
		"id,status,interval,total_price,customer_email\nsub_1,active,month,49.99,a@b.com\n")
	aliasPath := filepath.Join(dir, "aliases.yaml")
	writeInput(t, dir, "aliases.yaml", "amount:\n  - total_price\n")

	in, err := LoadInputs(context.Background(), dir, aliasPath)
	require.NoError(t, err)
	require.Len(t, in.Subscriptions, 1)
	assert.Equal(t, 49.99, in.Subscriptions[0].Amount)
}
