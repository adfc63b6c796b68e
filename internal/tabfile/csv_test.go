package tabfile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "table.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestReadCSV(t *testing.T) {
	path := writeFile(t, "id, amount ,email\nsub_1, 99.00 ,jo@x.com\nsub_2,50\n")

	header, rows, err := ReadCSV(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"id", "amount", "email"}, header)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"sub_1", "99.00", "jo@x.com"}, rows[0])
	// Variable field counts are allowed.
	assert.Equal(t, []string{"sub_2", "50"}, rows[1])
}

func TestReadCSV_HeaderOnly(t *testing.T) {
	path := writeFile(t, "id,amount\n")

	header, rows, err := ReadCSV(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "amount"}, header)
	assert.Empty(t, rows)
}

func TestReadCSV_EmptyFile(t *testing.T) {
	path := writeFile(t, "")

	_, _, err := ReadCSV(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no header row")
}

func TestReadCSV_MissingFile(t *testing.T) {
	_, _, err := ReadCSV(filepath.Join(t.TempDir(), "absent.csv"))
	require.Error(t, err)
}
