package itf

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSanitizeDBName(t *testing.T) {
	require.Equal(t, "testmigrate_execute_sub_case", sanitizeDBName("TestMigrate/Execute (sub-case)"))
	require.Equal(t, "test_db", sanitizeDBName("///"))

	long := "Test" + strings.Repeat("VeryLongSubtestName/", 6)
	got := sanitizeDBName(long)
	require.Len(t, got, maxDBNameLength)
	require.NotEqual(t, got, sanitizeDBName(long+"x"))
}
