package testutils_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wkalt/teeql/util/testutils"
)

func TestGetOpenPort(t *testing.T) {
	port, err := testutils.GetOpenPort()
	require.NoError(t, err)
	require.Positive(t, port)
}

func TestFiles(t *testing.T) {
	dir := t.TempDir()
	path := testutils.WriteFile(t, dir, "a/b/in.csv", "x\n1\n")
	require.Equal(t, filepath.Join(dir, "a", "b", "in.csv"), path)
	require.Equal(t, "x\n1\n", testutils.ReadFile(t, path))
}
