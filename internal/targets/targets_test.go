package targets

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseSkipsBlanksAndComments(t *testing.T) {
	t.Parallel()

	input := "athensreview.com\n\n  # regional\n  dailyprogress.com  \n\t\nwcfcourier.com"
	domains, err := Parse(strings.NewReader(input))
	require.NoError(t, err)
	require.Equal(t, []string{"athensreview.com", "dailyprogress.com", "wcfcourier.com"}, domains)
}

func TestLoad(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "townnews.txt")
	require.NoError(t, os.WriteFile(path, []byte("a.example\nb.example\n"), 0o600))

	domains, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, []string{"a.example", "b.example"}, domains)

	_, err = Load(filepath.Join(t.TempDir(), "missing.txt"))
	require.Error(t, err)
}
