package holiday

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kohei-Wada/taskdog-sub001/internal/core"
)

func writeHolidays(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "holidays.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestCheckerIsHoliday(t *testing.T) {
	t.Parallel()

	path := writeHolidays(t, `
holidays:
  - date: "2025-01-01"
    name: "New Year's Day"
  - date: "2025-12-25"
    name: "Christmas"
`)
	checker := NewChecker(path)

	assert.True(t, checker.IsHoliday("2025-01-01"))
	assert.True(t, checker.IsHoliday("2025-12-25"))
	assert.False(t, checker.IsHoliday("2025-01-02"))

	name, ok := checker.Name("2025-01-01")
	require.True(t, ok)
	assert.Equal(t, "New Year's Day", name)

	_, ok = checker.Name("2025-06-01")
	assert.False(t, ok)
}

func TestCheckerLoad(t *testing.T) {
	t.Parallel()

	path := writeHolidays(t, `
holidays:
  - date: "2025-12-25"
    name: "Christmas"
  - date: "2025-01-01"
    name: "New Year's Day"
`)
	holidays, err := NewChecker(path).Load()
	require.NoError(t, err)
	require.Len(t, holidays, 2)
	assert.Equal(t, core.Date("2025-01-01"), holidays[0].Date, "sorted by date")
	assert.Equal(t, "Christmas", holidays[1].Name)
}

func TestCheckerMissingFile(t *testing.T) {
	t.Parallel()

	checker := NewChecker(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.False(t, checker.IsHoliday("2025-01-01"))

	holidays, err := checker.Load()
	require.NoError(t, err, "an absent file simply means no holidays")
	assert.Empty(t, holidays)
}

func TestCheckerEmptyPath(t *testing.T) {
	t.Parallel()

	checker := NewChecker("")
	assert.False(t, checker.IsHoliday("2025-01-01"))
}

func TestCheckerInvalidFile(t *testing.T) {
	t.Parallel()

	t.Run("bad yaml", func(t *testing.T) {
		t.Parallel()
		checker := NewChecker(writeHolidays(t, "holidays: [unclosed"))
		_, err := checker.Load()
		require.Error(t, err)
		assert.False(t, checker.IsHoliday("2025-01-01"), "degrades to no holidays")
	})

	t.Run("bad date", func(t *testing.T) {
		t.Parallel()
		checker := NewChecker(writeHolidays(t, `
holidays:
  - date: "01/01/2025"
    name: "Bad"
`))
		_, err := checker.Load()
		require.Error(t, err)
		assert.ErrorIs(t, err, core.ErrValidation)
		assert.Contains(t, err.Error(), "01/01/2025")
	})
}

func TestCheckerPicksUpFileChanges(t *testing.T) {
	t.Parallel()

	path := writeHolidays(t, `
holidays:
  - date: "2025-01-01"
    name: "New Year's Day"
`)
	checker := NewChecker(path)
	require.True(t, checker.IsHoliday("2025-01-01"))
	require.False(t, checker.IsHoliday("2025-04-29"))

	// Grow the file; the cache must notice the size change.
	require.NoError(t, os.WriteFile(path, []byte(`
holidays:
  - date: "2025-01-01"
    name: "New Year's Day"
  - date: "2025-04-29"
    name: "Showa Day"
`), 0600))

	assert.True(t, checker.IsHoliday("2025-04-29"))
}

func TestCheckerImplementsCoreInterface(t *testing.T) {
	t.Parallel()

	var _ core.HolidayChecker = NewChecker("")
}
