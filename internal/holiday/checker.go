// Package holiday answers workday questions from a YAML holidays file.
package holiday

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"time"

	"github.com/goccy/go-yaml"

	"github.com/Kohei-Wada/taskdog-sub001/internal/common/fileutil"
	"github.com/Kohei-Wada/taskdog-sub001/internal/core"
)

// Holiday is one dated entry from the holidays file.
type Holiday struct {
	Date core.Date
	Name string
}

type holidaysFile struct {
	Holidays []struct {
		Date string `yaml:"date"`
		Name string `yaml:"name"`
	} `yaml:"holidays"`
}

// Checker implements core.HolidayChecker over a holidays file such as
//
//	holidays:
//	  - date: "2025-01-01"
//	    name: "New Year's Day"
//
// The parsed file is cached and re-read when it changes on disk. A missing
// or unconfigured file means no holidays at all.
type Checker struct {
	path  string
	cache *fileutil.Cache[map[core.Date]string]
}

// NewChecker builds a checker over the given file path. An empty path
// disables holiday lookups.
func NewChecker(path string) *Checker {
	return &Checker{
		path:  path,
		cache: fileutil.NewCache[map[core.Date]string](1, 5*time.Minute),
	}
}

// IsHoliday reports whether d appears in the holidays file. Load failures
// degrade to false; Load surfaces them at startup.
func (c *Checker) IsHoliday(d core.Date) bool {
	table, err := c.load()
	if err != nil {
		return false
	}
	_, ok := table[d]
	return ok
}

// Name returns the holiday name for d when present.
func (c *Checker) Name(d core.Date) (string, bool) {
	table, err := c.load()
	if err != nil {
		return "", false
	}
	name, ok := table[d]
	return name, ok
}

// Load parses the file eagerly so configuration mistakes surface at startup
// instead of silently disabling holidays.
func (c *Checker) Load() ([]Holiday, error) {
	table, err := c.load()
	if err != nil {
		return nil, err
	}
	dates := make([]core.Date, 0, len(table))
	for d := range table {
		dates = append(dates, d)
	}
	slices.Sort(dates)
	holidays := make([]Holiday, 0, len(dates))
	for _, d := range dates {
		holidays = append(holidays, Holiday{Date: d, Name: table[d]})
	}
	return holidays, nil
}

func (c *Checker) load() (map[core.Date]string, error) {
	if c.path == "" {
		return nil, nil
	}
	table, err := c.cache.LoadLatest(c.path, c.parse)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	return table, err
}

func (c *Checker) parse() (map[core.Date]string, error) {
	data, err := os.ReadFile(c.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read holidays file %s: %w", c.path, err)
	}
	var file holidaysFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse holidays file %s: %w", c.path, err)
	}
	table := make(map[core.Date]string, len(file.Holidays))
	for _, entry := range file.Holidays {
		d, err := core.ParseDate(entry.Date)
		if err != nil {
			return nil, fmt.Errorf("holidays file %s: entry %q: %w", c.path, entry.Date, err)
		}
		table[d] = entry.Name
	}
	return table, nil
}
