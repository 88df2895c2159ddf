package sessions

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Calendar lists exchange holidays as 2006-01-02 dates in a yaml file:
//
//	holidays:
//	  - 2024-01-01
//	  - 2024-01-08
type Calendar struct {
	Holidays []string `yaml:"holidays"`

	holidaySet map[string]bool
}

func LoadCalendar(path string) (*Calendar, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("LoadCalendar: failed to read %s: %w", path, err)
	}

	var calendar Calendar
	if err := yaml.Unmarshal(data, &calendar); err != nil {
		return nil, fmt.Errorf("LoadCalendar: failed to parse %s: %w", path, err)
	}

	calendar.index()
	return &calendar, nil
}

func NewCalendar(holidays []string) *Calendar {
	calendar := &Calendar{Holidays: holidays}
	calendar.index()
	return calendar
}

func (c *Calendar) index() {
	c.holidaySet = make(map[string]bool, len(c.Holidays))
	for _, day := range c.Holidays {
		c.holidaySet[day] = true
	}
}

func (c *Calendar) IsHoliday(t time.Time) bool {
	return c.holidaySet[t.Format("2006-01-02")]
}
