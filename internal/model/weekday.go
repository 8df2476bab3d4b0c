package model

import (
	"fmt"
	"strings"
	"time"
)

var weekdayByName = map[string]time.Weekday{}

func init() {
	for wd := time.Sunday; wd <= time.Saturday; wd++ {
		long := strings.ToLower(wd.String())
		weekdayByName[long] = wd
		weekdayByName[long[:3]] = wd
	}
}

// ParseWeekday accepts the canonical English long form ("Monday") and,
// leniently, the three-letter form ("Mon"), case-insensitively.
func ParseWeekday(name string) (time.Weekday, error) {
	wd, ok := weekdayByName[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return 0, fmt.Errorf("unknown weekday %q", name)
	}
	return wd, nil
}

// ISOWeekday numbers weekdays Monday=1 .. Sunday=7.
func ISOWeekday(wd time.Weekday) int {
	if wd == time.Sunday {
		return 7
	}
	return int(wd)
}
