package runtime

import (
	"errors"
	"os"
	"strings"
	"time"

	"github.com/lestrrat-go/strftime"
)

func createOSLib(s *State) *Table {
	return s.newLib("os", libFuncs{
		"clock":  stdOSClock,
		"date":   stdOSDate,
		"getenv": stdOSGetenv,
		"time":   stdOSTime,
	})
}

func stdOSClock(s *State) (int, error) {
	s.PushNumber(time.Since(s.started).Seconds())
	return 1, nil
}

func stdOSGetenv(s *State) (int, error) {
	if err := s.CheckArgs("os.getenv", "string"); err != nil {
		return 0, err
	}
	name, _ := s.GetString(0)
	if val, ok := os.LookupEnv(name); ok {
		s.PushString(val)
	} else {
		s.PushNil()
	}
	return 1, nil
}

var timeFields = []string{"year", "month", "day", "hour", "min", "sec"}

func stdOSTime(s *State) (int, error) {
	if err := s.CheckArgs("os.time", "~table"); err != nil {
		return 0, err
	}
	tbl, ok := s.GetTable(0)
	if !ok {
		s.PushNumber(float64(time.Now().Unix()))
		return 1, nil
	}
	parts := map[string]int{"hour": 12}
	for _, field := range timeFields {
		val := tbl.Get(s.NewString(field))
		if num, isNum := val.(float64); isNum {
			parts[field] = int(num)
		} else if _, hasDefault := parts[field]; !hasDefault && field != "min" && field != "sec" {
			return 0, argumentErr(1, "os.time", errors.New("field '"+field+"' missing in date table"))
		}
	}
	date := time.Date(parts["year"], time.Month(parts["month"]), parts["day"],
		parts["hour"], parts["min"], parts["sec"], 0, time.Local)
	s.PushNumber(float64(date.Unix()))
	return 1, nil
}

func stdOSDate(s *State) (int, error) {
	if err := s.CheckArgs("os.date", "~string", "~number"); err != nil {
		return 0, err
	}
	format := "%c"
	if str, ok := s.GetString(0); ok {
		format = str
	}
	fmtTime := time.Now()
	if secs, ok := s.GetNumber(1); ok {
		fmtTime = time.Unix(int64(secs), 0)
	}
	if utc, ok := strings.CutPrefix(format, "!"); ok {
		format, fmtTime = utc, fmtTime.UTC()
	}
	if strings.TrimSpace(format) == "*t" {
		tbl := s.NewTable()
		fields := map[string]any{
			"year":  float64(fmtTime.Year()),
			"month": float64(fmtTime.Month()),
			"day":   float64(fmtTime.Day()),
			"hour":  float64(fmtTime.Hour()),
			"min":   float64(fmtTime.Minute()),
			"sec":   float64(fmtTime.Second()),
			"wday":  float64(fmtTime.Weekday() + 1),
			"yday":  float64(fmtTime.YearDay()),
			"isdst": fmtTime.IsDST(),
		}
		for key, val := range fields {
			_ = tbl.Set(s.NewString(key), val)
		}
		s.PushTable(tbl)
		return 1, nil
	}
	strf, err := strftime.New(format)
	if err != nil {
		return 0, argumentErr(1, "os.date", errors.New("invalid conversion specifier '"+format+"'"))
	}
	s.PushString(strf.FormatString(fmtTime))
	return 1, nil
}
