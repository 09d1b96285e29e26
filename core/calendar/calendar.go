// Package calendar converts between the Gregorian and the Jalali (Solar Hijri) calendars.
package calendar

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	ptime "github.com/yaa110/go-persian-calendar"
)

var (
	// Location is the school's local time zone.
	Location = mustLoadLocation("Asia/Tehran")

	ErrInvalidDate   = errors.New("invalid jalali date, expected YYYY/MM/DD")
	ErrInvalidClock  = errors.New("invalid time, expected HH:MM")
	ErrInvalidPeriod = errors.New("invalid period, expected YYYY-MM")
)

func mustLoadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.FixedZone("IRST", 3*60*60+30*60)
	}
	return loc
}

// Date is a day of the Jalali calendar.
type Date struct {
	Year  int
	Month int
	Day   int
}

// ToJalali returns the Jalali day of t in Location.
func ToJalali(t time.Time) Date {
	pt := ptime.New(t.In(Location))
	return Date{Year: pt.Year(), Month: int(pt.Month()), Day: pt.Day()}
}

// Time returns the Gregorian instant at hh:mm of d in Location.
func (d Date) Time(hh, mm int) time.Time {
	return ptime.Date(d.Year, ptime.Month(d.Month), d.Day, hh, mm, 0, 0, Location).Time()
}

// ToGregorian returns the Gregorian midnight of d in Location.
func ToGregorian(d Date) time.Time {
	return d.Time(0, 0)
}

func (d Date) String() string {
	return fmt.Sprintf("%04d/%02d/%02d", d.Year, d.Month, d.Day)
}

func (d Date) IsZero() bool { return d == Date{} }

func (d Date) valid() bool {
	if d.Year < 1 || d.Month < 1 || d.Month > 12 || d.Day < 1 {
		return false
	}
	switch {
	case d.Month <= 6:
		return d.Day <= 31
	case d.Month <= 11:
		return d.Day <= 30
	default:
		// Esfand: round-trip through the converter to reject 30 Esfand in common years
		return d.Day <= 30 && ToJalali(ToGregorian(d)) == d
	}
}

// Parse reads a "YYYY/MM/DD" Jalali date. "-" is accepted as separator too.
func Parse(s string) (Date, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), "-", "/")
	parts := strings.Split(s, "/")
	if len(parts) != 3 {
		return Date{}, ErrInvalidDate
	}
	nums := make([]int, 3)
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return Date{}, ErrInvalidDate
		}
		nums[i] = n
	}
	d := Date{Year: nums[0], Month: nums[1], Day: nums[2]}
	if !d.valid() {
		return Date{}, ErrInvalidDate
	}
	return d, nil
}

// ParseClock reads a 24h "HH:MM" time of day.
func ParseClock(s string) (hh, mm int, err error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return 0, 0, ErrInvalidClock
	}
	if hh, err = strconv.Atoi(parts[0]); err != nil || hh < 0 || hh > 23 {
		return 0, 0, ErrInvalidClock
	}
	if mm, err = strconv.Atoi(parts[1]); err != nil || mm < 0 || mm > 59 {
		return 0, 0, ErrInvalidClock
	}
	return hh, mm, nil
}

// ParseDateTime combines a Jalali date and an "HH:MM" clock into a Gregorian instant.
func ParseDateTime(date, clock string) (time.Time, error) {
	d, err := Parse(date)
	if err != nil {
		return time.Time{}, err
	}
	hh, mm, err := ParseClock(clock)
	if err != nil {
		return time.Time{}, err
	}
	return d.Time(hh, mm), nil
}

// Period returns the Jalali "YYYY-MM" label of the month containing t.
func Period(t time.Time) string {
	d := ToJalali(t)
	return fmt.Sprintf("%04d-%02d", d.Year, d.Month)
}

// ParsePeriod validates and normalises a "YYYY-MM" label.
func ParsePeriod(s string) (string, error) {
	parts := strings.Split(strings.TrimSpace(s), "-")
	if len(parts) != 2 {
		return "", ErrInvalidPeriod
	}
	y, err := strconv.Atoi(parts[0])
	if err != nil || y < 1 {
		return "", ErrInvalidPeriod
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 1 || m > 12 {
		return "", ErrInvalidPeriod
	}
	return fmt.Sprintf("%04d-%02d", y, m), nil
}

// MonthName returns the Persian name of a Jalali month (1-12).
func MonthName(month int) string {
	if month < 1 || month > 12 {
		return ""
	}
	return ptime.Month(month).String()
}

// Window is a closed time range.
type Window struct {
	Start time.Time
	End   time.Time
}

func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

func (w Window) Upcoming(t time.Time) bool { return t.Before(w.Start) }

func (w Window) Passed(t time.Time) bool { return t.After(w.End) }
