// Package calendar computes recurring annual dates such as birthdays.
package calendar

import (
	"time"

	"cloud.google.com/go/civil"
)

// NextOccurrence returns the next date on or after today on which the month and day of date
// recur. A February 29 is celebrated on February 28 in years that are not leap years.
func NextOccurrence(date, today civil.Date) civil.Date {
	next := civil.Date{Year: today.Year, Month: date.Month, Day: date.Day}
	if isLeapDay(next) && !IsLeapYear(next.Year) {
		next.Day = 28
	}
	if next.Before(today) {
		next = addYear(next)
	}
	return next
}

// UpcomingAge returns the age a person born on birthDate turns at the next occurrence of the
// birthday. The year of the occurrence is used as is, even when a February 29 was moved.
func UpcomingAge(birthDate, today civil.Date) int {
	return NextOccurrence(birthDate, today).Year - birthDate.Year
}

// IsLeapYear reports whether year has a February 29.
func IsLeapYear(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

// addYear moves d one year ahead. A February 29 becomes February 28 when the target year has
// no leap day; a February 28 stays February 28.
func addYear(d civil.Date) civil.Date {
	d.Year++
	if isLeapDay(d) && !IsLeapYear(d.Year) {
		d.Day = 28
	}
	return d
}

func isLeapDay(d civil.Date) bool {
	return d.Month == time.February && d.Day == 29
}
