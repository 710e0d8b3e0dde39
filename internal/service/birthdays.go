package service

import (
	"sort"

	"gitlab.com/dirk.krummacker/rolodex/internal/calendar"
	"gitlab.com/dirk.krummacker/rolodex/internal/model"
)

// upcomingBirthdays returns the birthdays of all contacts that occur between today and
// today + days (both inclusive), the nearest first. Contacts without a date of birth are
// skipped.
func upcomingBirthdays(contacts []model.Contact, today model.Date, days int) []model.UpcomingBirthday {
	last := today.AddDays(days)
	upcoming := []model.UpcomingBirthday{}
	for _, contact := range contacts {
		if contact.DateOfBirth == nil {
			continue
		}
		next := model.Date{Date: calendar.NextOccurrence(contact.DateOfBirth.Date, today.Date)}
		if next.After(last) {
			continue
		}
		upcoming = append(upcoming, model.UpcomingBirthday{
			Id:           contact.Id,
			FirstName:    contact.FirstName,
			LastName:     contact.LastName,
			NextBirthday: next,
			UpcomingAge:  calendar.UpcomingAge(contact.DateOfBirth.Date, today.Date),
		})
	}
	sort.SliceStable(upcoming, func(i, j int) bool {
		return upcoming[i].NextBirthday.Before(upcoming[j].NextBirthday)
	})
	return upcoming
}
