package services

import (
	"sort"
	"time"

	"github.com/contactsbook/apiserver/types"
)

// nextBirthday returns the first occurrence of birthday on or after today.
// Feb 29 birthdays fall on Feb 28 in common years.
func nextBirthday(birthday, today time.Time) time.Time {
	year := today.Year()
	next := birthdayIn(birthday, year)
	if next.Before(today) {
		next = birthdayIn(birthday, year+1)
	}
	return next
}

func birthdayIn(birthday time.Time, year int) time.Time {
	month, day := birthday.Month(), birthday.Day()
	if month == time.February && day == 29 && !isLeap(year) {
		day = 28
	}
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func isLeap(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

func upcomingBirthdays(contacts []types.Contact, now time.Time, window time.Duration) []types.Contact {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	until := today.Add(window)

	type dated struct {
		contact types.Contact
		next    time.Time
	}
	matches := make([]dated, 0)
	for _, c := range contacts {
		if c.Birthday.IsZero() {
			continue
		}
		next := nextBirthday(c.Birthday.Time, today)
		if !next.After(until) {
			matches = append(matches, dated{contact: c, next: next})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].next.Before(matches[j].next)
	})

	out := make([]types.Contact, 0, len(matches))
	for _, m := range matches {
		out = append(out, m.contact)
	}
	return out
}
