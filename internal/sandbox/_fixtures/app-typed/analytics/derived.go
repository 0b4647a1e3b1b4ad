package main

import "time"

// Derived views that depend on the dataset's reference date.

// DaysBefore returns the ISO date n days before day.
func DaysBefore(day string, n int) string {
	t, err := time.Parse("2006-01-02", day)
	if err != nil {
		return day
	}
	return t.AddDate(0, 0, -n).Format("2006-01-02")
}

// ActiveUserIDs returns the ids of users with at least one API call in the
// trailing window of days ending at the dataset's as_of date.
func ActiveUserIDs(d Dataset, days int) map[string]bool {
	cutoff := DaysBefore(d.AsOf, days)
	out := make(map[string]bool)
	for _, u := range d.APIUsage {
		if u.Calls > 0 && u.Day > cutoff && u.Day <= d.AsOf {
			out[u.UserID] = true
		}
	}
	return out
}

// OrgsWithUsers returns the organizations that have at least one user.
func OrgsWithUsers(d Dataset) []Organization {
	byOrg := UsersByOrg(d)
	var out []Organization
	for _, o := range d.Organizations {
		if len(byOrg[o.ID]) > 0 {
			out = append(out, o)
		}
	}
	return out
}
