package main

// Reference queries showing the house style for new metrics. Builders
// return the Query; callers decide whether to render or execute it.

// MonthlyRevenue groups succeeded payment revenue by calendar month.
func MonthlyRevenue() Query {
	return From(Payments.Table).
		Select("strftime('%Y-%m', "+Payments.PaidAt+") AS month", Sum(Payments.Amount)).
		Where(Eq(Payments.Status, "succeeded")).
		GroupBy("month")
}

// OrgUserCounts counts users per organization, including empty ones.
func OrgUserCounts() Query {
	return From(Organizations.Table).
		Select(Organizations.ID, Count(Users.ID)).
		LeftJoin(Users.Table, Users.OrgID+" = "+Organizations.ID).
		GroupBy(Organizations.ID)
}

// RecentlyActiveUsers selects users with an API call in the last n days
// before the reference date in meta.
func RecentlyActiveUsers(n int) Query {
	return From(APIUsage.Table).
		Select("DISTINCT " + APIUsage.UserID).
		Join(Meta.Table, "1 = 1").
		Where(
			Gt(APIUsage.Calls, "0"),
			Gt(APIUsage.Day, DaysAgo(Meta.AsOf, n)),
			LtEq(APIUsage.Day, Meta.AsOf),
		)
}
