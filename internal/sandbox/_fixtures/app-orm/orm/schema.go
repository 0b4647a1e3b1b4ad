package main

// Table descriptors for the billing store. Columns are fully qualified so
// they drop straight into select, join, and where expressions.

var Organizations = struct {
	Table, ID, Name, CreatedAt, ChurnedAt string
}{
	Table:     "organizations",
	ID:        "organizations.id",
	Name:      "organizations.name",
	CreatedAt: "organizations.created_at",
	ChurnedAt: "organizations.churned_at",
}

var Users = struct {
	Table, ID, OrgID, Email, CreatedAt string
}{
	Table:     "users",
	ID:        "users.id",
	OrgID:     "users.org_id",
	Email:     "users.email",
	CreatedAt: "users.created_at",
}

var Subscriptions = struct {
	Table, ID, OrgID, Plan, Status, StartedAt, CanceledAt string
}{
	Table:      "subscriptions",
	ID:         "subscriptions.id",
	OrgID:      "subscriptions.org_id",
	Plan:       "subscriptions.plan",
	Status:     "subscriptions.status",
	StartedAt:  "subscriptions.started_at",
	CanceledAt: "subscriptions.canceled_at",
}

var Payments = struct {
	Table, ID, OrgID, Amount, Status, PaidAt string
}{
	Table:  "payments",
	ID:     "payments.id",
	OrgID:  "payments.org_id",
	Amount: "payments.amount",
	Status: "payments.status",
	PaidAt: "payments.paid_at",
}

var APIUsage = struct {
	Table, UserID, Day, Calls string
}{
	Table:  "api_usage",
	UserID: "api_usage.user_id",
	Day:    "api_usage.day",
	Calls:  "api_usage.calls",
}

var Meta = struct {
	Table, AsOf string
}{
	Table: "meta",
	AsOf:  "meta.as_of",
}
