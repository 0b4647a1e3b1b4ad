package main

import "encoding/json"

// Record types for the billing analytics app. JSON tags mirror the export
// in data/dataset.json; all dates are ISO "YYYY-MM-DD" strings, which order
// lexicographically.

type Organization struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	CreatedAt string `json:"created_at"`
	ChurnedAt string `json:"churned_at"`
}

type User struct {
	ID        string `json:"id"`
	OrgID     string `json:"org_id"`
	Email     string `json:"email"`
	CreatedAt string `json:"created_at"`
}

type Subscription struct {
	ID         string `json:"id"`
	OrgID      string `json:"org_id"`
	Plan       string `json:"plan"`
	Status     string `json:"status"`
	StartedAt  string `json:"started_at"`
	CanceledAt string `json:"canceled_at"`
}

type Payment struct {
	ID     string  `json:"id"`
	OrgID  string  `json:"org_id"`
	Amount float64 `json:"amount"`
	Status string  `json:"status"`
	PaidAt string  `json:"paid_at"`
}

type APIUsage struct {
	UserID string `json:"user_id"`
	Day    string `json:"day"`
	Calls  int    `json:"calls"`
}

type Dataset struct {
	AsOf          string         `json:"as_of"`
	Organizations []Organization `json:"organizations"`
	Users         []User         `json:"users"`
	Subscriptions []Subscription `json:"subscriptions"`
	Payments      []Payment      `json:"payments"`
	APIUsage      []APIUsage     `json:"api_usage"`
}

// MustLoadDataset parses a dataset export.
func MustLoadDataset(raw string) Dataset {
	var d Dataset
	if err := json.Unmarshal([]byte(raw), &d); err != nil {
		panic(err)
	}
	return d
}
