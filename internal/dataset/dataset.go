// Package dataset generates the synthetic SaaS billing dataset every
// architecture is benchmarked against, computes the ground-truth metric
// values, and materializes the data as JSON, CSV, and SQLite tables. All
// dates are ISO "2006-01-02" strings so the same values flow unchanged
// through JSON, SQL, and interpreted code.
package dataset

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

type Dataset struct {
	AsOf          string         `json:"as_of"`
	Organizations []Organization `json:"organizations"`
	Users         []User         `json:"users"`
	Subscriptions []Subscription `json:"subscriptions"`
	Payments      []Payment      `json:"payments"`
	APIUsage      []APIUsage     `json:"api_usage"`
}

type Organization struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	CreatedAt string `json:"created_at"`
	ChurnedAt string `json:"churned_at,omitempty"`
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
	CanceledAt string `json:"canceled_at,omitempty"`
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

// asOf is the fixed reference date; perturbation varies the data, never the
// clock, so expected values stay deterministic per seed.
const asOf = "2026-02-01"

var plans = []struct {
	Name  string
	Price float64
}{
	{"starter", 49},
	{"growth", 199},
	{"scale", 499},
}

var orgNames = []string{
	"acme", "globex", "initech", "umbrella", "stark", "wayne",
	"wonka", "tyrell", "cyberdyne", "hooli", "dunder", "vandelay",
}

// Generate builds the dataset for a seed. Same seed, same dataset.
func Generate(seed int64) *Dataset {
	rng := rand.New(rand.NewSource(seed))
	ds := &Dataset{AsOf: asOf}

	userN := 0
	payN := 0
	for i, name := range orgNames {
		orgID := fmt.Sprintf("org-%02d", i+1)
		createdMonths := 3 + rng.Intn(21)
		org := Organization{
			ID:        orgID,
			Name:      name,
			CreatedAt: addMonths(asOf, -createdMonths),
		}
		if rng.Float64() < 0.25 {
			org.ChurnedAt = addDays(asOf, -(7 + rng.Intn(150)))
		}
		ds.Organizations = append(ds.Organizations, org)

		plan := plans[rng.Intn(len(plans))]
		sub := Subscription{
			ID:        fmt.Sprintf("sub-%02d", i+1),
			OrgID:     orgID,
			Plan:      plan.Name,
			Status:    "active",
			StartedAt: org.CreatedAt,
		}
		if org.ChurnedAt != "" {
			sub.Status = "canceled"
			sub.CanceledAt = org.ChurnedAt
		}
		ds.Subscriptions = append(ds.Subscriptions, sub)

		months := createdMonths
		if months > 12 {
			months = 12
		}
		for m := 1; m <= months; m++ {
			payN++
			status := "succeeded"
			switch r := rng.Float64(); {
			case r < 0.06:
				status = "failed"
			case r < 0.10:
				status = "refunded"
			}
			ds.Payments = append(ds.Payments, Payment{
				ID:     fmt.Sprintf("pay-%04d", payN),
				OrgID:  orgID,
				Amount: plan.Price,
				Status: status,
				PaidAt: addDays(addMonths(asOf, -m), rng.Intn(5)),
			})
		}

		userCount := 1 + rng.Intn(5)
		for u := 0; u < userCount; u++ {
			userN++
			user := User{
				ID:        fmt.Sprintf("user-%03d", userN),
				OrgID:     orgID,
				Email:     fmt.Sprintf("user%d@%s.example.com", userN, name),
				CreatedAt: addDays(org.CreatedAt, rng.Intn(30)),
			}
			ds.Users = append(ds.Users, user)

			// Churned orgs go quiet; elsewhere about 70% of users stay
			// active inside the 30-day window, the rest only have stale
			// events.
			active := org.ChurnedAt == "" && rng.Float64() < 0.7
			if active {
				for e := 0; e < 1+rng.Intn(8); e++ {
					ds.APIUsage = append(ds.APIUsage, APIUsage{
						UserID: user.ID,
						Day:    addDays(asOf, -rng.Intn(30)),
						Calls:  1 + rng.Intn(200),
					})
				}
			} else if rng.Float64() < 0.5 {
				ds.APIUsage = append(ds.APIUsage, APIUsage{
					UserID: user.ID,
					Day:    addDays(asOf, -(31 + rng.Intn(14))),
					Calls:  1 + rng.Intn(50),
				})
			}
		}
	}
	return ds
}

// DeriveSeed maps (base seed, run index) to the seed for a perturbed run.
// Run index 0 reproduces the base dataset.
func DeriveSeed(base int64, runIndex int) int64 {
	return base + int64(runIndex)*1000003
}

func (ds *Dataset) WriteJSON(path string) error {
	data, err := json.MarshalIndent(ds, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling dataset: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating dataset dir: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("writing dataset: %w", err)
	}
	return nil
}

// WriteCSVs exports one CSV per entity for the exploration sandbox. Column
// names match the SQLite schema.
func (ds *Dataset) WriteCSVs(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating csv dir: %w", err)
	}
	write := func(name string, header []string, rows [][]string) error {
		f, err := os.Create(filepath.Join(dir, name))
		if err != nil {
			return fmt.Errorf("creating %s: %w", name, err)
		}
		defer f.Close()
		w := csv.NewWriter(f)
		if err := w.Write(header); err != nil {
			return err
		}
		if err := w.WriteAll(rows); err != nil {
			return err
		}
		w.Flush()
		return w.Error()
	}

	var rows [][]string
	for _, o := range ds.Organizations {
		rows = append(rows, []string{o.ID, o.Name, o.CreatedAt, o.ChurnedAt})
	}
	if err := write("organizations.csv", []string{"id", "name", "created_at", "churned_at"}, rows); err != nil {
		return err
	}

	rows = nil
	for _, u := range ds.Users {
		rows = append(rows, []string{u.ID, u.OrgID, u.Email, u.CreatedAt})
	}
	if err := write("users.csv", []string{"id", "org_id", "email", "created_at"}, rows); err != nil {
		return err
	}

	rows = nil
	for _, s := range ds.Subscriptions {
		rows = append(rows, []string{s.ID, s.OrgID, s.Plan, s.Status, s.StartedAt, s.CanceledAt})
	}
	if err := write("subscriptions.csv", []string{"id", "org_id", "plan", "status", "started_at", "canceled_at"}, rows); err != nil {
		return err
	}

	rows = nil
	for _, p := range ds.Payments {
		rows = append(rows, []string{p.ID, p.OrgID, strconv.FormatFloat(p.Amount, 'f', 2, 64), p.Status, p.PaidAt})
	}
	if err := write("payments.csv", []string{"id", "org_id", "amount", "status", "paid_at"}, rows); err != nil {
		return err
	}

	rows = nil
	for _, u := range ds.APIUsage {
		rows = append(rows, []string{u.UserID, u.Day, strconv.Itoa(u.Calls)})
	}
	return write("api_usage.csv", []string{"user_id", "day", "calls"}, rows)
}

func parseDay(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func addDays(s string, n int) string {
	return parseDay(s).AddDate(0, 0, n).Format("2006-01-02")
}

func addMonths(s string, n int) string {
	return parseDay(s).AddDate(0, n, 0).Format("2006-01-02")
}
