package dataset

import "math"

// The metric functions below are the single source of ground truth: every
// architecture's validator is scored against these, computed before any
// agent interaction.

// ActiveUserARPU is total succeeded payment revenue divided by the number of
// users with at least one API call in the 30 days ending at AsOf. Zero
// active users means zero, never a division by zero.
func ActiveUserARPU(ds *Dataset) float64 {
	cutoff := addDays(ds.AsOf, -30)
	active := map[string]bool{}
	for _, u := range ds.APIUsage {
		if u.Calls > 0 && u.Day > cutoff && u.Day <= ds.AsOf {
			active[u.UserID] = true
		}
	}
	if len(active) == 0 {
		return 0
	}
	var revenue float64
	for _, p := range ds.Payments {
		if p.Status == "succeeded" {
			revenue += p.Amount
		}
	}
	return revenue / float64(len(active))
}

// OrgChurnRate is the churned fraction of organizations that have at least
// one user, rounded to 4 decimals. No qualifying organizations means zero.
func OrgChurnRate(ds *Dataset) float64 {
	hasUser := map[string]bool{}
	for _, u := range ds.Users {
		hasUser[u.OrgID] = true
	}
	var total, churned int
	for _, o := range ds.Organizations {
		if !hasUser[o.ID] {
			continue
		}
		total++
		if o.ChurnedAt != "" {
			churned++
		}
	}
	if total == 0 {
		return 0
	}
	return math.Round(float64(churned)/float64(total)*10000) / 10000
}

// AvgOrgLTV is total succeeded payment revenue divided by the number of
// organizations with at least one succeeded payment.
func AvgOrgLTV(ds *Dataset) float64 {
	perOrg := map[string]float64{}
	for _, p := range ds.Payments {
		if p.Status == "succeeded" {
			perOrg[p.OrgID] += p.Amount
		}
	}
	if len(perOrg) == 0 {
		return 0
	}
	var total float64
	for _, v := range perOrg {
		total += v
	}
	return total / float64(len(perOrg))
}
