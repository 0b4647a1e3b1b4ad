package main

// Typed accessors over the in-memory dataset. App code composes these
// rather than walking the raw slices directly.

// SucceededPayments returns every payment whose status is "succeeded".
func SucceededPayments(d Dataset) []Payment {
	var out []Payment
	for _, p := range d.Payments {
		if p.Status == "succeeded" {
			out = append(out, p)
		}
	}
	return out
}

// TotalRevenue sums the amounts of all succeeded payments.
func TotalRevenue(d Dataset) float64 {
	var total float64
	for _, p := range SucceededPayments(d) {
		total += p.Amount
	}
	return total
}

// RevenueByOrg sums succeeded payment amounts per organization.
func RevenueByOrg(d Dataset) map[string]float64 {
	out := make(map[string]float64)
	for _, p := range SucceededPayments(d) {
		out[p.OrgID] += p.Amount
	}
	return out
}

// UsersByOrg groups users by their organization id.
func UsersByOrg(d Dataset) map[string][]User {
	out := make(map[string][]User)
	for _, u := range d.Users {
		out[u.OrgID] = append(out[u.OrgID], u)
	}
	return out
}

// ChurnedOrgs returns the organizations whose churned_at is set.
func ChurnedOrgs(d Dataset) []Organization {
	var out []Organization
	for _, o := range d.Organizations {
		if o.ChurnedAt != "" {
			out = append(out, o)
		}
	}
	return out
}
