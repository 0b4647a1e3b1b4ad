package dataset

// Task is one analytics question. The architecture-specific artifact names
// (FuncName, FileName, MeasureName) are the canonical identifiers validators
// look for first; Keywords feed the fallback discovery heuristic. Expected
// is fixed at construction, before any agent sees the workspace.
type Task struct {
	ID          string
	Description string
	Metric      string
	FuncName    string
	FileName    string
	MeasureName string
	Keywords    []string
	Expected    float64
	Tolerance   float64
}

// Tasks builds the task catalog for a dataset. Integer-scale currency
// metrics tolerate ±1; 4-decimal ratios tolerate ±0.001.
func Tasks(ds *Dataset) []Task {
	return []Task{
		{
			ID: "active_user_arpu",
			Description: "Compute average revenue per active user (ARPU): total revenue from " +
				"succeeded payments divided by the number of users with at least one API call " +
				"in the 30 days ending at the reference date (as_of). Users without recent API " +
				"activity do not count as active. Return 0 if there are no active users.",
			Metric:      "arpu",
			FuncName:    "ActiveUserARPU",
			FileName:    "active_user_arpu.sql",
			MeasureName: "active_user_arpu",
			Keywords:    []string{"arpu", "active_user", "revenue_per_user"},
			Expected:    ActiveUserARPU(ds),
			Tolerance:   1,
		},
		{
			ID: "org_churn_rate",
			Description: "Compute the organization churn rate: among organizations that have at " +
				"least one user, the fraction that have churned (churned_at set), rounded to 4 " +
				"decimal places. Return 0 if no organization has any users.",
			Metric:      "churn_rate",
			FuncName:    "OrgChurnRate",
			FileName:    "org_churn_rate.sql",
			MeasureName: "org_churn_rate",
			Keywords:    []string{"churn", "churn_rate", "churned"},
			Expected:    OrgChurnRate(ds),
			Tolerance:   0.001,
		},
		{
			ID: "avg_org_ltv",
			Description: "Compute average organization lifetime value (LTV): total revenue from " +
				"succeeded payments divided by the number of organizations that have at least " +
				"one succeeded payment. Return 0 if there are none.",
			Metric:      "ltv",
			FuncName:    "AvgOrgLTV",
			FileName:    "avg_org_ltv.sql",
			MeasureName: "avg_org_ltv",
			Keywords:    []string{"ltv", "lifetime_value", "avg_org"},
			Expected:    AvgOrgLTV(ds),
			Tolerance:   1,
		},
	}
}

// FilterTasks keeps the tasks whose IDs appear in ids; an empty filter keeps
// everything.
func FilterTasks(tasks []Task, ids []string) []Task {
	if len(ids) == 0 {
		return tasks
	}
	want := map[string]bool{}
	for _, id := range ids {
		want[id] = true
	}
	var out []Task
	for _, t := range tasks {
		if want[t.ID] {
			out = append(out, t)
		}
	}
	return out
}
