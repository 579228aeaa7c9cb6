package payments

import "sort"

// Plan is a purchasable product. Amount is in the smallest currency unit.
// Subscription plans grant no generations; they unlock premium models while
// the gateway reports the subscription active.
type Plan struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Grants       int    `json:"grants"`
	Amount       int64  `json:"amount"`
	Subscription bool   `json:"subscription"`
}

const (
	PlanSmall       = "gen_small"
	PlanMedium      = "gen_medium"
	PlanLarge       = "gen_large"
	PlanPlusMonthly = "plus_monthly"
)

var plans = map[string]Plan{
	PlanSmall:       {ID: PlanSmall, Name: "50 generations", Grants: 50, Amount: 9900},
	PlanMedium:      {ID: PlanMedium, Name: "150 generations", Grants: 150, Amount: 24900},
	PlanLarge:       {ID: PlanLarge, Name: "500 generations", Grants: 500, Amount: 69900},
	PlanPlusMonthly: {ID: PlanPlusMonthly, Name: "Plus subscription", Amount: 165000, Subscription: true},
}

func LookupPlan(id string) (Plan, bool) {
	p, ok := plans[id]
	return p, ok
}

// Plans returns the plan table ordered by price.
func Plans() []Plan {
	out := make([]Plan, 0, len(plans))
	for _, p := range plans {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Amount < out[j].Amount })
	return out
}
