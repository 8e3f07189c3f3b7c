// internal/services/eligibility/partner.go
package eligibility

import "strings"

// DefaultTradingPartnerID is used when no rule matches the insurer name.
const DefaultTradingPartnerID = "61101" // Humana

// partnerRule maps a free-text insurer name to a trading-partner service id.
// Rules are evaluated top to bottom and the first match wins, so order is
// part of the contract: a rule below a broader one is unreachable.
type partnerRule struct {
	matches   func(name string) bool
	partnerID string
}

var partnerRules = []partnerRule{
	{nameContains("humana"), "61101"},
}

// ResolveTradingPartner maps an insurer name as typed by the customer to the
// trading-partner service id used by the eligibility clearinghouse.
func ResolveTradingPartner(insurance string) string {
	name := strings.ToLower(strings.TrimSpace(insurance))
	for _, rule := range partnerRules {
		if rule.matches(name) {
			return rule.partnerID
		}
	}
	return DefaultTradingPartnerID
}

func nameContains(substr string) func(string) bool {
	return func(name string) bool {
		return strings.Contains(name, substr)
	}
}
