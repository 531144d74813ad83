package models

import "strings"

// Label is the routing category assigned to a user request.
type Label string

const (
	LabelPricingCost          Label = "pricing_cost"
	LabelCorporateAdmin       Label = "corporate_admin"
	LabelKeyPersonnelStaffing Label = "key_personnel_staffing"
	LabelManagementTechnical  Label = "management_technical"
	LabelPastPerformance      Label = "past_performance"

	// LabelUnclassified routes to the generic assistant profile.
	LabelUnclassified Label = "unclassified"
)

// DefaultLabel is what the classifier settles on when the model output
// cannot be read as one of the domain labels.
const DefaultLabel = LabelCorporateAdmin

var domainLabels = []Label{
	LabelPricingCost,
	LabelCorporateAdmin,
	LabelKeyPersonnelStaffing,
	LabelManagementTechnical,
	LabelPastPerformance,
}

// DomainLabels returns the closed set of labels the classifier may produce.
func DomainLabels() []Label {
	out := make([]Label, len(domainLabels))
	copy(out, domainLabels)
	return out
}

// AllLabels returns the domain labels followed by LabelUnclassified.
func AllLabels() []Label {
	return append(DomainLabels(), LabelUnclassified)
}

// ParseLabel maps raw text onto a domain label. Anything outside the closed
// set yields (LabelUnclassified, false).
func ParseLabel(raw string) (Label, bool) {
	candidate := Label(strings.ToLower(strings.TrimSpace(raw)))
	for _, l := range domainLabels {
		if candidate == l {
			return l, true
		}
	}
	return LabelUnclassified, false
}

func (l Label) String() string {
	return string(l)
}
