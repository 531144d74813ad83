package agents

import "github.com/xaenox/proposal-assistant/internal/models"

// Profile is the specialty persona used to answer a request.
type Profile struct {
	Label        models.Label
	Name         string
	SystemPrompt string
}

var (
	pricingCost = Profile{
		Label:        models.LabelPricingCost,
		Name:         "Pricing & Cost",
		SystemPrompt: "You are a Pricing & Cost expert for government proposals.",
	}
	corporateAdmin = Profile{
		Label:        models.LabelCorporateAdmin,
		Name:         "Corporate & Administrative",
		SystemPrompt: "You are a Corporate & Administrative data expert for proposals.",
	}
	keyPersonnelStaffing = Profile{
		Label:        models.LabelKeyPersonnelStaffing,
		Name:         "Key Personnel & Staffing",
		SystemPrompt: "You are a Key Personnel & Staffing expert for proposals.",
	}
	managementTechnical = Profile{
		Label:        models.LabelManagementTechnical,
		Name:         "Management & Technical Approach",
		SystemPrompt: "You are a Management & Technical Approach expert for DOT contracts.",
	}
	pastPerformance = Profile{
		Label:        models.LabelPastPerformance,
		Name:         "Past Performance",
		SystemPrompt: "You are a Past Performance expert for government proposals.",
	}
	generic = Profile{
		Label:        models.LabelUnclassified,
		Name:         "Proposal Assistant",
		SystemPrompt: "You are a helpful proposal assistant.",
	}
)

// Route returns the profile for label. Values outside the label set get the
// generic proposal assistant.
func Route(label models.Label) Profile {
	//exhaustive:enforce
	switch label {
	case models.LabelPricingCost:
		return pricingCost
	case models.LabelCorporateAdmin:
		return corporateAdmin
	case models.LabelKeyPersonnelStaffing:
		return keyPersonnelStaffing
	case models.LabelManagementTechnical:
		return managementTechnical
	case models.LabelPastPerformance:
		return pastPerformance
	case models.LabelUnclassified:
		return generic
	default:
		return generic
	}
}

// Profiles lists every profile in label order.
func Profiles() []Profile {
	labels := models.AllLabels()
	out := make([]Profile, 0, len(labels))
	for _, l := range labels {
		out = append(out, Route(l))
	}
	return out
}
