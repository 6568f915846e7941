package suggestion

import (
	"transaction-automation-service/internal/normalizer"
)

// MerchantRule maps keywords found in raw text to a canonical merchant name
type MerchantRule struct {
	Name     string   `yaml:"name" json:"name"`
	Keywords []string `yaml:"keywords" json:"keywords"`
}

// ReasonRule maps a category to a default narrative reason
type ReasonRule struct {
	Category string `yaml:"category" json:"category"`
	Reason   string `yaml:"reason" json:"reason"`
}

// LocationRule maps keywords to a canonical location name
type LocationRule struct {
	Location string   `yaml:"location" json:"location"`
	Keywords []string `yaml:"keywords" json:"keywords"`
}

// Tables holds the keyword tables consulted by the engine
type Tables struct {
	Merchants []MerchantRule `yaml:"merchants" json:"merchants"`
	Reasons   []ReasonRule   `yaml:"reasons" json:"reasons"`
	Locations []LocationRule `yaml:"locations" json:"locations"`
}

// DefaultTables returns the built-in keyword tables
func DefaultTables() *Tables {
	return &Tables{
		Merchants: []MerchantRule{
			{Name: "Ethio Telecom", Keywords: []string{"ethio telecom", "ethiotelecom", "ኢትዮ ቴሌኮም"}},
			{Name: "Safaricom", Keywords: []string{"safaricom"}},
			{Name: "Ethiopian Airlines", Keywords: []string{"ethiopian airlines", "et airlines"}},
			{Name: "Shoa Supermarket", Keywords: []string{"shoa"}},
			{Name: "Queens Supermarket", Keywords: []string{"queens"}},
			{Name: "Fresh Corner", Keywords: []string{"fresh corner"}},
			{Name: "Tomoca Coffee", Keywords: []string{"tomoca"}},
			{Name: "Kaldi's Coffee", Keywords: []string{"kaldis", "kaldi's"}},
			{Name: "Ride", Keywords: []string{"ride"}},
			{Name: "Feres", Keywords: []string{"feres"}},
			{Name: "Netflix", Keywords: []string{"netflix"}},
			{Name: "Spotify", Keywords: []string{"spotify"}},
			{Name: "DStv", Keywords: []string{"dstv"}},
			{Name: "Ethiopian Electric Utility", Keywords: []string{"eeu", "eelpa", "electric utility"}},
		},
		Reasons: []ReasonRule{
			{Category: normalizer.CategoryFood, Reason: "Meal"},
			{Category: normalizer.CategoryGroceries, Reason: "Grocery shopping"},
			{Category: normalizer.CategoryTransportation, Reason: "Transport fare"},
			{Category: normalizer.CategoryUtilities, Reason: "Utility bill"},
			{Category: normalizer.CategoryEntertainment, Reason: "Subscription"},
			{Category: normalizer.CategoryHealth, Reason: "Health expense"},
			{Category: normalizer.CategoryEducation, Reason: "School fees"},
			{Category: normalizer.CategoryHousing, Reason: "Rent"},
			{Category: normalizer.CategoryTravel, Reason: "Travel"},
			{Category: normalizer.CategoryShopping, Reason: "Shopping"},
			{Category: normalizer.CategoryTransfer, Reason: "Money transfer"},
			{Category: normalizer.CategoryIncome, Reason: "Salary"},
		},
		Locations: []LocationRule{
			{Location: "Bole", Keywords: []string{"bole", "ቦሌ"}},
			{Location: "Piassa", Keywords: []string{"piassa", "piazza", "ፒያሳ"}},
			{Location: "Edna Mall", Keywords: []string{"edna mall", "edna"}},
			{Location: "Merkato", Keywords: []string{"merkato", "mercato", "መርካቶ"}},
			{Location: "Kazanchis", Keywords: []string{"kazanchis", "ካዛንቺስ"}},
			{Location: "Megenagna", Keywords: []string{"megenagna", "መገናኛ"}},
			{Location: "Sarbet", Keywords: []string{"sarbet"}},
			{Location: "CMC", Keywords: []string{"cmc"}},
		},
	}
}

func (t *Tables) reasonFor(category string) (string, bool) {
	for _, rule := range t.Reasons {
		if rule.Category == category {
			return rule.Reason, true
		}
	}
	return "", false
}
