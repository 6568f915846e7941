package normalizer

import (
	"transaction-automation-service/internal/extract"
)

// Category vocabulary
const (
	CategoryFood           = "Food"
	CategoryGroceries      = "Groceries"
	CategoryTransportation = "Transportation"
	CategoryUtilities      = "Utilities"
	CategoryEntertainment  = "Entertainment"
	CategoryHealth         = "Health"
	CategoryEducation      = "Education"
	CategoryShopping       = "Shopping"
	CategoryHousing        = "Housing"
	CategoryTravel         = "Travel"
	CategoryTransfer       = "Transfer"
	CategoryIncome         = "Income"
	CategoryOther          = "Other"
)

// Categories returns the controlled category vocabulary
func Categories() []string {
	return []string{
		CategoryFood, CategoryGroceries, CategoryTransportation, CategoryUtilities,
		CategoryEntertainment, CategoryHealth, CategoryEducation, CategoryShopping,
		CategoryHousing, CategoryTravel, CategoryTransfer, CategoryIncome, CategoryOther,
	}
}

// IsKnownCategory reports whether c belongs to the vocabulary
func IsKnownCategory(c string) bool {
	for _, known := range Categories() {
		if c == known {
			return true
		}
	}
	return false
}

// Rule maps keywords to a category
type Rule struct {
	Category string   `yaml:"category" json:"category"`
	Keywords []string `yaml:"keywords" json:"keywords"`
}

// DefaultRules returns the ordered keyword table. Earlier rules win.
func DefaultRules() []Rule {
	return []Rule{
		{CategoryGroceries, []string{"supermarket", "grocery", "groceries", "shoa", "fresh corner", "queens", "ሱፐርማርኬት"}},
		{CategoryFood, []string{"restaurant", "cafe", "coffee", "pizza", "burger", "kitchen", "bakery", "food", "lunch", "dinner", "kitfo", "ምግብ", "ቡና", "ካፌ", "ምግብ ቤት"}},
		{CategoryTransportation, []string{"taxi", "ride", "feres", "uber", "fuel", "petrol", "parking", "transport", "bus", "ታክሲ", "ነዳጅ"}},
		{CategoryUtilities, []string{"ethio telecom", "telecom", "electric", "electricity", "eelpa", "water", "internet", "airtime", "safaricom", "ኤሌክትሪክ", "ውሃ", "ቴሌኮም"}},
		{CategoryEntertainment, []string{"netflix", "spotify", "dstv", "showmax", "cinema", "movie", "youtube", "canal+", "ፊልም"}},
		{CategoryHealth, []string{"pharmacy", "hospital", "clinic", "medical", "gym", "fitness", "ሆስፒታል", "ፋርማሲ"}},
		{CategoryEducation, []string{"school", "university", "college", "tuition", "academy", "course", "ትምህርት"}},
		{CategoryHousing, []string{"rent", "landlord", "condominium", "real estate", "ኪራይ"}},
		{CategoryTravel, []string{"airlines", "airline", "hotel", "flight", "travel", "lodge", "አየር መንገድ"}},
		{CategoryShopping, []string{"mall", "shop", "store", "boutique", "jumia", "amazon", "ሱቅ"}},
		{CategoryTransfer, []string{"transfer", "remittance", "ዝውውር"}},
		{CategoryIncome, []string{"salary", "payroll", "dividend", "ደመወዝ"}},
	}
}

// Categorizer assigns categories from an ordered keyword table
type Categorizer struct {
	rules []Rule
}

// NewCategorizer creates a categorizer. A nil rule list uses DefaultRules.
func NewCategorizer(rules []Rule) *Categorizer {
	if rules == nil {
		rules = DefaultRules()
	}
	return &Categorizer{rules: rules}
}

// Match returns the first rule whose keyword appears in text as a whole word
func (c *Categorizer) Match(text string) (category string, keyword string, ok bool) {
	if text == "" {
		return "", "", false
	}
	for _, rule := range c.rules {
		for _, kw := range rule.Keywords {
			if extract.ContainsWord(text, kw) {
				return rule.Category, kw, true
			}
		}
	}
	return "", "", false
}

// Categorize returns the matched category or Other
func (c *Categorizer) Categorize(text string) string {
	if category, _, ok := c.Match(text); ok {
		return category
	}
	return CategoryOther
}
