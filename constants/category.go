package constants

type Category string

const (
	FoodAndDrink  Category = "Food & Drink"
	Transport     Category = "Transport"
	Office        Category = "Office"
	Shopping      Category = "Shopping"
	Entertainment Category = "Entertainment"
	Health        Category = "Health"
	Travel        Category = "Travel"
	Utilities     Category = "Utilities"
	Other         Category = "Other"
)

var allCategories = []Category{
	FoodAndDrink,
	Transport,
	Office,
	Shopping,
	Entertainment,
	Health,
	Travel,
	Utilities,
	Other,
}

// AllCategories returns the fixed taxonomy in display order.
func AllCategories() []Category {
	out := make([]Category, len(allCategories))
	copy(out, allCategories)
	return out
}

func AsStringSlice() []string {
	result := make([]string, len(allCategories))
	for i, cat := range allCategories {
		result[i] = string(cat)
	}
	return result
}

// ParseCategory matches input against the taxonomy by exact, case-sensitive
// equality. Anything else, including near-misses and synonyms, maps to Other.
func ParseCategory(input string) (Category, bool) {
	for _, cat := range allCategories {
		if input == string(cat) {
			return cat, true
		}
	}
	return Other, false
}
