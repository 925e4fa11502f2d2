package nlu

import "strings"

// Intent is the closed set of message purposes the router dispatches on.
type Intent string

const (
	IntentGreeting       Intent = "greeting"
	IntentHelp           Intent = "help"
	IntentSearchProduct  Intent = "search_product"
	IntentSearchVendor   Intent = "search_vendor"
	IntentSearchLocation Intent = "search_location"
	IntentOrder          Intent = "order"
	IntentComplaint      Intent = "complaint"
	IntentOther          Intent = "other"
)

// ParseIntent validates a raw classifier label against the closed set.
func ParseIntent(raw string) (Intent, bool) {
	switch Intent(strings.TrimSpace(strings.ToLower(raw))) {
	case IntentGreeting:
		return IntentGreeting, true
	case IntentHelp:
		return IntentHelp, true
	case IntentSearchProduct:
		return IntentSearchProduct, true
	case IntentSearchVendor:
		return IntentSearchVendor, true
	case IntentSearchLocation:
		return IntentSearchLocation, true
	case IntentOrder:
		return IntentOrder, true
	case IntentComplaint:
		return IntentComplaint, true
	case IntentOther:
		return IntentOther, true
	}
	return IntentOther, false
}

// IsSearch reports whether the intent routes to the search engine.
func (i Intent) IsSearch() bool {
	switch i {
	case IntentSearchProduct, IntentSearchVendor, IntentSearchLocation:
		return true
	}
	return false
}

// Classification is the validated classifier output for one message.
type Classification struct {
	Intent   Intent
	Entities map[string]any
}

// Entity returns the named extracted entity as a string. List-valued
// entities collapse to their first element; missing or unusable values
// yield "".
func (c Classification) Entity(key string) string {
	v, ok := c.Entities[key]
	if !ok {
		return ""
	}
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case []any:
		if len(val) > 0 {
			if s, ok := val[0].(string); ok {
				return strings.TrimSpace(s)
			}
		}
	}
	return ""
}

// Keywords is the validated output of query normalization.
type Keywords struct {
	Keywords   []string
	Category   string
	Location   string
	Attributes map[string]string
}

// Tokenize is the fail-open fallback when the classifier is unreachable:
// naive lowercase whitespace tokenization of the raw query.
func Tokenize(text string) []string {
	fields := strings.Fields(strings.ToLower(text))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}
