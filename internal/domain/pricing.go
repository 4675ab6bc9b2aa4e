package domain

import "fmt"

// PricingEntry is the base price of a service and its optional surcharges, in euros.
type PricingEntry struct {
	BasePrice int
	Features  map[string]int
}

// Catalog maps lower-case service names to their pricing. It is read-only
// after construction.
type Catalog struct {
	entries map[string]PricingEntry
}

// NewCatalog builds a catalog from the given entries.
func NewCatalog(entries map[string]PricingEntry) *Catalog {
	c := &Catalog{entries: make(map[string]PricingEntry, len(entries))}
	for name, e := range entries {
		features := make(map[string]int, len(e.Features))
		for f, price := range e.Features {
			features[f] = price
		}
		c.entries[name] = PricingEntry{BasePrice: e.BasePrice, Features: features}
	}
	return c
}

// DefaultCatalog returns the agency's standard price list.
func DefaultCatalog() *Catalog {
	return NewCatalog(map[string]PricingEntry{
		"chatbot": {
			BasePrice: 500,
			Features:  map[string]int{"crm": 200, "multilingual": 150, "voice": 300},
		},
		"voice assistant": {
			BasePrice: 800,
			Features:  map[string]int{"crm": 250, "multilingual": 200},
		},
		"faq bot": {
			BasePrice: 300,
			Features:  map[string]int{"crm": 150, "multilingual": 100},
		},
		"automation": {
			BasePrice: 600,
			Features:  map[string]int{"crm": 200, "googleSheets": 100},
		},
	})
}

// Lookup returns the pricing for a service.
func (c *Catalog) Lookup(service string) (PricingEntry, bool) {
	e, ok := c.entries[service]
	return e, ok
}

// FeatureCharge is a surcharge applied to a quote.
type FeatureCharge struct {
	Feature string
	Price   int
}

// String renders the charge as shown to the user, e.g. "crm: €200".
func (f FeatureCharge) String() string {
	return fmt.Sprintf("%s: €%d", f.Feature, f.Price)
}

// MaxQuantity caps the units priced in one quote so totals cannot overflow.
const MaxQuantity = 1_000_000

// Quote is a computed price for a catalog service.
type Quote struct {
	Service  string
	Quantity int
	Total    int
	Charges  []FeatureCharge
}

// Quote prices quantity units of service plus the requested features.
// Surcharges are applied once per requested feature, in request order;
// features the service does not offer are ignored. Feature names are
// case-sensitive. Quantities above MaxQuantity are priced as MaxQuantity.
// Returns false when the service is not in the catalog.
func (c *Catalog) Quote(service string, quantity int, features []string) (Quote, bool) {
	entry, ok := c.entries[service]
	if !ok {
		return Quote{}, false
	}
	if quantity > MaxQuantity {
		quantity = MaxQuantity
	}

	q := Quote{
		Service:  service,
		Quantity: quantity,
		Total:    entry.BasePrice * quantity,
	}
	for _, f := range features {
		price, ok := entry.Features[f]
		if !ok {
			continue
		}
		q.Total += price
		q.Charges = append(q.Charges, FeatureCharge{Feature: f, Price: price})
	}
	return q, true
}
