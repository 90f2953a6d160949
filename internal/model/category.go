package model

// Category is a bookable resource class with a fixed capacity and a unit
// price.  Categories are seeded once and are read-only to the rest of the
// application.
//
// Fields:
//  ID       – primary key identifier.
//  Name     – unique business name (BASIC, PLUS, VIP).
//  Capacity – number of units that may be committed for any instant.
//  Price    – unit price in minor currency units.
type Category struct {
	ID       int64  `json:"-"`        // categories.id
	Name     string `json:"name"`     // categories.name
	Capacity int    `json:"capacity"` // categories.capacity
	Price    Money  `json:"price"`    // categories.price_cents
}

// DefaultCategories mirrors the seed data loaded into a fresh database.
func DefaultCategories() []Category {
	return []Category{
		{Name: "BASIC", Capacity: 20, Price: 10000},
		{Name: "PLUS", Capacity: 50, Price: 15000},
		{Name: "VIP", Capacity: 8, Price: 30000},
	}
}
