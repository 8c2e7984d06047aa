package model

// Category is a named spending bucket that items refer to by name.
type Category struct {
	Name string `json:"name"`
	ID   int    `json:"id"`
}

// DefaultCategories are seeded when the category collection is first created.
var DefaultCategories = []string{
	"Food",
	"Groceries",
	"Housing",
	"Utilities",
	"Transportation",
	"Health",
	"Insurance",
	"Entertainment",
	"Shopping",
	"Travel",
	"Education",
	"Savings",
	"Income",
	"Other",
}
