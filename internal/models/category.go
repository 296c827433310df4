package models

import (
	"errors"
	"strings"
)

// Category is the closed set of book categories.
type Category string

const (
	CategoryBusiness   Category = "Business"
	CategoryFiction    Category = "Fiction"
	CategoryNonFiction Category = "Non-Fiction"
	CategoryTechnology Category = "Technology"
	CategoryScience    Category = "Science"
	CategoryArts       Category = "Arts"
	CategoryBiography  Category = "Biography"
	CategoryHistory    Category = "History"
	CategorySelfHelp   Category = "Self-Help"
	CategoryOther      Category = "Other"
)

// Categories lists every category in display order.
var Categories = []Category{
	CategoryBusiness,
	CategoryFiction,
	CategoryNonFiction,
	CategoryTechnology,
	CategoryScience,
	CategoryArts,
	CategoryBiography,
	CategoryHistory,
	CategorySelfHelp,
	CategoryOther,
}

// ErrInvalidCategory is returned for a value outside Categories.
var ErrInvalidCategory = errors.New("invalid category")

// ParseCategory converts user input into a Category.
func ParseCategory(s string) (Category, error) {
	s = strings.TrimSpace(s)
	for _, c := range Categories {
		if string(c) == s {
			return c, nil
		}
	}
	return "", ErrInvalidCategory
}

// Valid reports whether c is one of Categories.
func (c Category) Valid() bool {
	_, err := ParseCategory(string(c))
	return err == nil
}

func (c Category) String() string {
	return string(c)
}
