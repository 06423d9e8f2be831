// Package model defines the core domain models used throughout the application.
package model

import (
	"fmt"
	"strings"
	"time"
)

// CategoryType indicates whether a category tracks spending, income, or saving.
type CategoryType string

const (
	// CategoryTypeSpending represents categories for outgoing money.
	CategoryTypeSpending CategoryType = "spending"
	// CategoryTypeIncome represents categories for incoming money.
	CategoryTypeIncome CategoryType = "income"
	// CategoryTypeSaving represents categories for transfers into savings.
	CategoryTypeSaving CategoryType = "saving"
)

// Category represents a valid transaction category.
type Category struct {
	CreatedAt time.Time
	Name      string
	Type      CategoryType
	Budget    float64
	ID        int
	IsActive  bool
}

// Validate ensures the category has valid data and normalizes its name.
func (c *Category) Validate() error {
	c.Name = strings.ToLower(strings.TrimSpace(c.Name))
	if c.Name == "" {
		return fmt.Errorf("category name is required")
	}
	if len(c.Name) > 50 {
		return fmt.Errorf("category name must be at most 50 characters, got %d", len(c.Name))
	}
	if c.Budget < 0 {
		return fmt.Errorf("category budget must be non-negative, got %.2f", c.Budget)
	}
	switch c.Type {
	case CategoryTypeSpending, CategoryTypeIncome, CategoryTypeSaving:
	default:
		return fmt.Errorf("unknown category type %q", c.Type)
	}
	return nil
}
