package enums

import "fmt"

// StockChangeType tags why a product's stock quantity moved.
type StockChangeType string

const (
	StockChangePurchase         StockChangeType = "purchase"
	StockChangeSale             StockChangeType = "sale"
	StockChangeReturn           StockChangeType = "return"
	StockChangeManualAdjustment StockChangeType = "manual_adjustment"
)

var validStockChangeTypes = []StockChangeType{
	StockChangePurchase,
	StockChangeSale,
	StockChangeReturn,
	StockChangeManualAdjustment,
}

// String implements fmt.Stringer.
func (s StockChangeType) String() string {
	return string(s)
}

// IsValid reports whether the value is a known StockChangeType.
func (s StockChangeType) IsValid() bool {
	for _, candidate := range validStockChangeTypes {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseStockChangeType converts raw input into a StockChangeType.
func ParseStockChangeType(value string) (StockChangeType, error) {
	for _, candidate := range validStockChangeTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid stock change type %q", value)
}
