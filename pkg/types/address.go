package types

// Address is a postal address captured on a cart snapshot, used for both
// the shipping and billing slots. It is persisted as jsonb through the gorm
// json serializer.
type Address struct {
	Line1      string  `json:"line1"`
	Line2      *string `json:"line2,omitempty"`
	City       string  `json:"city"`
	Region     string  `json:"region"`
	PostalCode string  `json:"postal_code"`
	Country    string  `json:"country"`
}
