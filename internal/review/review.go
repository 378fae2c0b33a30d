package review

import "github.com/pl-listing/lister/internal/models"

// Reasons a product needs a human check, in the order they are reported.
const (
	ReasonBrandUnknown = "brand unknown"
	ReasonSizeUnknown  = "size unknown"
)

// Decision is derived from a product's attributes every time it is needed
// and never stored on its own.
type Decision struct {
	ProductID    models.ProductID `json:"product_id"`
	AutoApproved bool             `json:"auto_approved"`
	Reasons      []string         `json:"reasons"`
}

// Decide approves a product only when both brand and size are known.
func Decide(id models.ProductID, attrs models.Attributes) Decision {
	d := Decision{ProductID: id, Reasons: []string{}}
	if models.IsUnknown(attrs.Brand) {
		d.Reasons = append(d.Reasons, ReasonBrandUnknown)
	}
	if models.IsUnknown(attrs.Size) {
		d.Reasons = append(d.Reasons, ReasonSizeUnknown)
	}
	d.AutoApproved = len(d.Reasons) == 0
	return d
}
