package results

import (
	"github.com/pl-listing/lister/internal/batch"
	"github.com/pl-listing/lister/internal/models"
	"github.com/pl-listing/lister/internal/review"
	"github.com/pl-listing/lister/internal/titles"
)

// ErrorSentinel fills every attribute column of a failed product.
const ErrorSentinel = "#ERROR"

// Row statuses.
const (
	StatusSuccess = "success"
	StatusPartial = "partial"
	StatusFailure = "failure"
)

// Row is one product in the exported table.
type Row struct {
	ProductID     string   `json:"product_id" yaml:"product_id" parquet:"product_id"`
	Status        string   `json:"status" yaml:"status" parquet:"status"`
	Title         string   `json:"title" yaml:"title" parquet:"title"`
	Brand         string   `json:"brand" yaml:"brand" parquet:"brand"`
	Color         string   `json:"color" yaml:"color" parquet:"color"`
	Size          string   `json:"size" yaml:"size" parquet:"size"`
	ProductType   string   `json:"product_type" yaml:"product_type" parquet:"product_type"`
	Material      string   `json:"material" yaml:"material" parquet:"material"`
	ModelNumber   string   `json:"model_number" yaml:"model_number" parquet:"model_number"`
	KeyFeatures   []string `json:"key_features" yaml:"key_features" parquet:"key_features,list"`
	Category      string   `json:"category" yaml:"category" parquet:"category"`
	ListingTitle  string   `json:"listing_title" yaml:"listing_title" parquet:"listing_title"`
	TitleLength   int      `json:"title_length" yaml:"title_length" parquet:"title_length"`
	AutoApproved  bool     `json:"auto_approved" yaml:"auto_approved" parquet:"auto_approved"`
	ReviewReasons []string `json:"review_reasons" yaml:"review_reasons" parquet:"review_reasons,list"`
	Error         string   `json:"error" yaml:"error" parquet:"error"`
	ImageCount    int      `json:"image_count" yaml:"image_count" parquet:"image_count"`
	ExtraProducts int      `json:"extra_products" yaml:"extra_products" parquet:"extra_products"`
}

// Failed reports whether the row carries a failure instead of attributes.
func (r Row) Failed() bool {
	return r.Status == StatusFailure
}

// Review recomputes the review decision from the persisted brand and size.
// Failed rows have no decision.
func (r Row) Review() (review.Decision, bool) {
	if r.Failed() {
		return review.Decision{}, false
	}
	return review.Decide(models.ProductID(r.ProductID), models.Attributes{Brand: r.Brand, Size: r.Size}), true
}

// Table is the ordered result of one run.
type Table struct {
	RunID       string `json:"run_id" yaml:"run_id"`
	Marketplace string `json:"marketplace" yaml:"marketplace"`
	Rows        []Row  `json:"rows" yaml:"rows"`
}

// Counts returns the success, failure and auto-approved totals of t.
func (t Table) Counts() (succeeded, failed, autoApproved int) {
	for _, r := range t.Rows {
		if r.Failed() {
			failed++
			continue
		}
		succeeded++
		if r.AutoApproved {
			autoApproved++
		}
	}
	return
}

// Categorizer assigns a listing category to a product.
type Categorizer interface {
	Category(attrs models.Attributes) string
}

// Projector turns progress snapshots into tables.
type Projector struct {
	categorizer Categorizer
	marketplace string
}

// NewProjector returns a Projector. A nil categorizer leaves the category
// column empty.
func NewProjector(c Categorizer, marketplace string) *Projector {
	return &Projector{categorizer: c, marketplace: titles.Lookup(marketplace).Name}
}

// Project emits one row per recorded product in completion order. It reads
// nothing but the snapshot, so projecting the same snapshot twice gives the
// same table.
func (p *Projector) Project(snap batch.Snapshot) Table {
	t := Table{
		RunID:       snap.RunID,
		Marketplace: p.marketplace,
		Rows:        make([]Row, 0, len(snap.Entries)),
	}
	for _, e := range snap.Entries {
		t.Rows = append(t.Rows, p.row(e))
	}
	return t
}

func (p *Projector) row(e batch.Entry) Row {
	row := Row{
		ProductID:  string(e.ProductID),
		ImageCount: len(e.Previews),
	}

	if !e.Outcome.Succeeded() {
		row.Status = StatusFailure
		row.Title = ErrorSentinel
		row.Brand = ErrorSentinel
		row.Color = ErrorSentinel
		row.Size = ErrorSentinel
		row.ProductType = ErrorSentinel
		row.Material = ErrorSentinel
		row.ModelNumber = ErrorSentinel
		row.Category = ErrorSentinel
		row.ListingTitle = ErrorSentinel
		row.KeyFeatures = []string{}
		row.ReviewReasons = []string{}
		row.Error = e.Outcome.Reason
		if row.Error == "" {
			row.Error = "unknown error"
		}
		return row
	}

	a := e.Outcome.Attributes
	row.Status = StatusSuccess
	if e.Outcome.Partial {
		row.Status = StatusPartial
	}
	row.Title = a.Title
	row.Brand = a.Brand
	row.Color = a.Color
	row.Size = a.Size
	row.ProductType = a.ProductType
	row.Material = a.Material
	row.ModelNumber = a.ModelNumber
	row.KeyFeatures = append([]string{}, a.KeyFeatures...)
	row.ExtraProducts = e.Outcome.ExtraProducts

	if p.categorizer != nil {
		row.Category = p.categorizer.Category(a)
	}

	title := a.Title
	if models.IsUnknown(title) {
		title = ""
	}
	row.ListingTitle, _ = titles.Optimize(title, p.marketplace, titles.FieldsFrom(e.ProductID, a))
	row.TitleLength = titles.Length(row.ListingTitle)

	d := review.Decide(e.ProductID, a)
	row.AutoApproved = d.AutoApproved
	row.ReviewReasons = d.Reasons
	return row
}
