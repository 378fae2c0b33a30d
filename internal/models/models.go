package models

import (
	"encoding/base64"
	"strings"
)

// Unknown is the value the classifier reports for a field it could not determine.
// The review gate treats it the same as an empty field.
const Unknown = "不明"

// IsUnknown reports whether v carries no usable information.
func IsUnknown(v string) bool {
	v = strings.TrimSpace(v)
	return v == "" || v == Unknown || strings.EqualFold(v, "unknown")
}

// NormalizeUnknown maps every spelling of "no value" onto Unknown.
func NormalizeUnknown(v string) string {
	v = strings.TrimSpace(v)
	if IsUnknown(v) {
		return Unknown
	}
	return v
}

// ProductID groups images that depict one physical item.
type ProductID string

// RawFile is an uploaded or scanned file before grouping.
type RawFile struct {
	Name string `json:"name"`
	Data []byte `json:"-"`
}

// ImageGroup holds the images of one product in input listing order.
type ImageGroup struct {
	ProductID ProductID `json:"product_id"`
	Images    []RawFile `json:"images"`
}

// NormalizedImage is an image ready to be sent to the classification service.
type NormalizedImage struct {
	SourceName string `json:"source_name"`
	MIMEType   string `json:"mime_type"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	Compacted  bool   `json:"compacted"`
	Data       []byte `json:"-"`
}

// EncodedSize is the length of the base64 transport encoding.
func (n NormalizedImage) EncodedSize() int {
	return base64.StdEncoding.EncodedLen(len(n.Data))
}

// DataURL returns the image as a data URI.
func (n NormalizedImage) DataURL() string {
	return "data:" + n.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(n.Data)
}

// Hints are operator-supplied facts that narrow the classification.
type Hints struct {
	Brand       string `json:"brand,omitempty" yaml:"brand,omitempty"`
	ModelNumber string `json:"model_number,omitempty" yaml:"model_number,omitempty"`
	Size        string `json:"size,omitempty" yaml:"size,omitempty"`
	ProductType string `json:"product_type,omitempty" yaml:"product_type,omitempty"`
	Color       string `json:"color,omitempty" yaml:"color,omitempty"`
	HasScale    bool   `json:"has_scale" yaml:"has_scale"`
}

// ClassificationRequest is built once per product and not modified afterwards.
type ClassificationRequest struct {
	ProductID ProductID
	Images    []NormalizedImage
	Hints     Hints
}

// Attributes are the fields extracted for a product.
type Attributes struct {
	Title       string   `json:"title" yaml:"title"`
	Brand       string   `json:"brand" yaml:"brand"`
	Color       string   `json:"color" yaml:"color"`
	Size        string   `json:"size" yaml:"size"`
	ProductType string   `json:"product_type" yaml:"product_type"`
	Material    string   `json:"material" yaml:"material"`
	ModelNumber string   `json:"model_number" yaml:"model_number"`
	KeyFeatures []string `json:"key_features,omitempty" yaml:"key_features,omitempty"`
}

// OutcomeKind tags an Outcome.
type OutcomeKind string

const (
	OutcomeSuccess OutcomeKind = "success"
	OutcomeFailure OutcomeKind = "failure"
)

// Outcome is the result of classifying one product. Exactly one of
// Attributes (success) or Reason (failure) is meaningful.
type Outcome struct {
	Kind       OutcomeKind `json:"kind"`
	Attributes Attributes  `json:"attributes,omitempty"`
	Reason     string      `json:"reason,omitempty"`

	// Partial is set when the service answered in an unexpected shape and the
	// attributes were recovered from raw text.
	Partial bool `json:"partial,omitempty"`
	// ExtraProducts counts products in the response beyond the first, which are discarded.
	ExtraProducts int `json:"extra_products,omitempty"`
}

// Success builds a successful outcome.
func Success(attrs Attributes) Outcome {
	return Outcome{Kind: OutcomeSuccess, Attributes: attrs}
}

// Failure builds a failed outcome.
func Failure(reason string) Outcome {
	return Outcome{Kind: OutcomeFailure, Reason: reason}
}

func (o Outcome) Succeeded() bool {
	return o.Kind == OutcomeSuccess
}

// Clone returns a copy that shares no slices with o.
func (o Outcome) Clone() Outcome {
	c := o
	if o.Attributes.KeyFeatures != nil {
		c.Attributes.KeyFeatures = append([]string(nil), o.Attributes.KeyFeatures...)
	}
	return c
}
