package classify

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/pl-listing/lister/internal/models"
)

// Response is the interpreted reply of the classification service. It is
// either Structured or RawText.
type Response interface {
	isResponse()
}

// Structured holds every product object found in the reply, in reply order.
type Structured struct {
	Products []models.Attributes
}

// RawText is the fallback when the reply carries no usable JSON.
type RawText struct {
	Text string
	Err  error
}

func (Structured) isResponse() {}
func (RawText) isResponse()    {}

// ParseResponse interprets raw model output. It never fails: anything that
// holds no JSON object or array of objects becomes RawText. When the reply
// carries several JSON values, the first one holding a product wins.
func ParseResponse(raw string) Response {
	text := StripMarkdownFences(raw)

	spans, err := jsonSpans(text)
	if err != nil {
		return RawText{Text: text, Err: err}
	}

	for _, span := range spans {
		var v any
		if err := json.Unmarshal([]byte(span), &v); err != nil {
			continue
		}
		objects := productObjects(v)
		if len(objects) == 0 {
			continue
		}
		products := make([]models.Attributes, len(objects))
		for i, obj := range objects {
			products[i] = attributesFromMap(obj)
		}
		return Structured{Products: products}
	}
	return RawText{Text: text, Err: errors.New("no product object in response")}
}

func productObjects(v any) []map[string]any {
	switch t := v.(type) {
	case map[string]any:
		if nested, ok := t["products"].([]any); ok {
			return objectsOf(nested)
		}
		return []map[string]any{t}
	case []any:
		return objectsOf(t)
	}
	return nil
}

func objectsOf(items []any) []map[string]any {
	var out []map[string]any
	for _, item := range items {
		if m, ok := item.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

// StripMarkdownFences removes a ```json ... ``` wrapper, if any.
func StripMarkdownFences(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}

	lines := strings.Split(text, "\n")
	if len(lines) < 2 {
		return strings.Trim(text, "`")
	}

	end := len(lines)
	for i := len(lines) - 1; i > 0; i-- {
		if strings.TrimSpace(lines[i]) == "```" {
			end = i
			break
		}
	}
	return strings.TrimSpace(strings.Join(lines[1:end], "\n"))
}

// ExtractJSON returns the first complete JSON object or array in text.
// Brackets that do not open valid JSON, such as "[注意]", are skipped.
func ExtractJSON(text string) (string, error) {
	spans, err := jsonSpans(text)
	if err != nil {
		return "", err
	}
	return spans[0], nil
}

// jsonSpans decodes a JSON value at every { or [ in order and returns the
// spans that decode, without descending into a span already returned.
func jsonSpans(text string) ([]string, error) {
	var spans []string
	var firstErr error
	for i := 0; i < len(text); i++ {
		if text[i] != '{' && text[i] != '[' {
			continue
		}
		dec := json.NewDecoder(strings.NewReader(text[i:]))
		var v json.RawMessage
		if err := dec.Decode(&v); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		spans = append(spans, string(v))
		i += int(dec.InputOffset()) - 1
	}

	if len(spans) == 0 {
		if firstErr == nil {
			return nil, fmt.Errorf("no JSON content found")
		}
		return nil, fmt.Errorf("invalid JSON: %w", firstErr)
	}
	return spans, nil
}

// Key aliases seen in model output, checked in order.
var (
	titleKeys       = []string{"title", "product_name", "productName", "name", "タイトル", "商品名"}
	brandKeys       = []string{"brand", "ブランド"}
	colorKeys       = []string{"color", "colour", "色", "カラー"}
	sizeKeys        = []string{"size", "サイズ"}
	productTypeKeys = []string{"product_type", "productType", "type", "category", "製品タイプ"}
	materialKeys    = []string{"material", "素材"}
	modelKeys       = []string{"model_number", "modelNumber", "model", "型番", "モデル番号"}
	featureKeys     = []string{"key_features", "keyFeatures", "features", "主な特徴"}
)

func attributesFromMap(m map[string]any) models.Attributes {
	return models.Attributes{
		Title:       models.NormalizeUnknown(lookup(m, titleKeys)),
		Brand:       models.NormalizeUnknown(lookup(m, brandKeys)),
		Color:       models.NormalizeUnknown(lookup(m, colorKeys)),
		Size:        models.NormalizeUnknown(lookup(m, sizeKeys)),
		ProductType: models.NormalizeUnknown(lookup(m, productTypeKeys)),
		Material:    models.NormalizeUnknown(lookup(m, materialKeys)),
		ModelNumber: models.NormalizeUnknown(lookup(m, modelKeys)),
		KeyFeatures: lookupList(m, featureKeys),
	}
}

func lookup(m map[string]any, keys []string) string {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			if s := scalar(v); s != "" {
				return s
			}
		}
	}
	return ""
}

func lookupList(m map[string]any, keys []string) []string {
	for _, k := range keys {
		v, ok := m[k]
		if !ok {
			continue
		}
		var out []string
		switch t := v.(type) {
		case []any:
			for _, item := range t {
				if s := scalar(item); s != "" {
					out = append(out, s)
				}
			}
		default:
			if s := scalar(t); s != "" {
				out = append(out, s)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return nil
}

func scalar(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case []any:
		var parts []string
		for _, item := range t {
			if s := scalar(item); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, " / ")
	case map[string]any:
		b, _ := json.Marshal(t)
		return string(b)
	}
	return ""
}

var rawFieldPatterns = []struct {
	set func(*models.Attributes, string)
	re  *regexp.Regexp
}{
	{func(a *models.Attributes, v string) { a.Title = v }, linePattern(titleKeys)},
	{func(a *models.Attributes, v string) { a.Brand = v }, linePattern(brandKeys)},
	{func(a *models.Attributes, v string) { a.Color = v }, linePattern(colorKeys)},
	{func(a *models.Attributes, v string) { a.Size = v }, linePattern(sizeKeys)},
	{func(a *models.Attributes, v string) { a.ProductType = v }, linePattern(productTypeKeys)},
	{func(a *models.Attributes, v string) { a.Material = v }, linePattern(materialKeys)},
	{func(a *models.Attributes, v string) { a.ModelNumber = v }, linePattern(modelKeys)},
}

func linePattern(keys []string) *regexp.Regexp {
	quoted := make([]string, len(keys))
	for i, k := range keys {
		quoted[i] = regexp.QuoteMeta(k)
	}
	return regexp.MustCompile(`(?mi)^[\s\-*・"]*(?:` + strings.Join(quoted, "|") + `)["\s]*[:：]\s*"?([^"\n]+?)"?,?\s*$`)
}

// AttributesFromText recovers what it can from "key: value" lines of free
// text. Fields that cannot be found are Unknown.
func AttributesFromText(text string) models.Attributes {
	attrs := models.Attributes{}
	for _, p := range rawFieldPatterns {
		if m := p.re.FindStringSubmatch(text); m != nil {
			p.set(&attrs, strings.TrimSpace(m[1]))
		}
	}

	attrs.Title = models.NormalizeUnknown(attrs.Title)
	attrs.Brand = models.NormalizeUnknown(attrs.Brand)
	attrs.Color = models.NormalizeUnknown(attrs.Color)
	attrs.Size = models.NormalizeUnknown(attrs.Size)
	attrs.ProductType = models.NormalizeUnknown(attrs.ProductType)
	attrs.Material = models.NormalizeUnknown(attrs.Material)
	attrs.ModelNumber = models.NormalizeUnknown(attrs.ModelNumber)
	return attrs
}
