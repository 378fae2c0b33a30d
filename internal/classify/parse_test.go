package classify

import (
	"reflect"
	"strings"
	"testing"

	"github.com/pl-listing/lister/internal/models"
)

func TestStripMarkdownFences(t *testing.T) {
	tests := []struct {
		name, input, expected string
	}{
		{"json fence", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"bare fence", "```\n[1]\n```", "[1]"},
		{"no fence", "  {\"a\":1}  ", `{"a":1}`},
		{"unterminated fence", "```json\n{\"a\":1}", `{"a":1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StripMarkdownFences(tt.input); got != tt.expected {
				t.Errorf("StripMarkdownFences(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestExtractJSON(t *testing.T) {
	got, err := ExtractJSON(`Here you go: {"brand": "BEAMS"} hope it helps`)
	if err != nil {
		t.Fatalf("ExtractJSON returned error: %v", err)
	}
	if got != `{"brand": "BEAMS"}` {
		t.Errorf("Unexpected JSON %q", got)
	}

	got, err = ExtractJSON(`[{"brand": "A"}, {"brand": "B"}]`)
	if err != nil || !strings.HasPrefix(got, "[") {
		t.Errorf("Expected array, got %q (%v)", got, err)
	}

	got, err = ExtractJSON(`[注意] 結果: {"brand": "BEAMS", "tags": ["a"]} 以上`)
	if err != nil {
		t.Fatalf("ExtractJSON returned error: %v", err)
	}
	if got != `{"brand": "BEAMS", "tags": ["a"]}` {
		t.Errorf("Bracketed preface not skipped, got %q", got)
	}

	if _, err := ExtractJSON("no json here"); err == nil {
		t.Error("Expected error for text without JSON")
	}
	if _, err := ExtractJSON("[注意] {broken"); err == nil {
		t.Error("Expected error when no bracket opens valid JSON")
	}
}

func TestParseResponseSkipsLeadingNonProductJSON(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"bracketed preface", `[注意] 結果は次の通りです: {"brand": "BEAMS", "size": "M", "title": "シャツ"}`},
		{"number array before object", `候補 [1, 2] のうち: {"brand": "BEAMS", "size": "M", "title": "シャツ"}`},
		{"fenced with preface", "```json\n[補足] {\"brand\": \"BEAMS\", \"size\": \"M\", \"title\": \"シャツ\"}\n```"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, ok := ParseResponse(tt.raw).(Structured)
			if !ok {
				t.Fatalf("Expected Structured, got %#v", ParseResponse(tt.raw))
			}
			if len(r.Products) != 1 {
				t.Fatalf("Expected 1 product, got %d", len(r.Products))
			}
			p := r.Products[0]
			if p.Brand != "BEAMS" || p.Size != "M" || p.Title != "シャツ" {
				t.Errorf("Unexpected attributes %+v", p)
			}
		})
	}
}

func TestParseResponseSingleObject(t *testing.T) {
	raw := "```json\n" + `{
  "title": "BEAMS シャツ 長袖 ストライプ",
  "brand": "BEAMS",
  "color": "ブルー",
  "size": "M",
  "product_type": "シャツ",
  "material": "不明",
  "key_features": ["長袖", "ストライプ"]
}` + "\n```"

	r, ok := ParseResponse(raw).(Structured)
	if !ok {
		t.Fatalf("Expected Structured, got %T", ParseResponse(raw))
	}
	if len(r.Products) != 1 {
		t.Fatalf("Expected 1 product, got %d", len(r.Products))
	}
	want := models.Attributes{
		Title:       "BEAMS シャツ 長袖 ストライプ",
		Brand:       "BEAMS",
		Color:       "ブルー",
		Size:        "M",
		ProductType: "シャツ",
		Material:    models.Unknown,
		ModelNumber: models.Unknown,
		KeyFeatures: []string{"長袖", "ストライプ"},
	}
	if !reflect.DeepEqual(r.Products[0], want) {
		t.Errorf("Unexpected attributes:\n got %+v\nwant %+v", r.Products[0], want)
	}
}

func TestParseResponseShapes(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		products  int
		firstSize string
	}{
		{"array", `[{"brand":"A","size":"S"},{"brand":"B","size":"L"}]`, 2, "S"},
		{"products wrapper", `{"products":[{"brand":"A","size":"XL"}]}`, 1, "XL"},
		{"camel case and numbers", `{"brand":"A","size":38,"modelNumber":"X1"}`, 1, "38"},
		{"japanese keys", `{"ブランド":"ユニクロ","サイズ":"L"}`, 1, "L"},
		{"empty size becomes unknown", `{"brand":"A","size":""}`, 1, models.Unknown},
		{"english unknown normalized", `{"brand":"A","size":"Unknown"}`, 1, models.Unknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, ok := ParseResponse(tt.raw).(Structured)
			if !ok {
				t.Fatalf("Expected Structured, got %T", ParseResponse(tt.raw))
			}
			if len(r.Products) != tt.products {
				t.Fatalf("Expected %d products, got %d", tt.products, len(r.Products))
			}
			if r.Products[0].Size != tt.firstSize {
				t.Errorf("Expected size %q, got %q", tt.firstSize, r.Products[0].Size)
			}
		})
	}
}

func TestParseResponseRawText(t *testing.T) {
	tests := []string{
		"申し訳ありませんが、画像を判別できません。",
		"{not json at all}",
		`["just", "strings"]`,
		"",
	}
	for _, raw := range tests {
		if r, ok := ParseResponse(raw).(RawText); !ok {
			t.Errorf("ParseResponse(%q) = %T, want RawText", raw, r)
		}
	}
}

func TestAttributesFromText(t *testing.T) {
	text := `商品の分析結果:
- ブランド: COMME des GARCONS
- 色：ブラック
サイズ: 不明
Material: ウール`

	attrs := AttributesFromText(text)
	if attrs.Brand != "COMME des GARCONS" {
		t.Errorf("Unexpected brand %q", attrs.Brand)
	}
	if attrs.Color != "ブラック" {
		t.Errorf("Unexpected color %q", attrs.Color)
	}
	if attrs.Size != models.Unknown {
		t.Errorf("Expected unknown size, got %q", attrs.Size)
	}
	if attrs.Material != "ウール" {
		t.Errorf("Unexpected material %q", attrs.Material)
	}
	if attrs.Title != models.Unknown || attrs.ModelNumber != models.Unknown {
		t.Errorf("Unrecovered fields should be unknown: %+v", attrs)
	}
}
