package category

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"unicode/utf8"

	"gopkg.in/yaml.v3"

	"github.com/pl-listing/lister/internal/models"
)

// DefaultSheet is used when no keyword matches.
const DefaultSheet = "トップス"

// Sheet is one listing sheet and the keyword patterns that select it.
type Sheet struct {
	Name     string   `yaml:"name"`
	Keywords []string `yaml:"keywords"`
}

type compiledSheet struct {
	name     string
	patterns []*regexp.Regexp
}

// Table maps product text to a sheet name.
type Table struct {
	defaultSheet string
	sheets       []compiledSheet
}

// File is the on-disk shape of a keyword table.
type File struct {
	Default string  `yaml:"default"`
	Sheets  []Sheet `yaml:"sheets"`
}

// DefaultSheets is the built-in keyword table.
var DefaultSheets = []Sheet{
	{"トップス", []string{"ブラウス", "シャツ", "tシャツ", "カットソー", "ニット", "セーター", "パーカー", "フリース", "ジャケット", "カーディガン", "ベスト", "タンクトップ", "キャミソール", "チュニック"}},
	{"パンツ", []string{"パンツ", "ズボン", "ジーンズ", "デニム", "チノパン", "スラックス", "レギンス", "ショートパンツ", "ハーフパンツ", "ワイドパンツ", "スキニー", "ボトムス", "トラウザー"}},
	{"スカート", []string{"スカート", "ミニスカート", "ロングスカート", "マキシスカート", "フレアスカート", "タイトスカート", "プリーツスカート"}},
	{"ワンピース", []string{"ワンピース", "ドレス", "マキシワンピース", "ミニワンピース", "シャツワンピース", "ニットワンピース"}},
	{"オールインワン", []string{"オールインワン", "サロペット", "オーバーオール", "ジャンプスーツ", "コンビネゾン", "つなぎ"}},
	{"スカートスーツ", []string{"スカートスーツ", "スーツ.*スカート", "セットアップ.*スカート"}},
	{"パンツスーツ", []string{"パンツスーツ", "スーツ.*パンツ", "セットアップ.*パンツ"}},
	{"アンサンブル", []string{"アンサンブル", "ツインセット", "セット.*ニット"}},
	{"靴", []string{"パンプス", "ヒール", "フラットシューズ", "革靴", "ローファー", "サンダル", "ミュール", "オックスフォード"}},
	{"ブーツ", []string{"ブーツ", "ロングブーツ", "ショートブーツ", "アンクルブーツ", "ニーハイブーツ", "ムートンブーツ"}},
	{"ベルト", []string{"ベルト", "レザーベルト", "チェーンベルト"}},
	{"ネクタイ縦横", []string{"ネクタイ", "タイ", "ボウタイ"}},
	{"帽子", []string{"帽子", "キャップ", "ハット", "ベレー帽", "ニット帽", "ビーニー", "麦わら帽子", "ハンチング"}},
	{"バッグ", []string{"バッグ", "ハンドバッグ", "ショルダーバッグ", "トートバッグ", "クラッチバッグ", "リュック", "バックパック", "ポーチ", "ウエストバッグ", "メッセンジャーバッグ"}},
	{"ネックレス", []string{"ネックレス", "チョーカー", "ペンダント", "チェーン"}},
	{"サングラス", []string{"サングラス", "メガネ", "眼鏡", "グラス"}},
}

// NewTable compiles sheets into a table. Patterns are case-insensitive
// regular expressions.
func NewTable(defaultSheet string, sheets []Sheet) (*Table, error) {
	if defaultSheet == "" {
		defaultSheet = DefaultSheet
	}
	t := &Table{defaultSheet: defaultSheet}
	for _, s := range sheets {
		if s.Name == "" {
			return nil, fmt.Errorf("sheet without a name")
		}
		cs := compiledSheet{name: s.Name}
		for _, kw := range s.Keywords {
			re, err := regexp.Compile("(?i)" + kw)
			if err != nil {
				return nil, fmt.Errorf("sheet %s: invalid keyword %q: %w", s.Name, kw, err)
			}
			cs.patterns = append(cs.patterns, re)
		}
		t.sheets = append(t.sheets, cs)
	}
	return t, nil
}

// Default returns the built-in table.
func Default() *Table {
	t, err := NewTable(DefaultSheet, DefaultSheets)
	if err != nil {
		panic(err)
	}
	return t
}

// LoadTable reads a keyword table from a YAML file.
func LoadTable(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read category table: %w", err)
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse category table: %w", err)
	}
	if len(f.Sheets) == 0 {
		return nil, fmt.Errorf("category table %s has no sheets", path)
	}
	return NewTable(f.Default, f.Sheets)
}

// Sheets returns the sheet names in table order.
func (t *Table) Sheets() []string {
	names := make([]string, len(t.sheets))
	for i, s := range t.sheets {
		names[i] = s.name
	}
	return names
}

// Classify picks the sheet whose longest matching keyword is longest, so
// "ニット帽" goes to 帽子 rather than トップス. Ties keep table order.
func (t *Table) Classify(title, productType string) string {
	text := strings.TrimSpace(title)
	if !models.IsUnknown(productType) {
		text += " " + strings.TrimSpace(productType)
	}

	best, bestLen := t.defaultSheet, 0
	for _, s := range t.sheets {
		for _, re := range s.patterns {
			if m := re.FindString(text); m != "" {
				if n := utf8.RuneCountInString(m); n > bestLen {
					best, bestLen = s.name, n
				}
			}
		}
	}
	return best
}

// Category classifies a product from its extracted attributes.
func (t *Table) Category(attrs models.Attributes) string {
	title := attrs.Title
	if models.IsUnknown(title) {
		title = ""
	}
	return t.Classify(title, attrs.ProductType)
}
