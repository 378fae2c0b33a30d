package classify

import (
	"fmt"
	"strings"

	"github.com/pl-listing/lister/internal/models"
)

// BuildPrompt returns the Japanese extraction prompt for one product.
// Operator hints are stated before the instructions; one image marker is
// appended per attached image.
func BuildPrompt(hints models.Hints, imageCount int) string {
	var sb strings.Builder
	sb.WriteString("日本語で回答してください。以下の製品画像を分析して、簡潔で魅力的な製品タイトルを作成してください。")

	known := []struct{ label, value string }{
		{"ブランド", hints.Brand},
		{"モデル番号", hints.ModelNumber},
		{"製品タイプ", hints.ProductType},
		{"色", hints.Color},
		{"サイズ", hints.Size},
	}
	for _, k := range known {
		if v := strings.TrimSpace(k.value); v != "" {
			fmt.Fprintf(&sb, "%s: %s。", k.label, v)
		}
	}
	if hints.HasScale {
		sb.WriteString("画像にはメジャー（スケール）が写っています。寸法が読み取れる場合はsizeに含めてください。")
	}

	sb.WriteString("\n\n各画像から以下の詳細を抽出してください：ブランド、色、サイズ、製品名、素材、型番、および画像に表示されているその他の関連情報。")
	sb.WriteString("\n\n回答は以下のフィールドを持つJSONオブジェクトとしてフォーマットしてください：" +
		"title（魅力的な製品タイトル）、brand（ブランド）、color（色）、size（サイズ）、product_type（製品タイプ）、" +
		"material（素材）、model_number（型番）、key_features（主な特徴として配列）。")
	fmt.Fprintf(&sb, "\n\n判別できないフィールドには「%s」と入力してください。", models.Unknown)
	sb.WriteString("\n\nJSONフォーマットのみで回答し、マークダウンやコードブロック（```）は使用しないでください。")

	for i := 0; i < imageCount; i++ {
		fmt.Fprintf(&sb, "\n\n[画像 %d]", i+1)
	}
	return sb.String()
}
