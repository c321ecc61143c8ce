package tier

import "github.com/xraph/patron/types"

// Template is a suggested tier a creator can adopt as a starting point.
type Template struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Price       types.Money `json:"price"`
	Benefits    []string    `json:"benefits"`
}

// DefaultFreeTier returns the free tier created for every new creator.
func DefaultFreeTier() Template {
	return Template{
		Name:        "Free",
		Description: "Follow for free content updates",
		Price:       types.USD(0),
		Benefits:    []string{"Access to free posts", "Follow updates"},
	}
}

// Templates returns suggested paid tiers for a language code.
// Unknown languages fall back to English.
func Templates(lang string) []Template {
	if tpl, ok := templates[lang]; ok {
		return tpl
	}
	return templates["en"]
}

var templates = map[string][]Template{
	"en": {
		{
			Name:        "Bronze",
			Description: "Basic supporter tier with exclusive content access",
			Price:       types.USD(499),
			Benefits:    []string{"Exclusive posts", "Behind-the-scenes content", "Supporter badge"},
		},
		{
			Name:        "Silver",
			Description: "Enhanced access with priority features",
			Price:       types.USD(999),
			Benefits:    []string{"All Bronze benefits", "Early access to content", "Monthly exclusive content", "Discord access"},
		},
		{
			Name:        "Gold",
			Description: "Premium tier with full access and perks",
			Price:       types.USD(1999),
			Benefits:    []string{"All Silver benefits", "Custom requests", "Direct messaging", "Name in credits"},
		},
	},
	"ja": {
		{
			Name:        "ブロンズ",
			Description: "限定コンテンツにアクセスできる基本サポーターティア",
			Price:       types.JPY(500),
			Benefits:    []string{"限定投稿", "舞台裏コンテンツ", "サポーターバッジ"},
		},
		{
			Name:        "シルバー",
			Description: "優先機能付きの拡張アクセス",
			Price:       types.JPY(1000),
			Benefits:    []string{"ブロンズ特典すべて", "コンテンツへの先行アクセス", "毎月の限定コンテンツ", "Discordアクセス"},
		},
		{
			Name:        "ゴールド",
			Description: "フルアクセスと特典付きのプレミアムティア",
			Price:       types.JPY(2000),
			Benefits:    []string{"シルバー特典すべて", "カスタムリクエスト", "ダイレクトメッセージ", "クレジット掲載"},
		},
	},
}
