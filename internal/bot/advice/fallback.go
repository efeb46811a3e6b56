package advice

import (
	"fmt"
	"strings"

	"github.com/garyellow/scamguard-linebot-go/internal/detection"
)

// ExplainText describes a result from the rule tables alone.
func ExplainText(res *detection.DetectionResult) string {
	name, _ := detection.StageInfo(res.Stage)

	var b strings.Builder
	fmt.Fprintf(&b, "🔎 判斷為階段 %d（%s）", res.Stage, name)

	labels := res.Labels
	if len(labels) == 0 {
		labels = []string{detection.NoAnomalyLabel}
	}
	b.WriteString("\n\n📌 觸發因子：")
	for _, l := range labels {
		cat, desc := detection.LabelDescription(l)
		if desc == "" {
			fmt.Fprintf(&b, "\n• %s", cat)
			continue
		}
		fmt.Fprintf(&b, "\n• %s：%s", cat, desc)
	}

	if kw := res.Rationale[detection.KeyKeywords]; kw != "" {
		fmt.Fprintf(&b, "\n\n🔑 關鍵字：%s", kw)
	}
	if theory := res.Rationale[detection.KeyTheoryStage]; theory != "" {
		fmt.Fprintf(&b, "\n📖 對應理論階段：%s", theory)
	}
	return b.String()
}

// preventTips are generic measures by label, in display order.
var preventTips = []struct {
	label string
	tip   string
}{
	{"payment", "不要匯款或提供帳戶、驗證碼，任何付款要求先撥打 165 查證"},
	{"authority", "自稱檢警、銀行或政府人員時，掛斷後自行查詢官方電話回撥確認"},
	{"urgency", "對方催促時刻意放慢，任何決定至少隔一天再做"},
	{"scarcity", "「機會難得」「名額有限」多半是話術，不要因害怕錯過而行動"},
	{"crisis", "遇到急難求助先與親友討論，並以視訊或當面方式確認對方身分"},
	{"romance", "未曾見面的網友表達強烈感情時，要求視訊並避免分享私密照片"},
	{"similarity", "對方刻意與你有相同背景或興趣時，多加留意其真實身分"},
}

// PreventText lists advice for a result from the rule tables alone.
func PreventText(res *detection.DetectionResult) string {
	name, advice := detection.StageInfo(res.Stage)

	var b strings.Builder
	fmt.Fprintf(&b, "🛡️ 階段 %d（%s）防範建議\n\n👉 %s", res.Stage, name, advice)

	n := 0
	for _, t := range preventTips {
		for _, l := range res.Labels {
			if l == t.label {
				n++
				fmt.Fprintf(&b, "\n%d. %s", n, t.tip)
				break
			}
		}
	}
	if n == 0 {
		b.WriteString("\n1. 不透露個人資料、證件與帳戶資訊\n2. 對陌生人的投資或借貸要求保持警覺")
	}
	b.WriteString("\n\n如有疑慮請撥打 165 反詐騙專線。")
	return b.String()
}
