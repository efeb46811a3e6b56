package detection

import "strings"

type stageEntry struct {
	name   string
	advice string
}

var stageInfo = map[int]stageEntry{
	0: {"關係建立期", "暫無異常，保持正常互動"},
	1: {"情感操控期", "對方正在加速拉近距離，可嘗試要求視訊驗證"},
	2: {"信任測試期", "可能開始測試你的服從度，避免透露隱私/證件"},
	3: {"危機敘事期", "進入情緒勒索，先暫停匯款並與親友討論"},
	4: {"付款引導期", "金錢索求已出現，建議立即停止匯款並求助 165"},
	5: {"重複索求期", "高度疑似詐騙，蒐證後報警"},
	6: {"升級勒索期", "出現威脅或勒索，保留證據並立即報警"},
}

// StageInfo returns the display name and advice for stage.
func StageInfo(stage int) (name, advice string) {
	if e, ok := stageInfo[stage]; ok {
		return e.name, e.advice
	}
	return "未知階段", "請留意對話內容"
}

type labelEntry struct {
	category    string
	description string
}

var labelDesc = map[string]labelEntry{
	"crisis":       {"情緒觸發：恐懼/同情", "白騎士情境、醫療急需等危機敘事"},
	"payment":      {"經濟榨取：金錢索求", "提供帳戶或要求匯款"},
	"urgency":      {"認知偏誤：稀缺/緊迫", "出現『快點』『立刻』等字眼"},
	"authority":    {"認知偏誤：權威依從", "冒充政府/銀行增加可信度"},
	"similarity":   {"認知偏誤：同理心", "用相同特徵拉近關係"},
	"romance":      {"情感操控：建立親密感", "使用親暱稱呼、甜言蜜語"},
	"scarcity":     {"認知偏誤：稀缺/緊迫", "強調機會難得，錯過不再有"},
	NoAnomalyLabel: {"無", "未偵測到明確的詐騙特徵"},
}

// LabelDescription returns the category and description for label.
// Unknown labels (typically invented by the LLM) return (label, "").
func LabelDescription(label string) (category, description string) {
	if e, ok := labelDesc[label]; ok {
		return e.category, e.description
	}
	return label, ""
}

// TriggerText joins label categories with "、", or returns empty when there
// are no labels.
func TriggerText(labels []string) string {
	cats := make([]string, 0, len(labels))
	for _, l := range labels {
		c, _ := LabelDescription(l)
		if c != "" {
			cats = append(cats, c)
		}
	}
	return strings.Join(cats, "、")
}
