package advice

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/garyellow/scamguard-linebot-go/internal/detection"
)

func TestExplainText(t *testing.T) {
	got := ExplainText(&detection.DetectionResult{
		Stage:     1,
		Labels:    []string{"romance", "made-up"},
		Rationale: map[string]string{},
	})

	assert.Equal(t, "🔎 判斷為階段 1（情感操控期）\n\n📌 觸發因子：\n• 情感操控：建立親密感：使用親暱稱呼、甜言蜜語\n• made-up", got)
}

func TestExplainText_NoLabels(t *testing.T) {
	got := ExplainText(&detection.DetectionResult{Stage: 0})

	assert.Contains(t, got, "• 無：未偵測到明確的詐騙特徵")
}

func TestPreventText(t *testing.T) {
	got := PreventText(&detection.DetectionResult{Stage: 4, Labels: []string{"urgency", "payment"}})

	lines := strings.Split(got, "\n")
	assert.Equal(t, "🛡️ 階段 4（付款引導期）防範建議", lines[0])
	// Tips follow a fixed order regardless of label order.
	assert.Contains(t, got, "1. 不要匯款")
	assert.Contains(t, got, "2. 對方催促時")
	assert.True(t, strings.HasSuffix(got, "165 反詐騙專線。"))
}

func TestPreventText_Generic(t *testing.T) {
	got := PreventText(&detection.DetectionResult{Stage: 0})

	assert.Contains(t, got, "1. 不透露個人資料")
}
