package lineutil

import (
	"fmt"

	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"

	"github.com/garyellow/scamguard-linebot-go/internal/detection"
)

// Alt texts shown in chat lists and push notifications.
const (
	AltTextDetection = "詐騙偵測結果"
	AltTextReset     = "重置偵測"
)

// User-facing texts of the detection bubble.
const (
	noRiskLabelText    = "無風險標籤"
	llmFailedTriggers  = "LLM 分析失敗"
	analysisErrorTitle = "❌ 分析異常"
	unknownErrorText   = "未知錯誤"
	resetPromptText    = "📩 請傳送下一段對話，我會重新開始偵測。"
)

// DetectionTriggers joins the label categories, or returns the
// no-risk text when there are none.
func DetectionTriggers(labels []string) string {
	if t := detection.TriggerText(labels); t != "" {
		return t
	}
	return noRiskLabelText
}

// NewDetectionBubble renders a detection result.
//
// Layout:
//
//	┌─────────────────────────────────────────┐
//	│ 🔎 目前階段：N（name）                   │ <- colored by stage
//	│ ─────────────────────────────────────── │
//	│ 📌 觸發因子：…                           │
//	│ ─────────────────────────────────────── │
//	│ 👉 建議行動：…                           │
//	├─────────────────────────────────────────┤
//	│ [為何這樣判斷？]       [如何防範？]      │ <- postbacks
//	└─────────────────────────────────────────┘
//
// When the LLM failed the header turns into an error title, and the stage
// from the rule engine is shown as a secondary line.
func NewDetectionBubble(res *detection.DetectionResult) *FlexBubble {
	name, advice := detection.StageInfo(res.Stage)
	header := fmt.Sprintf("🔎 目前階段：%d（%s）", res.Stage, name)
	color := StageColor(res.Stage)
	triggers := DetectionTriggers(res.Labels)

	contents := make([]messaging_api.FlexComponentInterface, 0, 7)
	if res.LLMError {
		reason := res.ErrorMessage
		if reason == "" {
			reason = unknownErrorText
		}
		triggers = llmFailedTriggers
		advice = fmt.Sprintf("AI 功能暫時無法使用。原因：%s。請檢查 OpenAI 配額或稍後重試。", reason)

		contents = append(contents,
			NewFlexText(analysisErrorTitle).WithWeight("bold").WithSize("lg").WithColor(ColorStageDanger).FlexText,
			NewFlexText("規則判定："+header).WithSize("sm").WithColor(ColorSubtext).WithWrap(true).WithMargin("sm").FlexText,
		)
	} else {
		contents = append(contents,
			NewFlexText(header).WithWeight("bold").WithSize("lg").WithColor(color).WithWrap(true).FlexText,
		)
	}

	contents = append(contents,
		NewFlexSeparator().WithMargin("md").FlexSeparator,
		NewSectionText("📌 觸發因子："+triggers).FlexText,
		NewFlexSeparator().WithMargin("md").FlexSeparator,
		NewSectionText("👉 建議行動："+advice).FlexText,
	)

	footer := NewButtonRow(
		NewFlexButton(NewPostbackActionWithDisplayText("為何這樣判斷？", "為何這樣判斷？", PostbackExplain)).WithStyle("link").WithHeight("sm"),
		NewFlexButton(NewPostbackActionWithDisplayText("如何防範？", "如何防範？", PostbackPrevent)).WithStyle("link").WithHeight("sm"),
	)

	return NewFlexBubble(nil, nil, NewFlexBox("vertical", contents...), footer)
}

// NewDetectionMessage wraps the detection bubble with the common quick replies.
func NewDetectionMessage(res *detection.DetectionResult) *messaging_api.FlexMessage {
	return NewFlexMessageWithQuickReply(AltTextDetection, NewDetectionBubble(res).FlexBubble, CommonQuickReplies()...)
}

// NewResetMessage confirms a session reset.
func NewResetMessage() *messaging_api.FlexMessage {
	body := NewFlexBox("vertical",
		NewFlexText(resetPromptText).WithWrap(true).WithAlign("center").FlexText,
	)
	bubble := NewFlexBubble(nil, nil, body, nil)
	return NewFlexMessageWithQuickReply(AltTextReset, bubble.FlexBubble, CommonQuickReplies()...)
}
