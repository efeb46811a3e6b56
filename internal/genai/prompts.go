package genai

import (
	"fmt"
	"strings"
)

// ClassificationSystemPrompt is shared by all providers.
const ClassificationSystemPrompt = `你是一個詐騙對話階段分類助手。
[Stage definitions]
0 Discovery: 發現目標。初步接觸和簡單交流，獲取基本資訊。
1 Bonding/Grooming: 建立信任和情感連結。透過共同點或浪漫關係拉近距離。
2 Testing Trust: 測試信任程度。可能提出小請求，觀察受害者反應。
3 Crisis Story: 製造危機和緊急情況。通常涉及醫療、法律或財務問題，以激發受害者同情或恐懼。
4 Payment Coaching: 引導付款。提供具體轉帳方式、帳戶資訊或要求購買禮物卡。
5 Aftermath/Repeat: 詐騙成功或失敗後的處理。可能要求更多金錢，或消失、重啟新詐騙。
6 Escalation/Extortion: 以威脅、不雅影像或公開隱私進行勒索。

[Labels]
authority, similarity, scarcity, urgency, romance, crisis, payment

[輸出格式]
只輸出一個 JSON 物件，不要加任何說明：
{"stage": <int>, "labels": ["urgency","crisis"]}

[Examples]
<dialog>
User: 嗨～可以認識你嗎？我也住台北！
Assistant: {"stage":1,"labels":["similarity","romance"]}
</dialog>
<dialog>
User: 我急需 5000 付媽媽醫藥費…拜託你幫我！
Assistant: {"stage":3,"labels":["urgency","crisis"]}
</dialog>
<dialog>
User: 這是銀行帳號 000-123-456，現在轉過去就能解凍！
Assistant: {"stage":4,"labels":["payment","urgency"]}
</dialog>
`

// ExplainPrompt asks why a message was classified as it was.
func ExplainPrompt(stage int, stageName, triggers string) string {
	return fmt.Sprintf("我剛剛偵測到一個訊息，分類結果為階段 %d（%s），觸發因子有 %s。請用 2～3 句話簡單說明為何會做出這樣的判斷。",
		stage, stageName, orNone(triggers))
}

// PreventPrompt asks for prevention advice.
func PreventPrompt(stage int, stageName, triggers string) string {
	return fmt.Sprintf("根據詐騙階段 %d（%s），觸發因子 %s，請列出 3 條最實用的防範建議。",
		stage, stageName, orNone(triggers))
}

// ChatMorePrompt continues the conversation from recent history.
func ChatMorePrompt(history []string) string {
	return "以下是我和對方的對話紀錄：\n" + strings.Join(history, "\n") + "\n請基於這些內容，繼續和我聊天。"
}

func orNone(s string) string {
	if strings.TrimSpace(s) == "" {
		return "無"
	}
	return s
}
