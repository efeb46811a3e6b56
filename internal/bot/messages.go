package bot

// User-facing texts shared by the processor and modules.
const (
	MsgInternalError   = "❌ 系統暫時發生錯誤，請稍後再試。"
	MsgRateLimited     = "⏳ 訊息過於頻繁，請稍後再試"
	MsgTooLong         = "❌ 訊息內容過長\n\n訊息長度超過 %d 字元，請縮短後重試。"
	MsgPostbackInvalid = "操作已過期或無效"
	MsgPostbackTooLong = "❌ 操作資料異常\n\n請重新使用功能。"
	MsgTextOnly        = "📝 目前僅支援文字訊息。\n請直接貼上可疑的對話內容，或匯出 LINE 聊天紀錄後貼上。"

	MsgWelcome = "您好！我是詐騙階段偵測小幫手 🛡️\n\n" +
		"請把可疑的對話貼給我，我會判斷目前落在詐騙流程的哪個階段，並提供建議。\n\n" +
		"• 可直接貼上單則訊息，或貼上 LINE 匯出的聊天紀錄\n" +
		"• 點「為何這樣判斷？」「如何防範？」取得說明\n" +
		"• 點「Next Detection」重新開始偵測"
	MsgDisclaimer = "⚠️ 偵測結果僅供參考，若有疑慮請撥打 165 反詐騙專線。"
)
