package lineutil

// Command texts sent by the quick reply buttons.
const (
	CmdUseOpenAI     = "Use OpenAI"
	CmdUseGemini     = "Use Gemini"
	CmdNextDetection = "Next Detection"
	CmdChatMore      = "Chat more"
)

// Postback payloads of the detection bubble footer.
const (
	PostbackExplain = "action=explain"
	PostbackPrevent = "action=prevent"
)

// QuickReplyUseOpenAI switches the preferred LLM to OpenAI.
func QuickReplyUseOpenAI() QuickReplyItem {
	return QuickReplyItem{Action: NewMessageAction(CmdUseOpenAI, CmdUseOpenAI)}
}

// QuickReplyUseGemini switches the preferred LLM to Gemini.
func QuickReplyUseGemini() QuickReplyItem {
	return QuickReplyItem{Action: NewMessageAction(CmdUseGemini, CmdUseGemini)}
}

// QuickReplyNextDetection resets the session.
func QuickReplyNextDetection() QuickReplyItem {
	return QuickReplyItem{Action: NewMessageAction(CmdNextDetection, CmdNextDetection)}
}

// QuickReplyChatMore continues the conversation from history.
func QuickReplyChatMore() QuickReplyItem {
	return QuickReplyItem{Action: NewMessageAction(CmdChatMore, CmdChatMore)}
}

// CommonQuickReplies is attached to every bot reply.
func CommonQuickReplies() []QuickReplyItem {
	return []QuickReplyItem{
		QuickReplyUseOpenAI(),
		QuickReplyUseGemini(),
		QuickReplyNextDetection(),
		QuickReplyChatMore(),
	}
}
