package lineutil

// LINE API Character Limits (Rune count)
// References: https://developers.line.biz/en/reference/messaging-api/
const (
	MaxTextMessageLength = 5000 // Text message max content length
	MaxAltTextLength     = 400  // Flex message alt text length
	MaxPostbackData      = 300  // Postback action data length

	// Quick Reply Limits
	MaxQuickReplyItemCount = 13
	MaxQuickReplyLabel     = 20
)
