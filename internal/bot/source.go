package bot

import "github.com/line/line-bot-sdk-go/v8/linebot/webhook"

// GetChatID extracts the chat ID from a LINE source: the user ID for 1-on-1
// chats, otherwise the group or room ID.
func GetChatID(source webhook.SourceInterface) string {
	switch s := source.(type) {
	case webhook.UserSource:
		return s.UserId
	case webhook.GroupSource:
		return s.GroupId
	case webhook.RoomSource:
		return s.RoomId
	}
	return ""
}

// GetUserID extracts the sender's user ID. Group members who have not
// consented to profile sharing yield an empty string.
func GetUserID(source webhook.SourceInterface) string {
	switch s := source.(type) {
	case webhook.UserSource:
		return s.UserId
	case webhook.GroupSource:
		return s.UserId
	case webhook.RoomSource:
		return s.UserId
	}
	return ""
}

// IsPersonalChat checks if the source is a 1-on-1 chat.
func IsPersonalChat(source webhook.SourceInterface) bool {
	_, ok := source.(webhook.UserSource)
	return ok
}

// SessionKey picks the key that owns the detection session: the sender when
// known, else the chat.
func SessionKey(source webhook.SourceInterface) string {
	if id := GetUserID(source); id != "" {
		return id
	}
	return GetChatID(source)
}
