package bot

import (
	"testing"

	"github.com/line/line-bot-sdk-go/v8/linebot/webhook"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatchCommand(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		aliases []string
		want    bool
	}{
		{"exact", "Next Detection", []string{"Next Detection"}, true},
		{"case folded", "next detection", []string{"Next Detection"}, true},
		{"extra whitespace", "  Next   Detection \n", []string{"Next Detection"}, true},
		{"chinese alias", "下一段偵測", []string{"下一段偵測", "Next Detection"}, true},
		{"embedded in conversation", "他說 Next Detection 之後再匯款", []string{"Next Detection"}, false},
		{"empty", "   ", []string{""}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MatchCommand(tt.text, tt.aliases...))
		})
	}
}

func TestTruncateID(t *testing.T) {
	assert.Equal(t, "U1234567...", TruncateID("U1234567890abcdef"))
	assert.Equal(t, "U12", TruncateID("U12"))
}

func TestParsePostback(t *testing.T) {
	pb, err := ParsePostback("action=explain&stage=3")
	require.NoError(t, err)
	assert.Equal(t, "explain", pb.Action)
	assert.Equal(t, "3", pb.Params.Get("stage"))
	assert.Empty(t, pb.Params.Get("action"))

	_, err = ParsePostback("stage=3")
	require.ErrorIs(t, err, errMissingAction)

	_, err = ParsePostback("action=%zz")
	assert.Error(t, err)
}

func TestSourceHelpers(t *testing.T) {
	tests := []struct {
		name        string
		source      webhook.SourceInterface
		wantChat    string
		wantUser    string
		wantSession string
		personal    bool
	}{
		{"user", webhook.UserSource{UserId: "U1"}, "U1", "U1", "U1", true},
		{"group", webhook.GroupSource{GroupId: "G1", UserId: "U2"}, "G1", "U2", "U2", false},
		{"group without user", webhook.GroupSource{GroupId: "G1"}, "G1", "", "G1", false},
		{"room", webhook.RoomSource{RoomId: "R1", UserId: "U3"}, "R1", "U3", "U3", false},
		{"unknown", nil, "", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantChat, GetChatID(tt.source))
			assert.Equal(t, tt.wantUser, GetUserID(tt.source))
			assert.Equal(t, tt.wantSession, SessionKey(tt.source))
			assert.Equal(t, tt.personal, IsPersonalChat(tt.source))
		})
	}
}

func TestStripBotMentions(t *testing.T) {
	self := func(index, length int32) webhook.MentioneeInterface {
		return webhook.UserMentionee{Index: index, Length: length, IsSelf: true}
	}
	other := webhook.UserMentionee{Index: 0, Length: 3, UserId: "U9"}

	tests := []struct {
		name    string
		text    string
		mention *webhook.Mention
		want    string
	}{
		{"nil mention", "  hi  ", nil, "hi"},
		{"leading", "@防詐 快匯款", &webhook.Mention{Mentionees: []webhook.MentioneeInterface{self(0, 3)}}, "快匯款"},
		{"keeps line breaks", "@防詐\n阿明: 在嗎\n小美: 借我錢", &webhook.Mention{Mentionees: []webhook.MentioneeInterface{self(0, 3)}}, "阿明: 在嗎\n小美: 借我錢"},
		{"other user kept", "@小明 @防詐 看這個", &webhook.Mention{Mentionees: []webhook.MentioneeInterface{other, self(4, 3)}}, "@小明  看這個"},
		{"out of range ignored", "hi", &webhook.Mention{Mentionees: []webhook.MentioneeInterface{self(10, 3)}}, "hi"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, stripBotMentions(tt.text, tt.mention))
		})
	}
}

func TestIsBotMentioned(t *testing.T) {
	assert.False(t, isBotMentioned(webhook.TextMessageContent{Text: "hi"}))
	assert.False(t, isBotMentioned(webhook.TextMessageContent{
		Mention: &webhook.Mention{Mentionees: []webhook.MentioneeInterface{webhook.UserMentionee{UserId: "U9"}}},
	}))
	assert.True(t, isBotMentioned(webhook.TextMessageContent{
		Mention: &webhook.Mention{Mentionees: []webhook.MentioneeInterface{
			webhook.UserMentionee{UserId: "U8"},
			webhook.UserMentionee{IsSelf: true},
		}},
	}))
}
