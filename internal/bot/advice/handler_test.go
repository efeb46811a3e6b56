package advice

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyellow/scamguard-linebot-go/internal/ctxutil"
	"github.com/garyellow/scamguard-linebot-go/internal/detection"
	"github.com/garyellow/scamguard-linebot-go/internal/genai"
	"github.com/garyellow/scamguard-linebot-go/internal/logger"
	"github.com/garyellow/scamguard-linebot-go/internal/ratelimit"
	"github.com/garyellow/scamguard-linebot-go/internal/storage"
)

const testUser = "U1234567890"

// fakeChat records prompts and returns a canned answer or error.
type fakeChat struct {
	answer    string
	err       error
	prompts   []string
	preferred genai.Provider
	deadline  bool
}

func (f *fakeChat) Complete(ctx context.Context, prompt string, preferred genai.Provider) (string, genai.Provider, error) {
	f.prompts = append(f.prompts, prompt)
	f.preferred = preferred
	_, f.deadline = ctx.Deadline()
	if f.err != nil {
		return "", "", f.err
	}
	return f.answer, genai.ProviderOpenAI, nil
}

func setup(t *testing.T, chat ChatModel, limiter *ratelimit.KeyedLimiter) (*Handler, *storage.DB, context.Context) {
	t.Helper()
	db, err := storage.NewTestDB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	h := NewHandler(Config{
		Store:      db,
		Chat:       chat,
		LLMLimiter: limiter,
		Logger:     logger.NewWithWriter("error", io.Discard),
		Timeout:    time.Second,
	})
	return h, db, ctxutil.WithUserID(context.Background(), testUser)
}

func replyText(t *testing.T, msgs []messaging_api.MessageInterface) string {
	t.Helper()
	require.Len(t, msgs, 1)
	txt, ok := msgs[0].(*messaging_api.TextMessage)
	require.True(t, ok, "got %T", msgs[0])
	require.NotNil(t, txt.QuickReply)
	assert.Len(t, txt.QuickReply.Items, 4)
	return txt.Text
}

func saveResult(t *testing.T, db *storage.DB, ctx context.Context) {
	t.Helper()
	require.NoError(t, db.SaveResult(ctx, testUser, &detection.DetectionResult{
		Stage:  4,
		Labels: []string{"payment", "urgency"},
		Rationale: map[string]string{
			detection.KeyKeywords:    "匯款、帳號",
			detection.KeyTheoryStage: "第四階段（索取）",
		},
	}))
}

func TestCanHandle(t *testing.T) {
	h, _, _ := setup(t, nil, nil)

	assert.True(t, h.CanHandle("Chat more"))
	assert.True(t, h.CanHandle(" chat  more "))
	assert.True(t, h.CanHandle("聊聊更多"))
	assert.False(t, h.CanHandle("我們再聊聊更多細節吧"))
	assert.Equal(t, "action=", h.PostbackPrefix())
}

func TestChatMore(t *testing.T) {
	chat := &fakeChat{answer: "  好啊，你最近怎麼樣？  "}
	h, db, ctx := setup(t, chat, nil)

	for _, m := range []string{"m1", "m2", "m3", "m4", "m5", "m6"} {
		require.NoError(t, db.AppendHistory(ctx, testUser, m))
	}
	require.NoError(t, db.SetProvider(ctx, testUser, "gemini"))

	assert.Equal(t, "好啊，你最近怎麼樣？", replyText(t, h.HandleMessage(ctx, "Chat more")))

	require.Len(t, chat.prompts, 1)
	assert.Equal(t, genai.ChatMorePrompt([]string{"m2", "m3", "m4", "m5", "m6"}), chat.prompts[0])
	assert.Equal(t, genai.ProviderGemini, chat.preferred)
	assert.True(t, chat.deadline)

	history, err := db.RecentHistory(ctx, testUser, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"m1", "m2", "m3", "m4", "m5", "m6"}, history)

	// Repeated rounds keep sending the same user messages.
	replyText(t, h.HandleMessage(ctx, "Chat more"))
	require.Len(t, chat.prompts, 2)
	assert.Equal(t, chat.prompts[0], chat.prompts[1])
}

func TestChatMore_NoHistory(t *testing.T) {
	chat := &fakeChat{answer: "x"}
	h, _, ctx := setup(t, chat, nil)

	assert.Equal(t, MsgNoHistory, replyText(t, h.HandleMessage(ctx, "Chat more")))
	assert.Empty(t, chat.prompts)
}

func TestChatMore_Failures(t *testing.T) {
	tests := []struct {
		name string
		chat ChatModel
	}{
		{"llm error", &fakeChat{err: errors.New("quota exceeded")}},
		{"empty answer", &fakeChat{answer: "   "}},
		{"no chat model", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, db, ctx := setup(t, tt.chat, nil)
			require.NoError(t, db.AppendHistory(ctx, testUser, "hi"))

			assert.Equal(t, MsgChatMoreError, replyText(t, h.HandleMessage(ctx, "Chat more")))
		})
	}
}

func TestPostback_NoResult(t *testing.T) {
	chat := &fakeChat{answer: "x"}
	h, _, ctx := setup(t, chat, nil)

	for _, action := range []string{ActionExplain, ActionPrevent} {
		assert.Equal(t, MsgNoResult, replyText(t, h.HandlePostback(ctx, action)))
	}
	assert.Empty(t, chat.prompts)
}

func TestPostback_LLM(t *testing.T) {
	tests := []struct {
		action     string
		wantPrompt string
	}{
		{ActionExplain, genai.ExplainPrompt(4, "付款引導期", "經濟榨取：金錢索求、認知偏誤：稀缺/緊迫")},
		{ActionPrevent, genai.PreventPrompt(4, "付款引導期", "經濟榨取：金錢索求、認知偏誤：稀缺/緊迫")},
	}

	for _, tt := range tests {
		t.Run(tt.action, func(t *testing.T) {
			chat := &fakeChat{answer: "因為出現匯款要求。"}
			h, db, ctx := setup(t, chat, nil)
			saveResult(t, db, ctx)

			assert.Equal(t, "因為出現匯款要求。", replyText(t, h.HandlePostback(ctx, tt.action)))
			require.Len(t, chat.prompts, 1)
			assert.Equal(t, tt.wantPrompt, chat.prompts[0])
		})
	}
}

func TestPostback_Fallback(t *testing.T) {
	limiter := ratelimit.NewKeyedLimiter(ratelimit.KeyedConfig{Name: "llm", Burst: 1, RefillRate: 0.0001})
	t.Cleanup(limiter.Stop)

	tests := []struct {
		name    string
		chat    ChatModel
		limiter *ratelimit.KeyedLimiter
	}{
		{"llm error", &fakeChat{err: errors.New("boom")}, nil},
		{"no chat model", nil, nil},
		{"rate limited", &fakeChat{answer: "ok"}, limiter},
	}

	// Drain the shared bucket so the rate-limited case is denied.
	require.True(t, limiter.Allow(testUser))

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, db, ctx := setup(t, tt.chat, tt.limiter)
			saveResult(t, db, ctx)

			explain := replyText(t, h.HandlePostback(ctx, ActionExplain))
			assert.Contains(t, explain, msgFallbackNote)
			assert.Contains(t, explain, "判斷為階段 4（付款引導期）")
			assert.Contains(t, explain, "• 經濟榨取：金錢索求：提供帳戶或要求匯款")
			assert.Contains(t, explain, "匯款、帳號")

			prevent := replyText(t, h.HandlePostback(ctx, ActionPrevent))
			assert.Contains(t, prevent, msgFallbackNote)
			assert.Contains(t, prevent, "建議立即停止匯款並求助 165")
		})
	}
}

func TestPostback_UnknownAction(t *testing.T) {
	h, _, ctx := setup(t, &fakeChat{answer: "x"}, nil)
	assert.Nil(t, h.HandlePostback(ctx, "delete"))
}
