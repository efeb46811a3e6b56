package detection

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyellow/scamguard-linebot-go/internal/logger"
)

type fakeClassifier struct {
	cls       *Classification
	err       error
	block     bool
	calls     atomic.Int32
	lastPref  atomic.Value
	lastInput atomic.Value
}

func (f *fakeClassifier) Classify(ctx context.Context, text, preferred string) (*Classification, error) {
	f.calls.Add(1)
	f.lastPref.Store(preferred)
	f.lastInput.Store(text)
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return f.cls, f.err
}

func newTestDetector(cfg Config) *Detector {
	cfg.Logger = logger.NewWithWriter("error", io.Discard)
	return New(cfg)
}

func TestDetect_RulesOnly(t *testing.T) {
	d := newTestDetector(Config{})

	tests := []struct {
		name       string
		text       string
		wantStage  int
		wantLabels []string
	}{
		{"medical crisis", "我急需 5000 付媽媽醫藥費…拜託你幫我！", 3, []string{"crisis"}},
		{"account handoff", "這是銀行帳號 000-123-456，現在轉過去就能解凍！", 4, []string{"payment"}},
		{"patterns then dictionary", "寶貝快點匯款5000元", 4, []string{"payment", "urgency", "romance"}},
		{"full width amount", "匯款５０００元", 4, []string{"payment"}},
		{"clean", "今天天氣很好", 0, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := d.Detect(context.Background(), tt.text, Options{})

			assert.Equal(t, InputText, res.InputType)
			assert.Equal(t, tt.wantStage, res.Stage)
			if diff := cmp.Diff(tt.wantLabels, res.Labels); diff != "" {
				t.Errorf("labels mismatch (-want +got):\n%s", diff)
			}
			assert.Equal(t, SourceRules, res.Source)
			assert.False(t, res.LLMError)
			assert.Equal(t, "unavailable", res.Rationale[KeyLLM])

			name, advice := StageInfo(tt.wantStage)
			assert.Equal(t, name, res.Rationale[KeyStageName])
			assert.Equal(t, advice, res.Rationale[KeyAdvice])
			assert.NotEmpty(t, res.Rationale[KeyTheoryStage])
			assert.NotEmpty(t, res.Rationale[KeyRiskScore])
			assert.False(t, res.CreatedAt.IsZero())
		})
	}
}

func TestDetect_NoLabelsTriggerText(t *testing.T) {
	d := newTestDetector(Config{})
	res := d.Detect(context.Background(), "今天天氣很好", Options{})
	assert.Equal(t, "無", res.Rationale[KeyTriggers])
}

func TestDetect_LLMMerge(t *testing.T) {
	tests := []struct {
		name       string
		text       string
		cls        Classification
		wantStage  int
		wantLabels []string
		wantSource Source
	}{
		{
			name:       "llm only",
			text:       "嗨～可以認識你嗎？我也住台北！",
			cls:        Classification{Stage: 1, HasStage: true, Labels: []string{"similarity", "romance"}, HasLabels: true},
			wantStage:  1,
			wantLabels: []string{"similarity", "romance"},
			wantSource: SourceLLM,
		},
		{
			name:       "llm labels first and priority floor",
			text:       "寶貝快點匯款5000元",
			cls:        Classification{Stage: 1, HasStage: true, Labels: []string{"romance"}, HasLabels: true},
			wantStage:  4,
			wantLabels: []string{"romance", "payment", "urgency"},
			wantSource: SourceMerged,
		},
		{
			name:       "llm stage above rules kept",
			text:       "寶貝快點匯款5000元",
			cls:        Classification{Stage: 5, HasStage: true, Labels: []string{"payment"}, HasLabels: true},
			wantStage:  5,
			wantLabels: []string{"payment", "urgency", "romance"},
			wantSource: SourceMerged,
		},
		{
			name:       "missing stage falls back then resolves",
			text:       "今天天氣很好",
			cls:        Classification{Labels: []string{"crisis"}, HasLabels: true},
			wantStage:  3,
			wantLabels: []string{"crisis"},
			wantSource: SourceLLM,
		},
		{
			name:       "missing labels fall back to rules",
			text:       "我的帳戶被凍結了",
			cls:        Classification{Stage: 2, HasStage: true},
			wantStage:  3,
			wantLabels: []string{"crisis"},
			wantSource: SourceMerged,
		},
		{
			name:       "llm stage 0 kept when keyword is part of a word",
			text:       "my new wireless earbuds",
			cls:        Classification{Stage: 0, HasStage: true, Labels: []string{}, HasLabels: true},
			wantStage:  0,
			wantLabels: []string{},
			wantSource: SourceLLM,
		},
		{
			name:       "nothing valid",
			text:       "我的帳戶被凍結了",
			cls:        Classification{},
			wantStage:  3,
			wantLabels: []string{"crisis"},
			wantSource: SourceRules,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cls := tt.cls
			cls.Provider = "openai"
			fc := &fakeClassifier{cls: &cls}
			d := newTestDetector(Config{Classifier: fc, Timeout: time.Second, DefaultProvider: "openai"})

			res := d.Detect(context.Background(), tt.text, Options{})

			assert.Equal(t, tt.wantStage, res.Stage)
			if diff := cmp.Diff(tt.wantLabels, res.Labels); diff != "" {
				t.Errorf("labels mismatch (-want +got):\n%s", diff)
			}
			assert.Equal(t, tt.wantSource, res.Source)
			assert.False(t, res.LLMError)
			assert.Equal(t, "ok", res.Rationale[KeyLLM])
			assert.Equal(t, "openai", res.Rationale[KeyLLMProvider])
		})
	}
}

func TestDetect_LLMErrorDegrades(t *testing.T) {
	fc := &fakeClassifier{err: errors.New("quota exceeded")}
	d := newTestDetector(Config{Classifier: fc, Timeout: time.Second})

	res := d.Detect(context.Background(), "寶貝快點匯款5000元", Options{})

	assert.True(t, res.LLMError)
	assert.Equal(t, "quota exceeded", res.ErrorMessage)
	assert.Equal(t, 4, res.Stage)
	assert.Equal(t, []string{"payment", "urgency", "romance"}, res.Labels)
	assert.Equal(t, SourceRules, res.Source)
	assert.Equal(t, "error", res.Rationale[KeyLLM])
}

func TestDetect_NilClassificationIsMalformed(t *testing.T) {
	fc := &fakeClassifier{}
	d := newTestDetector(Config{Classifier: fc})

	res := d.Detect(context.Background(), "你好", Options{})
	assert.True(t, res.LLMError)
	assert.NotEmpty(t, res.ErrorMessage)
}

func TestDetect_LLMTimeout(t *testing.T) {
	fc := &fakeClassifier{block: true}
	d := newTestDetector(Config{Classifier: fc, Timeout: 20 * time.Millisecond})

	start := time.Now()
	res := d.Detect(context.Background(), "我急需醫藥費", Options{})

	assert.Less(t, time.Since(start), time.Second)
	assert.True(t, res.LLMError)
	assert.Equal(t, "LLM 回應逾時", res.ErrorMessage)
	assert.Equal(t, 3, res.Stage)
}

func TestDetect_ShortCircuit(t *testing.T) {
	fc := &fakeClassifier{cls: &Classification{Stage: 0, HasStage: true}}
	d := newTestDetector(Config{Classifier: fc, ShortCircuit: true})

	res := d.Detect(context.Background(), "我急需醫藥費", Options{})
	assert.Equal(t, int32(0), fc.calls.Load())
	assert.Equal(t, 3, res.Stage)
	assert.Equal(t, "skipped", res.Rationale[KeyLLM])

	// Dictionary-only matches still reach the LLM.
	d.Detect(context.Background(), "親愛的我想你", Options{})
	assert.Equal(t, int32(1), fc.calls.Load())
}

func TestDetector_WillUseLLM(t *testing.T) {
	fc := &fakeClassifier{cls: &Classification{}}

	tests := []struct {
		name string
		cfg  Config
		text string
		want bool
	}{
		{"no classifier", Config{}, "親愛的我想你", false},
		{"llm runs", Config{Classifier: fc}, "我急需醫藥費", true},
		{"pattern short-circuits", Config{Classifier: fc, ShortCircuit: true}, "我急需醫藥費", false},
		{"dictionary only still runs", Config{Classifier: fc, ShortCircuit: true}, "親愛的我想你", true},
		{"line export body", Config{Classifier: fc, ShortCircuit: true}, "2024.05.01 星期三\n21:05\t小美\t我急需醫藥費", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newTestDetector(tt.cfg)
			assert.Equal(t, tt.want, d.WillUseLLM(tt.text))
		})
	}
	assert.Zero(t, fc.calls.Load())
}

func TestDetect_ProviderPreference(t *testing.T) {
	fc := &fakeClassifier{cls: &Classification{}}
	d := newTestDetector(Config{Classifier: fc, DefaultProvider: "openai"})

	d.Detect(context.Background(), "你好", Options{})
	assert.Equal(t, "openai", fc.lastPref.Load())

	d.Detect(context.Background(), "你好", Options{Provider: "gemini"})
	assert.Equal(t, "gemini", fc.lastPref.Load())
}

func TestDetect_LineExport(t *testing.T) {
	export := "2024.05.01 星期三\n21:03\t小美\t寶貝我想你\n21:05\t小美\t我急需醫藥費，這是我的帳戶"
	fc := &fakeClassifier{cls: &Classification{}}
	d := newTestDetector(Config{Classifier: fc})

	res := d.Detect(context.Background(), export, Options{})

	assert.Equal(t, InputLineExport, res.InputType)
	assert.Equal(t, "2", res.Rationale[KeyMessages])
	assert.Equal(t, "寶貝我想你\n我急需醫藥費，這是我的帳戶", fc.lastInput.Load())
	assert.Equal(t, 4, res.Stage)
	assert.Contains(t, res.Labels, "crisis")
	assert.Contains(t, res.Labels, "payment")
	assert.Contains(t, res.Labels, "romance")
}

func TestDetectRules(t *testing.T) {
	d := newTestDetector(Config{Classifier: &fakeClassifier{err: errors.New("must not be called")}})

	res := d.DetectRules("這是我的帳號")
	assert.Equal(t, 4, res.Stage)
	assert.False(t, res.LLMError)
	assert.Equal(t, SourceRules, res.Source)
}

func TestDetector_SetRules(t *testing.T) {
	d := newTestDetector(Config{})
	assert.Equal(t, 0, d.Detect(context.Background(), "他說要公開不雅照", Options{}).Stage)

	rs, err := NewRuleSet(
		[]LabelRule{{Label: "threat", Keywords: []string{"不雅照"}}},
		StagePriority{{Stage: 6, Labels: []string{"threat"}}},
		"v2",
	)
	require.NoError(t, err)
	d.SetRules(rs)
	d.SetRules(nil)

	res := d.Detect(context.Background(), "他說要公開不雅照", Options{})
	assert.Equal(t, 6, res.Stage)
	assert.Equal(t, []string{"threat"}, res.Labels)
	assert.Equal(t, "v2", d.Rules().Version())
}

func TestMerge(t *testing.T) {
	stage, labels, source := Merge(Classification{Stage: 2, HasStage: true, Labels: []string{"b", "a"}, HasLabels: true}, 3, []string{"a", "c"})
	assert.Equal(t, 2, stage)
	assert.Equal(t, []string{"b", "a", "c"}, labels)
	assert.Equal(t, SourceMerged, source)
}
