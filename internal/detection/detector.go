package detection

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/garyellow/scamguard-linebot-go/internal/chatlog"
	domerrors "github.com/garyellow/scamguard-linebot-go/internal/errors"
	"github.com/garyellow/scamguard-linebot-go/internal/logger"
	"github.com/garyellow/scamguard-linebot-go/internal/metrics"
	"github.com/garyellow/scamguard-linebot-go/internal/sliceutil"
)

// Config wires a Detector.
type Config struct {
	// Classifier is optional; nil runs the rule engine only.
	Classifier Classifier

	// Timeout bounds each Classify call. Zero means no extra deadline.
	Timeout time.Duration

	// ShortCircuit skips the LLM when a regex pattern already matched.
	ShortCircuit bool

	// DefaultProvider is used when Options.Provider is empty.
	DefaultProvider string

	// Rules is the initial rule set; nil uses DefaultRuleSet.
	Rules *RuleSet

	Metrics *metrics.Metrics
	Logger  *logger.Logger
}

// Detector runs rule matching and the optional LLM tier.
// It is safe for concurrent use; the rule set can be swapped at runtime.
type Detector struct {
	rules        atomic.Pointer[RuleSet]
	classifier   Classifier
	timeout      time.Duration
	shortCircuit bool
	provider     string
	metrics      *metrics.Metrics
	logger       *logger.Logger
	now          func() time.Time
}

// New creates a Detector.
func New(cfg Config) *Detector {
	log := cfg.Logger
	if log == nil {
		log = logger.New("info")
	}
	d := &Detector{
		classifier:   cfg.Classifier,
		timeout:      cfg.Timeout,
		shortCircuit: cfg.ShortCircuit,
		provider:     cfg.DefaultProvider,
		metrics:      cfg.Metrics,
		logger:       log.WithModule("detection"),
		now:          time.Now,
	}
	rules := cfg.Rules
	if rules == nil {
		rules = DefaultRuleSet()
	}
	d.rules.Store(rules)
	return d
}

// Rules returns the active rule set.
func (d *Detector) Rules() *RuleSet { return d.rules.Load() }

// SetRules swaps the active rule set. nil is ignored.
func (d *Detector) SetRules(rs *RuleSet) {
	if rs != nil {
		d.rules.Store(rs)
	}
}

// WillUseLLM reports whether Detect would call the LLM for text: a
// classifier is configured and rule short-circuiting does not skip it.
func (d *Detector) WillUseLLM(text string) bool {
	if d.classifier == nil {
		return false
	}
	if !d.shortCircuit {
		return true
	}
	_, body, _ := prepare(text)
	return len(MatchPatterns(Fold(body))) == 0
}

type ruleOutcome struct {
	patternLabels []string
	labels        []string
	stage         int
}

func (d *Detector) runRules(text string) ruleOutcome {
	rs := d.rules.Load()
	folded := Fold(text)
	patternLabels := MatchPatterns(folded)
	labels := sliceutil.AppendUnique(append([]string(nil), patternLabels...), rs.Match(folded)...)
	return ruleOutcome{
		patternLabels: patternLabels,
		labels:        labels,
		stage:         rs.Priority().Resolve(labels),
	}
}

// prepare picks the input type and the text to analyse.
func prepare(text string) (InputType, string, int) {
	if err := chatlog.Validate(text); err == nil {
		lines := chatlog.Parse(text)
		if body := chatlog.Contents(lines); body != "" {
			return InputLineExport, body, len(lines)
		}
	}
	return InputText, text, 0
}

// DetectRules runs the rule tier only. It never calls the LLM.
func (d *Detector) DetectRules(text string) DetectionResult {
	inputType, body, n := prepare(text)
	r := d.runRules(body)
	res := d.newResult(inputType, body, r.stage, r.labels, SourceRules)
	if n > 0 {
		res.Rationale[KeyMessages] = strconv.Itoa(n)
	}
	return res
}

// Detect classifies text. LLM failures never surface as errors: the rule
// result is returned with LLMError set instead.
func (d *Detector) Detect(ctx context.Context, text string, opts Options) DetectionResult {
	start := d.now()
	inputType, body, n := prepare(text)
	rules := d.runRules(body)

	var res DetectionResult
	switch {
	case d.classifier == nil:
		res = d.newResult(inputType, body, rules.stage, rules.labels, SourceRules)
		res.Rationale[KeyLLM] = "unavailable"

	case d.shortCircuit && len(rules.patternLabels) > 0:
		res = d.newResult(inputType, body, rules.stage, rules.labels, SourceRules)
		res.Rationale[KeyLLM] = "skipped"

	default:
		res = d.detectWithLLM(ctx, inputType, body, rules, opts)
	}

	if n > 0 {
		res.Rationale[KeyMessages] = strconv.Itoa(n)
	}

	d.metrics.RecordDetection(string(res.InputType), res.Stage, string(res.Source), res.LLMError, time.Since(start).Seconds())
	d.metrics.RecordRuleLabels(rules.labels)
	d.logger.DebugContext(ctx, "Detection finished",
		"input_type", res.InputType,
		"stage", res.Stage,
		"labels", res.Labels,
		"source", res.Source,
		"llm_error", res.LLMError)
	return res
}

func (d *Detector) detectWithLLM(ctx context.Context, inputType InputType, body string, rules ruleOutcome, opts Options) DetectionResult {
	provider := opts.Provider
	if provider == "" {
		provider = d.provider
	}

	callCtx := ctx
	if d.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	cls, err := d.classifier.Classify(callCtx, body, provider)
	if err == nil && cls == nil {
		err = domerrors.ErrMalformedResponse
	}
	if err != nil {
		msg := llmErrorMessage(err)
		d.logger.WarnContext(ctx, "LLM classification failed, using rule result",
			"provider", provider, "error", err)
		res := d.newResult(inputType, body, rules.stage, rules.labels, SourceRules)
		res.LLMError = true
		res.ErrorMessage = msg
		res.Rationale[KeyLLM] = "error"
		return res
	}

	stage, labels, source := Merge(*cls, rules.stage, rules.labels)
	stage = max(stage, d.rules.Load().Priority().Resolve(labels))

	res := d.newResult(inputType, body, stage, labels, source)
	res.Rationale[KeyLLM] = "ok"
	if cls.Provider != "" {
		res.Rationale[KeyLLMProvider] = cls.Provider
	}
	return res
}

// Merge lays LLM fields over the rule fallback. A missing stage or label
// list falls back to the rule value; labels are the union with LLM labels
// first.
func Merge(cls Classification, ruleStage int, ruleLabels []string) (stage int, labels []string, source Source) {
	stage = ruleStage
	if cls.HasStage {
		stage = cls.Stage
	}

	if cls.HasLabels {
		labels = sliceutil.AppendUnique(append([]string(nil), cls.Labels...), ruleLabels...)
	} else {
		labels = append([]string(nil), ruleLabels...)
	}

	switch {
	case !cls.HasStage && !cls.HasLabels:
		source = SourceRules
	case len(ruleLabels) == 0:
		source = SourceLLM
	default:
		source = SourceMerged
	}
	return stage, labels, source
}

func (d *Detector) newResult(inputType InputType, body string, stage int, labels []string, source Source) DetectionResult {
	if labels == nil {
		labels = []string{}
	}
	name, advice := StageInfo(stage)
	risk := KeywordRisk(body)
	theory, phase := TheoryStage(body)
	if phase != "" {
		theory += "（" + phase + "）"
	}

	triggers := TriggerText(labels)
	if triggers == "" {
		triggers, _ = LabelDescription(NoAnomalyLabel)
	}

	return DetectionResult{
		InputType: inputType,
		Stage:     stage,
		Labels:    labels,
		Rationale: map[string]string{
			KeyStageName:   name,
			KeyAdvice:      advice,
			KeyTriggers:    triggers,
			KeySource:      string(source),
			KeyTheoryStage: theory,
			KeyRiskScore:   strconv.FormatFloat(risk.Score, 'f', 2, 64),
			KeyKeywords:    strings.Join(risk.Keywords, "、"),
		},
		Source:    source,
		RiskScore: risk.Score,
		CreatedAt: d.now(),
	}
}

func llmErrorMessage(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "LLM 回應逾時"
	case errors.Is(err, context.Canceled):
		return "請求已取消"
	default:
		return err.Error()
	}
}
