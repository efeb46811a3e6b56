// Package detection classifies chat text into scam narrative stages.
//
// Two tiers feed a result: a deterministic rule engine (regex patterns plus a
// keyword dictionary) and an optional LLM verdict. LLM fields are merged over
// the rule result one by one; any LLM failure degrades to the rule result.
package detection

import (
	"context"
	"time"
)

// Stage bounds.
const (
	MinStage = 0
	MaxStage = 6
)

// InputType describes what was analysed.
type InputType string

const (
	InputText       InputType = "text"
	InputLineExport InputType = "line_export"
)

// Source names which tier produced the final fields.
type Source string

const (
	SourceRules  Source = "rules"
	SourceLLM    Source = "llm"
	SourceMerged Source = "merged"
)

// Rationale keys.
const (
	KeyStageName   = "stage_name"
	KeyAdvice      = "advice"
	KeyTriggers    = "triggers"
	KeySource      = "source"
	KeyTheoryStage = "theory_stage"
	KeyRiskScore   = "risk_score"
	KeyKeywords    = "keywords"
	KeyLLM         = "llm"
	KeyLLMProvider = "llm_provider"
	KeyMessages    = "messages"
)

// NoAnomalyLabel is shown when nothing matched.
const NoAnomalyLabel = "無異常"

// DetectionResult is the outcome for one message.
type DetectionResult struct {
	InputType    InputType         `json:"input_type"`
	Stage        int               `json:"stage"`
	Labels       []string          `json:"labels"`
	Rationale    map[string]string `json:"rationale"`
	LLMError     bool              `json:"llm_error"`
	ErrorMessage string            `json:"error_message,omitempty"`
	Source       Source            `json:"source"`
	RiskScore    float64           `json:"risk_score"`
	CreatedAt    time.Time         `json:"created_at"`
}

// Classification is a parsed LLM verdict. Fields that were missing or
// invalid in the reply have their Has* flag unset.
type Classification struct {
	Stage     int
	HasStage  bool
	Labels    []string
	HasLabels bool
	Provider  string
}

// Classifier returns an LLM verdict for text. preferred names the provider
// to try first; implementations may answer with another and report it in
// Classification.Provider.
type Classifier interface {
	Classify(ctx context.Context, text, preferred string) (*Classification, error)
}

// Options tune a single Detect call.
type Options struct {
	// Provider is the user's preferred LLM provider. Empty uses the default.
	Provider string
}
