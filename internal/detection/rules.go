package detection

import (
	"cmp"
	"errors"
	"fmt"
	"io"
	"regexp"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/garyellow/scamguard-linebot-go/internal/sliceutil"
)

// LabelRule is one dictionary entry.
type LabelRule struct {
	Label    string   `yaml:"label"`
	Keywords []string `yaml:"keywords"`
}

// StageRule maps a stage to the labels that imply it.
type StageRule struct {
	Stage  int      `yaml:"stage"`
	Labels []string `yaml:"labels"`
}

// StagePriority is ordered from highest stage to lowest.
type StagePriority []StageRule

// Resolve returns the highest stage whose label set intersects labels,
// or 0 when none does.
func (p StagePriority) Resolve(labels []string) int {
	for _, rule := range p {
		for _, l := range rule.Labels {
			if slices.Contains(labels, l) {
				return rule.Stage
			}
		}
	}
	return MinStage
}

// DefaultPriority mirrors the stage counter: payment beats crisis.
func DefaultPriority() StagePriority {
	return StagePriority{
		{Stage: 4, Labels: []string{"payment"}},
		{Stage: 3, Labels: []string{"crisis"}},
	}
}

// RuleSet is an immutable keyword dictionary plus its stage priority.
// Build one with NewRuleSet or LoadRuleSet.
type RuleSet struct {
	rules    []LabelRule // keywords already normalized
	matchers []labelMatcher
	priority StagePriority
	version  string
}

// labelMatcher holds one label's keywords compiled for matching. ASCII
// keywords only match whole words; other keywords match anywhere.
type labelMatcher struct {
	label      string
	words      *regexp.Regexp
	substrings []string
}

func (m labelMatcher) match(norm string) bool {
	if m.words != nil && m.words.MatchString(norm) {
		return true
	}
	for _, kw := range m.substrings {
		if strings.Contains(norm, kw) {
			return true
		}
	}
	return false
}

func newLabelMatcher(label string, keywords []string) (labelMatcher, error) {
	m := labelMatcher{label: label}
	var words []string
	for _, kw := range keywords {
		if isASCII(kw) {
			words = append(words, regexp.QuoteMeta(kw))
		} else {
			m.substrings = append(m.substrings, kw)
		}
	}
	if len(words) > 0 {
		re, err := regexp.Compile(`(?i)\b(?:` + strings.Join(words, "|") + `)\b`)
		if err != nil {
			return labelMatcher{}, fmt.Errorf("rule %q: %w", label, err)
		}
		m.words = re
	}
	return m, nil
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			return false
		}
	}
	return true
}

// NewRuleSet validates rules and normalizes keywords. A nil priority uses
// DefaultPriority.
func NewRuleSet(rules []LabelRule, priority StagePriority, version string) (*RuleSet, error) {
	if len(rules) == 0 {
		return nil, errors.New("rule set has no labels")
	}

	seen := make(map[string]struct{}, len(rules))
	normalized := make([]LabelRule, 0, len(rules))
	matchers := make([]labelMatcher, 0, len(rules))
	for i, r := range rules {
		label := strings.TrimSpace(r.Label)
		if label == "" {
			return nil, fmt.Errorf("rule %d: empty label", i)
		}
		if _, dup := seen[label]; dup {
			return nil, fmt.Errorf("rule %d: duplicate label %q", i, label)
		}
		seen[label] = struct{}{}

		var kws []string
		for _, kw := range r.Keywords {
			if kw = Normalize(strings.TrimSpace(kw)); kw != "" {
				kws = sliceutil.AppendUnique(kws, kw)
			}
		}
		if len(kws) == 0 {
			return nil, fmt.Errorf("rule %q: no keywords", label)
		}
		m, err := newLabelMatcher(label, kws)
		if err != nil {
			return nil, err
		}
		normalized = append(normalized, LabelRule{Label: label, Keywords: kws})
		matchers = append(matchers, m)
	}

	if priority == nil {
		priority = DefaultPriority()
	}
	for _, p := range priority {
		if p.Stage <= MinStage || p.Stage > MaxStage {
			return nil, fmt.Errorf("priority stage %d out of range 1..%d", p.Stage, MaxStage)
		}
	}
	ordered := slices.Clone(priority)
	slices.SortStableFunc(ordered, func(a, b StageRule) int { return cmp.Compare(b.Stage, a.Stage) })

	return &RuleSet{rules: normalized, matchers: matchers, priority: ordered, version: version}, nil
}

// DefaultRuleSet returns the built-in dictionary.
func DefaultRuleSet() *RuleSet {
	rs, err := NewRuleSet([]LabelRule{
		{"authority", []string{"officer", "bank", "agent", "official", "protocol"}},
		{"similarity", []string{"me too", "same", "also", "just like you"}},
		{"scarcity", []string{"last chance", "only today", "limited", "rare"}},
		{"urgency", []string{"urgent", "immediately", "asap", "now", "right away", "快點", "馬上", "立刻"}},
		{"romance", []string{"sweetheart", "my love", "miss you", "never felt", "親愛的", "想你", "寶貝"}},
		{"crisis", []string{"hospital", "surgery", "accident", "fees", "visa", "customs", "醫院", "急診", "手術", "車禍"}},
		{"payment", []string{"transfer", "wire", "crypto", "bitcoin", "gift card", "account number", "匯款", "轉帳", "帳號", "比特幣", "禮物卡"}},
	}, nil, "builtin")
	if err != nil {
		panic(err)
	}
	return rs
}

// Match returns dictionary labels in rule order. text is normalized here.
// "wire" matches "wire the money" but not "wireless".
func (rs *RuleSet) Match(text string) []string {
	norm := Normalize(text)
	var labels []string
	for _, m := range rs.matchers {
		if m.match(norm) {
			labels = append(labels, m.label)
		}
	}
	return labels
}

// Priority returns the stage priority, highest stage first.
func (rs *RuleSet) Priority() StagePriority { return rs.priority }

// Version identifies where the rule set came from.
func (rs *RuleSet) Version() string { return rs.version }

// Labels returns label names in dictionary order.
func (rs *RuleSet) Labels() []string {
	out := make([]string, len(rs.rules))
	for i, r := range rs.rules {
		out[i] = r.Label
	}
	return out
}

type ruleFile struct {
	Version  string        `yaml:"version"`
	Labels   []LabelRule   `yaml:"labels"`
	Priority StagePriority `yaml:"priority"`
}

// LoadRuleSet decodes a YAML rule dictionary:
//
//	version: "2024-05"
//	labels:
//	  - label: payment
//	    keywords: [匯款, transfer]
//	priority:
//	  - stage: 4
//	    labels: [payment]
//
// Unknown fields are rejected.
func LoadRuleSet(r io.Reader) (*RuleSet, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var f ruleFile
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("decode rule file: %w", err)
	}
	if f.Version == "" {
		f.Version = "unversioned"
	}
	return NewRuleSet(f.Labels, f.Priority, f.Version)
}
