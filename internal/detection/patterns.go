package detection

import (
	"regexp"

	"github.com/garyellow/scamguard-linebot-go/internal/sliceutil"
)

// ScamPattern is a compiled regex and the label it emits.
type ScamPattern struct {
	Re    *regexp.Regexp
	Label string
}

// ScamPatterns are checked in order. Callers pass width-folded text so that
// full-width digits still match \d.
var ScamPatterns = []ScamPattern{
	{regexp.MustCompile(`醫(藥)?費|醫療|急需|救急`), "crisis"},
	{regexp.MustCompile(`帳戶(被)?凍結`), "crisis"},
	{regexp.MustCompile(`(轉|匯|借)[^\d]{0,3}(\d{3,})(元|塊|台幣)`), "payment"},
	{regexp.MustCompile(`這是.*帳[戶號]`), "payment"},
}

// MatchPatterns returns the distinct labels of all matching patterns, in
// pattern order.
func MatchPatterns(text string) []string {
	var labels []string
	for _, p := range ScamPatterns {
		if p.Re.MatchString(text) {
			labels = sliceutil.AppendUnique(labels, p.Label)
		}
	}
	return labels
}
