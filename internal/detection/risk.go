package detection

import (
	"log/slog"
	"math"
	"strings"
	"sync"
	"unicode"

	"github.com/go-ego/gse"
)

// riskKeywords are the suspicious terms counted by KeywordRisk.
var riskKeywords = []string{
	"匯款", "帳戶", "金額", "投資", "虛擬貨幣", "穩賺不賠", "寶貝",
	"很急", "快點", "轉帳", "款項", "單身", "我只信你",
}

// Risk is the keyword-density score of a text.
type Risk struct {
	Score    float64
	Hits     int
	Tokens   int
	Keywords []string
}

var (
	segOnce sync.Once
	seg     gse.Segmenter
	segOK   bool
)

func segmenter() (*gse.Segmenter, bool) {
	segOnce.Do(func() {
		if err := seg.LoadDictEmbed(); err != nil {
			slog.Warn("gse dictionary unavailable, using rune tokenizer", "error", err)
			return
		}
		segOK = true
	})
	return &seg, segOK
}

// Tokenize splits text into words, dropping whitespace and punctuation.
func Tokenize(text string) []string {
	text = Normalize(text)
	if text == "" {
		return nil
	}

	var raw []string
	if s, ok := segmenter(); ok {
		raw = s.Cut(text, true)
	} else {
		raw = runeTokens(text)
	}

	tokens := raw[:0]
	for _, tok := range raw {
		tok = strings.TrimSpace(tok)
		if tok == "" || !strings.ContainsFunc(tok, isWordRune) {
			continue
		}
		tokens = append(tokens, tok)
	}
	return tokens
}

// KeywordRisk scores text by suspicious keyword hits:
// min(1, hits*0.1 + density*2) where density = hits / max(tokens, 1).
// Hits count substring occurrences so compound keywords survive segmentation.
func KeywordRisk(text string) Risk {
	norm := Normalize(text)
	r := Risk{Tokens: len(Tokenize(norm))}
	for _, kw := range riskKeywords {
		if n := strings.Count(norm, kw); n > 0 {
			r.Hits += n
			r.Keywords = append(r.Keywords, kw)
		}
	}
	if r.Hits == 0 {
		return r
	}
	density := float64(r.Hits) / float64(max(r.Tokens, 1))
	r.Score = math.Min(1, float64(r.Hits)*0.1+density*2)
	return r
}

// UnclassifiedTheoryStage is returned when no theory row matches.
const UnclassifiedTheoryStage = "未明確分類"

type theoryRow struct {
	stage    string
	phase    string
	keywords []string
}

// theoryStages follow the online romance scam model, earliest first.
var theoryStages = []theoryRow{
	{"尋找夢中情人", "客戶招募", []string{"單身", "做什麼工作", "自我介紹", "加好友", "你在哪"}},
	{"犯罪者接觸", "客戶招募", []string{"群組", "邀請", "認識", "加你"}},
	{"培養感情", "客戶培養", []string{"寶貝", "想你", "親愛的", "我只信你", "很想你", "關心", "聊天", "自拍"}},
	{"金錢要求", "初步索取", []string{"匯款", "帳戶", "金額", "投資", "轉帳", "款項", "虛擬貨幣", "穩賺不賠", "借錢", "幫忙匯款"}},
	{"突破門檻", "持續詐騙", []string{"再匯一次", "還有費用", "保證金", "手續費", "驗證", "解鎖", "升級", "急需"}},
	{"性剝削", "升級勒索", []string{"裸照", "威脅", "勒索", "不雅照", "影片"}},
	{"再次受害", "升級勒索", []string{"再借一次", "再幫一次", "還有一筆"}},
}

// TheoryStage returns the latest theory stage with a keyword in text and its
// phase, or UnclassifiedTheoryStage and "".
func TheoryStage(text string) (stage, phase string) {
	norm := Normalize(text)
	for i := len(theoryStages) - 1; i >= 0; i-- {
		row := theoryStages[i]
		for _, kw := range row.keywords {
			if strings.Contains(norm, kw) {
				return row.stage, row.phase
			}
		}
	}
	return UnclassifiedTheoryStage, ""
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

func isCJK(r rune) bool {
	return unicode.Is(unicode.Han, r)
}

// runeTokens emits each CJK rune as a token and groups other letters and
// digits into words.
func runeTokens(text string) []string {
	var (
		tokens []string
		word   strings.Builder
	)
	flush := func() {
		if word.Len() > 0 {
			tokens = append(tokens, word.String())
			word.Reset()
		}
	}
	for _, r := range text {
		switch {
		case isCJK(r):
			flush()
			tokens = append(tokens, string(r))
		case isWordRune(r):
			word.WriteRune(r)
		default:
			flush()
		}
	}
	flush()
	return tokens
}
