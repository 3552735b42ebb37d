package emotion

import (
	"strings"
	"unicode"

	"github.com/zhouzirui/moodchat/backend/internal/model/sentiment"
)

// Decision 给出关键词规则得到的情感判断。
type Decision struct {
	Label      sentiment.Label
	Confidence float32
	Score      int
}

// Result converts the decision into the classifier result shape.
func (d Decision) Result() sentiment.Result {
	return sentiment.Result{Label: d.Label, Confidence: d.Confidence}
}

var keywordBuckets = map[sentiment.Label][]string{
	sentiment.Positive: {
		"开心", "高兴", "喜悦", "快乐", "兴奋", "太好了", "太棒了", "真棒", "哈哈", "喜欢", "满意", "好耶", "期待", "感谢", "谢谢",
		"happy", "glad", "great", "awesome", "amazing", "love", "thanks", "thank you", "excited", "wonderful",
		"fantastic", "lol", "yay", "good news", "can't wait", "proud", "relieved", "better",
	},
	sentiment.Negative: {
		"难过", "伤心", "失落", "沮丧", "悲伤", "痛苦", "寂寞", "孤单", "失望", "生气", "愤怒", "烦死", "受够了", "委屈", "焦虑", "累",
		"sad", "unhappy", "upset", "depressed", "hurt", "cry", "angry", "furious", "annoyed", "hate",
		"terrible", "awful", "worse", "worst", "lonely", "anxious", "stressed", "tired", "exhausted", "frustrated",
	},
}

// weightPerHit is the score contributed by each matched keyword.
const weightPerHit = 3

// Analyze 根据关键词粗略判断用户文本的情感极性，用于大模型不可用时的回退。
func Analyze(text string) Decision {
	normalized := strings.TrimSpace(strings.ToLower(text))
	if normalized == "" {
		return Decision{Label: sentiment.Neutral, Confidence: 0.3}
	}

	words := " " + strings.Join(tokenize(normalized), " ") + " "
	positive := countHits(normalized, words, keywordBuckets[sentiment.Positive])
	negative := countHits(normalized, words, keywordBuckets[sentiment.Negative])

	exclamations := strings.Count(text, "!") + strings.Count(text, "！")
	if exclamations > 0 && positive > negative {
		positive += exclamations
	}

	diff := positive - negative
	switch {
	case diff > 0:
		return Decision{Label: sentiment.Positive, Score: diff, Confidence: confidenceFor(diff)}
	case diff < 0:
		return Decision{Label: sentiment.Negative, Score: -diff, Confidence: confidenceFor(-diff)}
	default:
		return Decision{Label: sentiment.Neutral, Confidence: 0.3}
	}
}

// countHits 中文关键词按子串匹配；英文关键词按整词匹配，words 为空格包围的分词结果。
func countHits(normalized, words string, keywords []string) int {
	score := 0
	for _, word := range keywords {
		if word == "" {
			continue
		}
		var hit bool
		if isASCII(word) {
			hit = strings.Contains(words, " "+word+" ")
		} else {
			hit = strings.Contains(normalized, word)
		}
		if hit {
			score += weightPerHit
		}
	}
	return score
}

// tokenize splits on anything that is not a letter, digit or apostrophe.
func tokenize(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			return false
		}
	}
	return true
}

// confidenceFor grows with the keyword margin but never claims certainty.
func confidenceFor(score int) float32 {
	confidence := 0.45 + float32(score)/20
	if confidence > 0.9 {
		confidence = 0.9
	}
	return confidence
}
