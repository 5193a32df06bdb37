package tokens

import (
	"math"
	"strings"
	"unicode"
)

// ContentClass 文本内容类别
type ContentClass string

const (
	ClassDefault  ContentClass = "default"
	ClassCode     ContentClass = "code"
	ClassCJK      ContentClass = "cjk"
	ClassCyrillic ContentClass = "cyrillic"
	ClassArabic   ContentClass = "arabic"
)

// 每个字符折算的token比例
var classRatios = map[ContentClass]float64{
	ClassDefault:  0.25,
	ClassCode:     0.2,
	ClassCJK:      0.5,
	ClassCyrillic: 0.33,
	ClassArabic:   0.33,
}

const (
	// 每条消息的固定结构开销
	messageOverhead = 4
	// 整个对话的包装开销
	conversationOverhead = 2
	// 判定为代码所需的关键字密度（每行）
	codeKeywordDensity = 0.15
	// 判定为代码所需的缩进行占比
	codeIndentRatio = 0.3
	// 判定为某种文字所需的字符占比
	scriptRatio = 0.3
)

var codeKeywords = []string{
	"func ", "function ", "def ", "class ", "return ", "import ",
	"if (", "if(", "for (", "for(", "while (", "while(",
	"var ", "let ", "const ", "=> ", "== ", "!= ", "&& ", "|| ",
	"{", "}", "();", "#include", "public ", "private ",
}

// MessageInput 单条消息的估算输入
type MessageInput struct {
	Content      string
	Name         string
	FunctionName string
	FunctionArgs string
}

// Estimator 启发式Token估算器。结果只用于预算控制，
// 计费以供应商实际返回的用量为准。
type Estimator struct{}

// NewEstimator 创建Token估算器
func NewEstimator() *Estimator {
	return &Estimator{}
}

// Classify 对文本做内容分类
func (e *Estimator) Classify(text string) ContentClass {
	if text == "" {
		return ClassDefault
	}

	if e.looksLikeCode(text) {
		return ClassCode
	}

	var total, cjk, cyrillic, arabic int
	for _, r := range text {
		if unicode.IsSpace(r) {
			continue
		}
		total++
		switch {
		case unicode.Is(unicode.Han, r) || unicode.Is(unicode.Hiragana, r) ||
			unicode.Is(unicode.Katakana, r) || unicode.Is(unicode.Hangul, r):
			cjk++
		case unicode.Is(unicode.Cyrillic, r):
			cyrillic++
		case unicode.Is(unicode.Arabic, r):
			arabic++
		}
	}

	if total == 0 {
		return ClassDefault
	}

	switch {
	case float64(cjk)/float64(total) >= scriptRatio:
		return ClassCJK
	case float64(cyrillic)/float64(total) >= scriptRatio:
		return ClassCyrillic
	case float64(arabic)/float64(total) >= scriptRatio:
		return ClassArabic
	}

	return ClassDefault
}

// looksLikeCode 通过关键字密度和缩进占比判断是否为代码
func (e *Estimator) looksLikeCode(text string) bool {
	lines := strings.Split(text, "\n")
	if len(lines) < 2 {
		return false
	}

	var hits int
	for _, kw := range codeKeywords {
		hits += strings.Count(text, kw)
	}

	var indented int
	for _, line := range lines {
		if strings.HasPrefix(line, "\t") || strings.HasPrefix(line, "    ") {
			indented++
		}
	}

	if float64(hits)/float64(len(lines)) >= codeKeywordDensity &&
		float64(indented)/float64(len(lines)) >= codeIndentRatio {
		return true
	}

	// 关键字密度很高时不要求缩进（压缩过的代码）
	return float64(hits)/float64(len(lines)) >= codeKeywordDensity*4
}

// EstimateText 估算文本的token数（自动分类）
func (e *Estimator) EstimateText(text string) int {
	return e.EstimateTextAs(text, e.Classify(text))
}

// EstimateTextAs 按指定类别估算文本的token数
func (e *Estimator) EstimateTextAs(text string, class ContentClass) int {
	if text == "" {
		return 0
	}

	ratio, ok := classRatios[class]
	if !ok {
		ratio = classRatios[ClassDefault]
	}

	chars := len([]rune(text))
	return int(math.Ceil(float64(chars) * ratio))
}

// EstimateMessage 估算单条消息的token数：
// 固定结构开销 + 内容 + 名称 + 函数调用（参数按代码比例计）
func (e *Estimator) EstimateMessage(msg MessageInput) int {
	count := messageOverhead
	count += e.EstimateText(msg.Content)
	if msg.Name != "" {
		count += e.EstimateText(msg.Name)
	}
	if msg.FunctionName != "" {
		count += e.EstimateText(msg.FunctionName)
	}
	if msg.FunctionArgs != "" {
		// 函数参数是结构化数据，固定按代码比例估算
		count += e.EstimateTextAs(msg.FunctionArgs, ClassCode)
	}
	return count
}

// EstimateConversation 估算整个对话的token数
func (e *Estimator) EstimateConversation(msgs []MessageInput) int {
	count := conversationOverhead
	for _, msg := range msgs {
		count += e.EstimateMessage(msg)
	}
	return count
}
