package layout

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// nonAlphabetLangs 为不以空格分词的目标语言代码。
var nonAlphabetLangs = map[string]bool{
	"CHS": true,
	"CHT": true,
	"KOR": true,
	"JPN": true,
}

// UsesWordSpacing 报告目标语言是否以空格分词（决定按词还是逐字排布）。
func UsesWordSpacing(lang string) bool {
	return !nonAlphabetLangs[strings.ToUpper(strings.TrimSpace(lang))]
}

func isSentencePunct(r rune) bool {
	return r == '.' || r == ',' || r == '!' || r == '?'
}

// NormalizeTranslation 规范化译文：NFC 归一，标点后补空格，删除 ?.!" 之前的空白。
// 两个数字之间的小数点/千分位不补空格。
func NormalizeTranslation(s string) string {
	s = norm.NFC.String(s)
	runes := []rune(s)

	// 标点后若紧跟非空白、非标点字符，补一个空格
	var b strings.Builder
	for i, r := range runes {
		b.WriteRune(r)
		if !isSentencePunct(r) || i+1 >= len(runes) {
			continue
		}
		next := runes[i+1]
		if unicode.IsSpace(next) || isSentencePunct(next) {
			continue
		}
		if i > 0 && unicode.IsDigit(runes[i-1]) && unicode.IsDigit(next) {
			continue
		}
		b.WriteRune(' ')
	}
	runes = []rune(b.String())

	// 删除 ?.!" 之前的空白
	b.Reset()
	for i := 0; i < len(runes); i++ {
		if unicode.IsSpace(runes[i]) {
			j := i
			for j < len(runes) && unicode.IsSpace(runes[j]) {
				j++
			}
			if j < len(runes) && strings.ContainsRune(`?.!"`, runes[j]) {
				i = j - 1
				continue
			}
		}
		b.WriteRune(runes[i])
	}
	return b.String()
}
