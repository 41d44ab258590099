// Package slug 生成 URL 安全的标识符与文件名后缀
package slug

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Make 将任意文本转换为小写 ASCII slug
//
// 规则：NFKD 分解后丢弃非 ASCII 字符；仅保留字母、数字、下划线、空白与连字符；
// 连续的空白/连字符折叠为单个 "-"；去掉首尾的 "-" 与 "_"。
// 例如 "Annual Picnic!" → "annual-picnic"，"Élève Photo" → "eleve-photo"。
func Make(s string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)))
	decomposed, _, err := transform.String(t, s)
	if err != nil {
		decomposed = s
	}

	var b strings.Builder
	b.Grow(len(decomposed))
	pendingDash := false
	for _, r := range decomposed {
		switch {
		case r > unicode.MaxASCII:
			continue
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_':
			if pendingDash && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingDash = false
			b.WriteRune(unicode.ToLower(r))
		case r == '-' || unicode.IsSpace(r):
			pendingDash = true
		}
	}

	return strings.Trim(b.String(), "-_")
}

// Suffix 生成以 "-" 开头的文件名后缀；输入无法生成 slug 时返回空串
// 例如 "Father Photo" → "-father-photo"，"-passport" → "-passport"
func Suffix(s string) string {
	v := Make(s)
	if v == "" {
		return ""
	}
	return "-" + v
}
