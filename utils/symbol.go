package utils

import "strings"

// GenerateSymbol 6 位代码加交易所前缀
// 6 开头为上交所, 0/3 为深交所, 4/8/9 为北交所
func GenerateSymbol(code string) (string, bool) {
	code = strings.TrimSpace(code)
	if len(code) != 6 {
		return code, false
	}
	for _, c := range code {
		if c < '0' || c > '9' {
			return code, false
		}
	}

	switch code[0] {
	case '6':
		return "sh" + code, true
	case '0', '3':
		return "sz" + code, true
	case '4', '8', '9':
		return "bj" + code, true
	default:
		return code, false
	}
}

// StripExchange 去掉 sh/sz/bj 前缀或 .SH 之类的后缀, 返回 6 位代码
func StripExchange(symbol string) string {
	s := strings.ToLower(strings.TrimSpace(symbol))
	if i := strings.IndexByte(s, '.'); i > 0 {
		s = s[:i]
	}
	for _, p := range []string{"sh", "sz", "bj"} {
		if strings.HasPrefix(s, p) {
			return s[len(p):]
		}
	}
	return s
}
