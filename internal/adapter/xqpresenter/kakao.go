package xqpresenter

import "strings"

const (
	kakaoSeeMorePadding = 500
	kakaoZeroWidthSpace = "\u200b"
)

// 카카오톡 '전체보기' 접힘을 위해 제로폭 문자로 첫 줄 뒤를 밀어낸다.
func seeMore(header, body string) string {
	if strings.TrimSpace(body) == "" {
		return header
	}
	header = strings.TrimSpace(header)

	var b strings.Builder
	b.Grow(len(header) + len(body) + kakaoSeeMorePadding*len(kakaoZeroWidthSpace) + 1)
	b.WriteString(header)
	b.WriteString(strings.Repeat(kakaoZeroWidthSpace, kakaoSeeMorePadding))
	if !strings.HasPrefix(body, "\n") {
		b.WriteByte('\n')
	}
	b.WriteString(strings.TrimPrefix(body, header+"\n"))
	return b.String()
}
