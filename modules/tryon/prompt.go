package tryon

import (
	"regexp"
	"strings"
)

type substitution struct {
	pattern     *regexp.Regexp
	replacement string
}

// 안전 필터에 걸리기 쉬운 표현 → 완화된 표현
var substitutions = []substitution{
	{regexp.MustCompile(`(?i)\blow[- ]?rise\b`), "mid-rise"},
	{regexp.MustCompile(`(?i)\b(bare|uncovered)\b`), "covered"},
	{regexp.MustCompile(`(?i)\b(see[- ]?through|transparent)\b`), "opaque"},
	{regexp.MustCompile(`(?i)\b(nipples?|areolas?|genital\w*)\b`), "sensitive area"},
}

var (
	underwearPattern = regexp.MustCompile(`(?i)\b(briefs?|boxers?|underwear)\b`)
	thongPattern     = regexp.MustCompile(`(?i)\b(thong|t[- ]?back|g[- ]?string)\b`)
)

// Sanitize - 재시도용 지시문 (의도는 유지하고 위험 단어만 치환)
func Sanitize(text string) string {
	out := text
	for _, s := range substitutions {
		out = s.pattern.ReplaceAllString(out, s.replacement)
	}
	if !thongPattern.MatchString(out) {
		out = underwearPattern.ReplaceAllString(out, "short athletic shorts")
	}
	return out
}

const baseInstructions = `Edit the USER PHOTO (first image) so the person wears the hairstyle shown in the HAIRSTYLE REFERENCE (second image).
Keep the person's face, identity, expression, skin tone, pose, clothing and background exactly as in the USER PHOTO.
Only change the hair: match the reference's cut, length, volume, texture, parting and color.
Blend the hairline naturally; no wigs, no hats, no duplicated heads.
Return a single photorealistic image of the same person. Do NOT add any other person.`

const noReferenceInstructions = `Edit the USER PHOTO so the person has a fresh, salon-quality version of the requested hairstyle.
Keep the person's face, identity, pose, clothing and background unchanged and return a single photorealistic image.`

// BuildInstructions - 참조 이름과 사용자 메모를 포함한 지시문
func BuildInstructions(referenceName, note string, hasReference bool) string {
	var b strings.Builder
	if hasReference {
		b.WriteString(baseInstructions)
	} else {
		b.WriteString(noReferenceInstructions)
	}
	if name := strings.TrimSpace(referenceName); name != "" {
		b.WriteString("\nTarget hairstyle: ")
		b.WriteString(name)
		b.WriteString(".")
	}
	if note := strings.TrimSpace(note); note != "" {
		b.WriteString("\nUSER PRIORITY REQUEST: ")
		b.WriteString(note)
		b.WriteString("\nHonor this request without changing the person's identity.")
	}
	return b.String()
}
