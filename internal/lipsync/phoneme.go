package lipsync

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Script is the writing system the extractor was chosen for.
type Script int

const (
	ScriptLatin Script = iota
	ScriptKana
	ScriptIdeograph
	ScriptHangul
)

func (s Script) String() string {
	switch s {
	case ScriptKana:
		return "kana"
	case ScriptIdeograph:
		return "ideograph"
	case ScriptHangul:
		return "hangul"
	default:
		return "latin"
	}
}

// NeutralVowel stands in for an ideograph whose reading is unknown.
const NeutralVowel = "ə"

// Phoneme is one extracted sound. Pending ideographs carry NeutralVowel until their lookup resolves.
type Phoneme struct {
	Symbol  string
	Source  rune
	Pending bool
}

func isKana(r rune) bool {
	return unicode.Is(unicode.Hiragana, r) || unicode.Is(unicode.Katakana, r) || r == 'ー'
}

func isIdeograph(r rune) bool { return unicode.Is(unicode.Han, r) }

func isHangul(r rune) bool { return r >= 0xAC00 && r <= 0xD7A3 }

// DetectScript checks kana, ideographs and hangul in that order; anything else is latin.
func DetectScript(text string) Script {
	var hasIdeo, hasHangul bool
	for _, r := range text {
		switch {
		case isKana(r):
			return ScriptKana
		case isIdeograph(r):
			hasIdeo = true
		case isHangul(r):
			hasHangul = true
		}
	}
	switch {
	case hasIdeo:
		return ScriptIdeograph
	case hasHangul:
		return ScriptHangul
	}
	return ScriptLatin
}

// Extract normalises text (NFKC) and runs the extractor for its script.
// Ideographs come back Pending; resolve them through a Lookup.
func Extract(text string) (Script, []Phoneme) {
	text = norm.NFKC.String(text)
	script := DetectScript(text)
	switch script {
	case ScriptKana:
		return script, extractKana(text)
	case ScriptIdeograph:
		return script, extractIdeographs(text)
	case ScriptHangul:
		return script, extractHangul(text)
	}
	return script, extractLatin(text)
}

func toHiragana(r rune) rune {
	if r >= 0x30A1 && r <= 0x30F6 {
		return r - 0x60
	}
	return r
}

func extractKana(text string) []Phoneme {
	var out []Phoneme
	for _, r := range text {
		if r == 'ー' {
			// long vowel mark repeats the previous sound
			if n := len(out); n > 0 {
				out = append(out, Phoneme{Symbol: out[n-1].Symbol, Source: r})
			}
			continue
		}
		h := string(toHiragana(r))
		if _, ok := kanaTable[h]; ok {
			out = append(out, Phoneme{Symbol: h, Source: r})
		}
	}
	return out
}

func extractIdeographs(text string) []Phoneme {
	var out []Phoneme
	for _, r := range text {
		if isIdeograph(r) {
			out = append(out, Phoneme{Symbol: NeutralVowel, Source: r, Pending: true})
		}
	}
	return out
}

// hangul medial vowels reduced to a nucleus, in jamo order
var hangulMedials = [21]string{
	"a", "e", "a", "e", "o", "e", "o", "e", "o", "a", "e",
	"e", "o", "u", "o", "e", "i", "u", "i", "i", "i",
}

func extractHangul(text string) []Phoneme {
	var out []Phoneme
	for _, r := range text {
		if !isHangul(r) {
			continue
		}
		code := int(r - 0xAC00)
		initial, medial, final := code/588, (code%588)/28, code%28

		switch initial {
		case 6, 7, 8, 17: // ㅁ ㅂ ㅃ ㅍ
			out = append(out, Phoneme{Symbol: "p", Source: r})
		}
		out = append(out, Phoneme{Symbol: hangulMedials[medial], Source: r})
		switch final {
		case 4, 21: // ㄴ ㅇ
			out = append(out, Phoneme{Symbol: "n", Source: r})
		case 16, 17: // ㅁ ㅂ
			out = append(out, Phoneme{Symbol: "p", Source: r})
		}
	}
	return out
}

func extractLatin(text string) []Phoneme {
	runes := []rune(strings.ToLower(text))
	var out []Phoneme
	for i := 0; i < len(runes); i++ {
		if i+1 < len(runes) {
			if di := string(runes[i : i+2]); di == "th" || di == "ch" || di == "sh" {
				out = append(out, Phoneme{Symbol: di, Source: runes[i]})
				i++
				continue
			}
		}
		s := string(runes[i])
		if _, ok := latinTable[s]; ok {
			out = append(out, Phoneme{Symbol: s, Source: runes[i]})
		}
	}
	return out
}

// Nucleus reduces a romanised syllable final ("iao", "ong", "v") to its main vowel.
func Nucleus(final string) string {
	final = strings.ToLower(final)
	for _, v := range []string{"a", "o", "e"} {
		if strings.Contains(final, v) {
			return v
		}
	}
	for _, r := range final {
		switch r {
		case 'i':
			return "i"
		case 'u':
			return "u"
		case 'v', 'ü':
			return "ü"
		}
	}
	if strings.HasPrefix(final, "n") {
		return "n"
	}
	return NeutralVowel
}
