// Package lipsync turns utterance text into timed mouth-shape weights.
package lipsync

import "strings"

// Viseme is a mouth-shape category (Oculus 15-viseme set).
type Viseme string

const (
	VisemeSil Viseme = "sil"
	VisemePP  Viseme = "PP"
	VisemeFF  Viseme = "FF"
	VisemeTH  Viseme = "TH"
	VisemeDD  Viseme = "DD"
	VisemeKK  Viseme = "kk"
	VisemeCH  Viseme = "CH"
	VisemeSS  Viseme = "SS"
	VisemeNN  Viseme = "nn"
	VisemeRR  Viseme = "RR"
	VisemeAA  Viseme = "aa"
	VisemeE   Viseme = "E"
	VisemeI   Viseme = "I"
	VisemeO   Viseme = "O"
	VisemeU   Viseme = "U"

	VisemeNeutral = VisemeSil
)

// Visemes is the fixed set the animator drives, in a stable order.
var Visemes = []Viseme{
	VisemeSil, VisemePP, VisemeFF, VisemeTH, VisemeDD, VisemeKK, VisemeCH, VisemeSS,
	VisemeNN, VisemeRR, VisemeAA, VisemeE, VisemeI, VisemeO, VisemeU,
}

// Shape is the blendshape the viseme drives.
func (v Viseme) Shape() string {
	return "viseme_" + string(v)
}

// MouthShapes lists every blendshape the animator writes.
func MouthShapes() []string {
	out := make([]string, len(Visemes))
	for i, v := range Visemes {
		out[i] = v.Shape()
	}
	return out
}

// kanaTable maps hiragana to the vowel shape the syllable ends on.
var kanaTable = func() map[string]Viseme {
	t := make(map[string]Viseme)
	rows := []struct {
		kana   string
		vowels []Viseme
	}{
		{"あいうえお", []Viseme{VisemeAA, VisemeI, VisemeU, VisemeE, VisemeO}},
		{"かきくけこ", []Viseme{VisemeAA, VisemeI, VisemeU, VisemeE, VisemeO}},
		{"がぎぐげご", []Viseme{VisemeAA, VisemeI, VisemeU, VisemeE, VisemeO}},
		{"さしすせそ", []Viseme{VisemeAA, VisemeI, VisemeU, VisemeE, VisemeO}},
		{"ざじずぜぞ", []Viseme{VisemeAA, VisemeI, VisemeU, VisemeE, VisemeO}},
		{"たちつてと", []Viseme{VisemeAA, VisemeI, VisemeU, VisemeE, VisemeO}},
		{"だぢづでど", []Viseme{VisemeAA, VisemeI, VisemeU, VisemeE, VisemeO}},
		{"なにぬねの", []Viseme{VisemeAA, VisemeI, VisemeU, VisemeE, VisemeO}},
		{"はひふへほ", []Viseme{VisemeAA, VisemeI, VisemeU, VisemeE, VisemeO}},
		{"ばびぶべぼ", []Viseme{VisemeAA, VisemeI, VisemeU, VisemeE, VisemeO}},
		{"ぱぴぷぺぽ", []Viseme{VisemeAA, VisemeI, VisemeU, VisemeE, VisemeO}},
		{"まみむめも", []Viseme{VisemeAA, VisemeI, VisemeU, VisemeE, VisemeO}},
		{"らりるれろ", []Viseme{VisemeAA, VisemeI, VisemeU, VisemeE, VisemeO}},
		{"ぁぃぅぇぉ", []Viseme{VisemeAA, VisemeI, VisemeU, VisemeE, VisemeO}},
		{"やゆよ", []Viseme{VisemeAA, VisemeU, VisemeO}},
		{"ゃゅょ", []Viseme{VisemeAA, VisemeU, VisemeO}},
		{"わゐゑを", []Viseme{VisemeAA, VisemeI, VisemeE, VisemeO}},
		{"ゔ", []Viseme{VisemeU}},
	}
	for _, row := range rows {
		for i, r := range []rune(row.kana) {
			t[string(r)] = row.vowels[i]
		}
	}
	t["ん"] = VisemeNN
	t["っ"] = VisemeSil
	return t
}()

// romanTable covers vowel nuclei produced for ideographs and hangul, plus the few consonants they emit.
var romanTable = map[string]Viseme{
	"a": VisemeAA,
	"e": VisemeE,
	"i": VisemeI,
	"o": VisemeO,
	"u": VisemeU,
	"ü": VisemeU,
	"p": VisemePP,
	"n": VisemeNN,
}

var latinTable = map[string]Viseme{
	"a": VisemeAA, "e": VisemeE, "i": VisemeI, "o": VisemeO, "u": VisemeU, "y": VisemeI,
	"p": VisemePP, "b": VisemePP, "m": VisemePP,
	"f": VisemeFF, "v": VisemeFF,
	"th": VisemeTH,
	"t": VisemeDD, "d": VisemeDD, "l": VisemeDD,
	"k": VisemeKK, "g": VisemeKK, "c": VisemeKK, "q": VisemeKK,
	"ch": VisemeCH, "sh": VisemeCH, "j": VisemeCH,
	"s": VisemeSS, "z": VisemeSS, "x": VisemeSS,
	"n": VisemeNN,
	"r": VisemeRR,
}

// PhonemeToViseme tries the kana table, then the romanised table, then the
// latin table on the lowercased phoneme. Anything else is neutral.
func PhonemeToViseme(p string) Viseme {
	if v, ok := kanaTable[p]; ok {
		return v
	}
	if v, ok := romanTable[p]; ok {
		return v
	}
	if v, ok := latinTable[strings.ToLower(p)]; ok {
		return v
	}
	return VisemeNeutral
}
