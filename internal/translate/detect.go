package translate

import (
	"strings"

	"github.com/MrWong99/realtalk/pkg/types"
)

// devanagari is the set of independent vowels and consonants that mark text
// as Hindi.
const devanagari = "अआइईउऊऋएऐओऔकखगघङचछजझञटठडढणतथदधनपफबभमयरलवशषसह"

// DetectLanguage returns [types.Hindi] when text contains any Devanagari
// letter and [types.English] otherwise.
func DetectLanguage(text string) types.Lang {
	if strings.ContainsAny(text, devanagari) {
		return types.Hindi
	}
	return types.English
}

// Direction picks the language pair for one final transcript. With auto set
// the source is detected from the text; otherwise src is used. The target is
// tgt when it differs from the chosen source and the other language of the
// pair when it does not.
func Direction(text string, src, tgt types.Lang, auto bool) (types.Lang, types.Lang) {
	if auto {
		src = DetectLanguage(text)
	}
	if !tgt.IsValid() || tgt == src {
		tgt = src.Other()
	}
	return src, tgt
}
