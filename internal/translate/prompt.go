package translate

import (
	"fmt"
	"strings"

	"github.com/MrWong99/realtalk/pkg/types"
)

func systemPrompt(src, tgt types.Lang) string {
	script := "Latin script"
	if tgt == types.Hindi {
		script = "Devanagari script"
	}
	return fmt.Sprintf(
		"You are a live interpreter. Translate the user's %s speech transcript into natural spoken %s written in %s. "+
			"Keep names, numbers and glossary terms as given. "+
			"Reply with the translation only, without quotes, notes or explanations.",
		src.Name(), tgt.Name(), script)
}

// cleanOutput strips whitespace and a single pair of wrapping quotes that
// chat models like to add.
func cleanOutput(s string) string {
	s = strings.TrimSpace(s)
	for _, q := range [][2]string{{`"`, `"`}, {"“", "”"}, {"'", "'"}} {
		if len(s) >= len(q[0])+len(q[1]) && strings.HasPrefix(s, q[0]) && strings.HasSuffix(s, q[1]) {
			return strings.TrimSpace(s[len(q[0]) : len(s)-len(q[1])])
		}
	}
	return s
}
