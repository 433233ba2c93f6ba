package transcript_test

import (
	"strings"
	"sync"
	"testing"

	"github.com/MrWong99/realtalk/internal/transcript"
	"github.com/MrWong99/realtalk/internal/transcript/phonetic"
	"github.com/MrWong99/realtalk/pkg/provider/stt"
)

// tableMatcher resolves phrases through a fixed lower-case lookup table.
type tableMatcher struct {
	mu    sync.Mutex
	table map[string]string
	calls []string
}

func (m *tableMatcher) Match(phrase string) (string, float64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, phrase)
	if term, ok := m.table[strings.ToLower(phrase)]; ok {
		return term, 0.8, true
	}
	return phrase, 0, false
}

func (m *tableMatcher) MaxWords() int {
	n := 0
	for _, term := range m.table {
		n = max(n, len(strings.Fields(term)))
	}
	return n
}

func TestCorrector_Correct(t *testing.T) {
	t.Parallel()

	m := &tableMatcher{table: map[string]string{
		"bangaluru":     "Bengaluru",
		"bengaluru":     "Bengaluru",
		"priya sharma":  "Priyanka Sharma",
		"sharma":        "Sharma Ji",
		"info sis":      "Infosys",
	}}
	c := transcript.NewCorrector(m)

	tests := []struct {
		name  string
		in    string
		want  string
		fixes int
	}{
		{"single word", "I live in bangaluru", "I live in Bengaluru", 1},
		{"longest window wins", "meet priya sharma today", "meet Priyanka Sharma today", 1},
		{"trailing punctuation kept", "kal bangaluru।", "kal Bengaluru।", 1},
		{"already correct", "Bengaluru is big", "Bengaluru is big", 0},
		{"nothing to fix", "hello there", "hello there", 0},
		{"whitespace normalised", "  work at   info sis ", "work at Infosys", 1},
		{"empty", "", "", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			res := c.Correct(stt.Transcript{Text: tt.in})
			if res.Text != tt.want {
				t.Errorf("Correct(%q) = %q, want %q", tt.in, res.Text, tt.want)
			}
			if len(res.Corrections) != tt.fixes {
				t.Errorf("corrections = %+v, want %d", res.Corrections, tt.fixes)
			}
			if res.Changed() != (tt.fixes > 0) {
				t.Errorf("Changed() = %v", res.Changed())
			}
		})
	}
}

func TestCorrector_RecordsCorrection(t *testing.T) {
	t.Parallel()

	c := transcript.NewCorrector(&tableMatcher{table: map[string]string{"bangaluru": "Bengaluru"}})
	res := c.Correct(stt.Transcript{Text: "bangaluru, please"})
	if len(res.Corrections) != 1 {
		t.Fatalf("corrections = %+v", res.Corrections)
	}
	got := res.Corrections[0]
	if got.Original != "bangaluru" || got.Corrected != "Bengaluru" || got.Score != 0.8 {
		t.Errorf("correction = %+v", got)
	}
	if res.Text != "Bengaluru, please" {
		t.Errorf("text = %q", res.Text)
	}
}

func TestCorrector_TrustedWordsSkipped(t *testing.T) {
	t.Parallel()

	m := &tableMatcher{table: map[string]string{"bangaluru": "Bengaluru", "mysore": "Mysuru"}}
	c := transcript.NewCorrector(m, transcript.WithTrustedConfidence(0.9))

	res := c.Correct(stt.Transcript{
		Text: "bangaluru mysore",
		Words: []stt.WordDetail{
			{Word: "bangaluru", Confidence: 0.4},
			{Word: "mysore", Confidence: 0.97},
		},
	})
	if res.Text != "Bengaluru mysore" {
		t.Errorf("text = %q, want only the low-confidence word corrected", res.Text)
	}
	for _, call := range m.calls {
		if call == "mysore" {
			t.Error("matcher consulted for a trusted word")
		}
	}
}

func TestCorrector_Passthrough(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		c    *transcript.Corrector
	}{
		{"nil corrector", nil},
		{"nil matcher", transcript.NewCorrector(nil)},
		{"empty glossary", transcript.NewCorrector(phonetic.New(nil))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			res := tt.c.Correct(stt.Transcript{Text: "namaste  duniya"})
			if res.Text != "namaste duniya" || res.Changed() {
				t.Errorf("Correct = %+v, want passthrough", res)
			}
		})
	}
}

func TestCorrector_WithPhoneticMatcher(t *testing.T) {
	t.Parallel()

	c := transcript.NewCorrector(phonetic.New([]string{"Bengaluru", "Priyanka Sharma"}))
	res := c.Correct(stt.Transcript{Text: "priyanka sharma lives in bangaluru"})
	if res.Text != "Priyanka Sharma lives in Bengaluru" {
		t.Errorf("text = %q", res.Text)
	}
	if len(res.Corrections) != 2 {
		t.Errorf("corrections = %+v, want 2", res.Corrections)
	}
}

func TestCorrector_NarrowerWindowPreferred(t *testing.T) {
	t.Parallel()

	c := transcript.NewCorrector(phonetic.New([]string{"Bengaluru", "Priyanka Sharma"}))
	res := c.Correct(stt.Transcript{Text: "main in bangaluru"})
	if res.Text != "main in Bengaluru" {
		t.Errorf("text = %q, want the preposition kept", res.Text)
	}
}
