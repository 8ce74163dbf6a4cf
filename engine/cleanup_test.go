package engine

import (
	"strings"
	"testing"
)

func TestCleanOutputStripsStopTokens(t *testing.T) {
	got, found := CleanOutput("The answer is 42.<|endoftext|>assistant gibberish")
	if got != "The answer is 42." {
		t.Errorf("got %q", got)
	}
	if found {
		t.Errorf("repetition flagged on clean text")
	}
}

func TestTruncateRepeatedLines(t *testing.T) {
	text := strings.Repeat("use serde_json;\n", 5)

	got, found := TruncateRepetition(text)
	if !found {
		t.Fatal("repetition not detected")
	}
	if got != "use serde_json;\nuse serde_json;" {
		t.Errorf("got %q", got)
	}
}

func TestTruncateRepeatedPhrase(t *testing.T) {
	got, found := TruncateRepetition("the answer is the answer is the answer is 42")
	if !found {
		t.Fatal("phrase loop not detected")
	}
	if got != "the answer is" {
		t.Errorf("got %q", got)
	}
}

func TestTruncateRepeatedWord(t *testing.T) {
	got, found := TruncateRepetition("hahaha hahaha hahaha hahaha")
	if !found {
		t.Fatal("word loop not detected")
	}
	if got != "hahaha" {
		t.Errorf("got %q", got)
	}
}

func TestTruncateRepetitionIdempotent(t *testing.T) {
	inputs := []string{
		strings.Repeat("use serde_json;\n", 5),
		"the answer is the answer is the answer is 42",
		"I checked the file.\nI checked the file.\nI checked the file.\nDone.",
		"hahaha hahaha hahaha",
	}
	for _, in := range inputs {
		once, found := TruncateRepetition(in)
		if !found {
			t.Fatalf("no repetition found in %q", in)
		}
		twice, foundAgain := TruncateRepetition(once)
		if foundAgain {
			t.Errorf("second pass flagged repetition on %q", once)
		}
		if twice != once {
			t.Errorf("second pass changed text: %q -> %q", once, twice)
		}
	}
}

func TestTruncateRepetitionLeavesNormalText(t *testing.T) {
	text := "Milk is on the list.\nEggs too.\nAnything else?"
	got, found := TruncateRepetition(text)
	if found || got != text {
		t.Errorf("normal text altered: found=%v, got %q", found, got)
	}
}

func TestTruncateRepetitionIgnoresWordInternalRepeats(t *testing.T) {
	// A repeated syllable inside one word is not a loop, and neither is
	// a word that happens to prefix its neighbors.
	inputs := []string{
		"hahaha",
		"Sure! hahaha that is funny",
		"go google goggles gone wrong",
	}
	for _, in := range inputs {
		if got, found := TruncateRepetition(in); found || got != in {
			t.Errorf("valid text altered: found=%v, %q -> %q", found, in, got)
		}
	}
}

func TestTruncateRepetitionAllowsShortRepeats(t *testing.T) {
	// Blank and near-blank lines repeat in any formatted answer.
	text := "Point one.\n\nPoint two.\n\nPoint three.\n\nPoint four."
	if got, found := TruncateRepetition(text); found {
		t.Errorf("blank lines flagged as repetition: %q", got)
	}
}
