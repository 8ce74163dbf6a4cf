package engine

import "testing"

func TestEstimateConfidenceUncertaintyPenalty(t *testing.T) {
	sure := "The build failed because the import path changed in the last release. Point your module at the new path and rebuild; the rest of the configuration is fine as it stands today."
	unsure := "I'm not sure, it's unclear what happened here."

	if cs, cu := EstimateConfidence(sure), EstimateConfidence(unsure); cs <= cu {
		t.Errorf("sure=%f should beat unsure=%f", cs, cu)
	}
	if c := EstimateConfidence(unsure); c >= confidenceBase {
		t.Errorf("uncertain answer scored %f, want below base", c)
	}
}

func TestEstimateConfidenceCodeFenceBonus(t *testing.T) {
	plain := "You can loop over the slice with a range clause and collect the values you need into a second slice before returning it."
	fenced := plain + "\n```go\nfor _, v := range xs {\n\tout = append(out, v)\n}\n```"

	if cp, cf := EstimateConfidence(plain), EstimateConfidence(fenced); cf <= cp {
		t.Errorf("fenced=%f should beat plain=%f", cf, cp)
	}
}

func TestEstimateConfidenceShortAnswerPenalty(t *testing.T) {
	if c := EstimateConfidence("Yes."); c >= confidenceBase {
		t.Errorf("one-word answer scored %f, want below base", c)
	}
}

func TestEstimateConfidenceBounds(t *testing.T) {
	texts := []string{"", "Yes.", "I don't know", "```\ncode\n```"}
	for _, text := range texts {
		if c := EstimateConfidence(text); c < 0 || c > 1 {
			t.Errorf("confidence %f out of [0,1] for %q", c, text)
		}
	}
}

func TestIsRefusal(t *testing.T) {
	cases := []struct {
		text string
		want bool
	}{
		{"I can't help with that request.", true},
		{"Sorry, but that is outside what I can do.", true},
		{"I'm sorry you ran into this. The fix is below.", true},
		{"Sure, here is the plan for tomorrow.", false},
		{"The capital of France is Paris.", false},
	}
	for _, tc := range cases {
		if got := IsRefusal(tc.text); got != tc.want {
			t.Errorf("IsRefusal(%q) = %v, want %v", tc.text, got, tc.want)
		}
	}
}

func TestShouldEscalate(t *testing.T) {
	if !ShouldEscalate("fine answer", 0.8, true) {
		t.Error("repetition should force escalation")
	}
	if !ShouldEscalate("fine answer", 0.40, false) {
		t.Error("confidence below cutoff should escalate")
	}
	if !ShouldEscalate("I can't answer that.", 0.8, false) {
		t.Error("refusal should escalate")
	}
	if ShouldEscalate("The meeting is at three.", 0.8, false) {
		t.Error("good answer should not escalate")
	}
}
