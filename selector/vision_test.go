package selector

import (
	"testing"

	"github.com/samlabs/sam-go/resource"
)

func TestVisionRefusedWhenCritical(t *testing.T) {
	v := NewVisionSelector()

	d := v.Select("describe this photo", resource.LevelCritical)
	if d.ModelKey != "" {
		t.Errorf("ModelKey = %q, want refusal (empty)", d.ModelKey)
	}
	if d.Reason != "memory_critical_vision_refused" {
		t.Errorf("Reason = %q", d.Reason)
	}
}

func TestVisionTaskRouting(t *testing.T) {
	v := NewVisionSelector()

	cases := []struct {
		task string
		want string
	}{
		{"read the text on this receipt", "ocr-tiny"},
		{"describe this photo", "caption-small"},
		{"why are these two charts different?", "vqa-large"},
		{"look at this image", "vqa-base"},
	}
	for _, tc := range cases {
		d := v.Select(tc.task, resource.LevelGood)
		if d.ModelKey != tc.want {
			t.Errorf("Select(%q) = %q, want %q (reason %s)", tc.task, d.ModelKey, tc.want, d.Reason)
		}
	}
}

func TestVisionResourceCapping(t *testing.T) {
	v := NewVisionSelector()

	// A complex VQA task wants vqa-large; low memory caps it.
	d := v.Select("count the birds in the chart", resource.LevelLow)
	if d.ModelKey != "caption-small" {
		t.Errorf("low level pick = %q, want caption-small", d.ModelKey)
	}
	if d.Reason != "complex_vqa_task+resource_capped" {
		t.Errorf("Reason = %q", d.Reason)
	}

	d = v.Select("count the birds in the chart", resource.LevelModerate)
	if d.ModelKey != "vqa-base" {
		t.Errorf("moderate level pick = %q, want vqa-base", d.ModelKey)
	}

	// OCR never needs capping: already the smallest tier.
	d = v.Select("read the sign", resource.LevelLow)
	if d.ModelKey != "ocr-tiny" {
		t.Errorf("ocr pick = %q, want ocr-tiny", d.ModelKey)
	}
}
