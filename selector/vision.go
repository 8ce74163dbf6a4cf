package selector

import (
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/samlabs/sam-go/resource"
)

// Vision tier keys, smallest first. Order matters: resource capping
// walks down this list.
var visionTiers = []string{"ocr-tiny", "caption-small", "vqa-base", "vqa-large"}

var (
	ocrRe     = regexp.MustCompile(`(?i)\b(read|text|ocr|transcribe|document|receipt|sign)\b`)
	captionRe = regexp.MustCompile(`(?i)\b(describe|caption|what is (in|this)|summar)\b`)
	vqaHardRe = regexp.MustCompile(`(?i)\b(why|count|compare|detail|relationship|diagram|chart)\b`)
)

// VisionSelector maps an image task onto one of four vision tiers,
// capped by the current resource level.
type VisionSelector struct{}

// NewVisionSelector creates a vision selector.
func NewVisionSelector() *VisionSelector {
	return &VisionSelector{}
}

// Select returns the vision tier decision for a task prompt. At
// critical resource level vision is refused outright: ModelKey is empty
// and the reason says why.
func (v *VisionSelector) Select(task string, level resource.Level) Decision {
	d := Decision{
		ID:      uuid.New().String(),
		At:      time.Now(),
		Factors: map[string]float64{"resource_level": float64(level)},
	}

	if level == resource.LevelCritical {
		d.Reason = "memory_critical_vision_refused"
		d.Confidence = 1.0
		return d
	}

	// Task-derived preferred tier.
	var preferred string
	switch {
	case ocrRe.MatchString(task):
		preferred = "ocr-tiny"
		d.Reason = "ocr_task"
	case vqaHardRe.MatchString(task):
		preferred = "vqa-large"
		d.Reason = "complex_vqa_task"
	case captionRe.MatchString(task):
		preferred = "caption-small"
		d.Reason = "caption_task"
	default:
		preferred = "vqa-base"
		d.Reason = "general_vision_default"
	}

	// Resource cap: low allows at most caption-small, moderate at most
	// vqa-base, good anything.
	highest := "vqa-large"
	switch level {
	case resource.LevelLow:
		highest = "caption-small"
	case resource.LevelModerate:
		highest = "vqa-base"
	}

	d.ModelKey = capTier(preferred, highest)
	if d.ModelKey != preferred {
		d.Reason += "+resource_capped"
	}
	d.Confidence = 0.75
	return d
}

// capTier returns preferred unless it sits above the highest allowed
// tier in the ordering.
func capTier(preferred, highest string) string {
	if tierIndex(preferred) > tierIndex(highest) {
		return highest
	}
	return preferred
}

func tierIndex(key string) int {
	for i, t := range visionTiers {
		if t == key {
			return i
		}
	}
	return 0
}
