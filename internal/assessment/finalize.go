package assessment

import (
	"time"

	"github.com/MrWong99/oralread/internal/level"
)

// Result is the immutable placement record of one completed assessment.
type Result struct {
	UserID                      string               `json:"userId"`
	TestID                      string               `json:"testId"`
	PlacedLevel                 level.Level          `json:"placedLevel"`
	PassageLevel                level.Level          `json:"passageLevel"`
	LevelDropped                bool                 `json:"levelDropped"`
	OralErrors                  int                  `json:"oralErrors"`
	OralClassification          level.Classification `json:"oralClassification"`
	ComprehensionPercent        int                  `json:"comprehensionPercent"`
	ComprehensionClassification level.Classification `json:"comprehensionClassification"`
	Logs                        Logs                 `json:"logs"`

	// Timestamp is assigned by the sink that stores the result.
	Timestamp time.Time `json:"timestamp,omitzero"`
}

// Finalize computes the placement for a passage level, the passage's oral
// error count and the evidence logs. Comprehension is scored from
// logs.Comprehension; with no questions the percentage is 0.
func Finalize(userID, testID string, passage level.Level, oralErrors int, logs Logs) Result {
	correct := 0
	for _, a := range logs.Comprehension {
		if a.Status == Correct {
			correct++
		}
	}
	pct := level.ComprehensionPercent(correct, len(logs.Comprehension))

	oral := level.ClassifyOral(oralErrors)
	comp := level.ClassifyComprehension(pct)
	placed, dropped := level.Placement(passage, oral, comp)

	return Result{
		UserID:                      userID,
		TestID:                      testID,
		PlacedLevel:                 placed,
		PassageLevel:                passage,
		LevelDropped:                dropped,
		OralErrors:                  oralErrors,
		OralClassification:          oral,
		ComprehensionPercent:        pct,
		ComprehensionClassification: comp,
		Logs:                        logs,
	}
}
