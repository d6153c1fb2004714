package score

import (
	"fmt"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/cetrack/core/student"
)

type (
	CET4Status struct {
		Passed       bool      `json:"passed"`
		BestScore    null.Int  `json:"bestScore"`
		BestExamDate null.Time `json:"bestExamDate"`
	}

	CET6Status struct {
		CanApply bool   `json:"canApply"`
		Reason   string `json:"reason"`
	}

	Eligibility struct {
		Student  student.Brief `json:"student"`
		PassLine int           `json:"passLine"`
		CET4     CET4Status    `json:"cet4"`
		CET6     CET6Status    `json:"cet6"`
	}
)

// EvaluateEligibility finds the best CET4 total among `scores`;
// a student may apply for CET6 once it reaches `passLine`.
func EvaluateEligibility(scores []StudentScore, passLine int) (CET4Status, CET6Status) {
	var cet4 CET4Status
	for _, sc := range scores {
		if sc.ExamBatch.ExamType != ExamCET4 {
			continue
		}
		if !cet4.BestScore.Valid || sc.TotalScore > cet4.BestScore.Int {
			cet4.BestScore = null.IntFrom(sc.TotalScore)
			cet4.BestExamDate = null.TimeFrom(sc.ExamBatch.ExamDate)
		}
	}
	cet4.Passed = cet4.BestScore.Valid && cet4.BestScore.Int >= passLine

	cet6 := CET6Status{CanApply: cet4.Passed}
	switch {
	case cet4.Passed:
		cet6.Reason = fmt.Sprintf("CET4 passed with %d (>= %d), CET6 registration is open", cet4.BestScore.Int, passLine)
	case cet4.BestScore.Valid:
		cet6.Reason = fmt.Sprintf("best CET4 score %d is below the pass line %d", cet4.BestScore.Int, passLine)
	default:
		cet6.Reason = "no CET4 score on record"
	}
	return cet4, cet6
}
