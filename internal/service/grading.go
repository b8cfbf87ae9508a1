package service

import "appcc_edu_backend/internal/model"

// Grade 答题评分结果
type Grade struct {
	EarnedPoints   int `json:"earnedPoints"`
	TotalPoints    int `json:"totalPoints"`
	CorrectAnswers int `json:"correctAnswers"`
	TotalQuestions int `json:"totalQuestions"`
	Score          int `json:"score"`
}

// GradeAttempt 按题目分值汇总得分。未作答的题目计为错误，总分为 0 时得分为 0。
func GradeAttempt(questions []model.Question, answers []model.UserAnswer) Grade {
	byQuestion := make(map[uint]model.UserAnswer, len(answers))
	for _, a := range answers {
		byQuestion[a.QuestionID] = a
	}

	g := Grade{TotalQuestions: len(questions)}
	for _, q := range questions {
		g.TotalPoints += q.Points
		if a, ok := byQuestion[q.ID]; ok && a.IsCorrect {
			g.EarnedPoints += q.Points
			g.CorrectAnswers++
		}
	}
	g.Score = Percent(g.EarnedPoints, g.TotalPoints)
	return g
}

// IsPassed 无可计分题目的测验一律不通过
func (g Grade) IsPassed(passingScore int) bool {
	if g.TotalPoints <= 0 {
		return false
	}
	return g.Score >= passingScore
}
