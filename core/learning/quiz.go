package learning

import "math"

// grade scores answers against the quiz key: round(100 * correct / total).
func grade(quiz Quiz, answers []int) (int, []QuestionFeedback) {
	feedback := make([]QuestionFeedback, 0, len(quiz.Questions))
	var correct int
	for i, q := range quiz.Questions {
		ok := answers[i] == q.Correct
		if ok {
			correct++
		}
		feedback = append(feedback, QuestionFeedback{
			Question:    q.Question,
			Chosen:      answers[i],
			Correct:     q.Correct,
			IsCorrect:   ok,
			Explanation: q.Explanation,
		})
	}
	score := int(math.Round(100 * float64(correct) / float64(len(quiz.Questions))))
	return score, feedback
}
