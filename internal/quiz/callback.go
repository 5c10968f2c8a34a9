package quiz

import (
	"github.com/m3rciful/neuroquiz/core/telegram/callbacks"
)

// Callback keys handled by the quiz.
const (
	KeyQuestion = "question"
	keyAnswer   = "answer"
)

// AnswerData encodes the button data of an answer.
func AnswerData(questionID, answerID int64) string {
	return callbacks.MustJoin(KeyQuestion, questionID, keyAnswer, answerID)
}

// ParseAnswerData decodes question_{qid}_answer_{aid}. Any other shape is rejected.
func ParseAnswerData(data string) (questionID, answerID int64, ok bool) {
	tokens := callbacks.Split(data)
	if len(tokens) != 4 || tokens[0] != KeyQuestion || tokens[2] != keyAnswer {
		return 0, 0, false
	}
	q, err := callbacks.Int64(tokens, 1)
	if err != nil || q <= 0 {
		return 0, 0, false
	}
	a, err := callbacks.Int64(tokens, 3)
	if err != nil || a <= 0 {
		return 0, 0, false
	}
	return q, a, true
}
