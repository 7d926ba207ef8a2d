package api

import (
	"net/http"

	"github.com/nclamvn/teacherAI/internal/feedback"
)

type checkExerciseRequest struct {
	LessonID       string   `json:"lesson_id"`
	ExerciseType   string   `json:"exercise_type"`
	Question       string   `json:"question"`
	UserAnswers    []string `json:"user_answers"`
	CorrectAnswers []string `json:"correct_answers"`
}

func (s *Server) handleCheckExercise(w http.ResponseWriter, r *http.Request) {
	var req checkExerciseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		fail(w, r, err, "Failed to check exercise")
		return
	}
	typ, err := feedback.ParseExerciseType(req.ExerciseType)
	if err != nil {
		writeError(w, http.StatusBadRequest, "exercise_type must be multiple_choice, fill_blank or reorder")
		return
	}

	res, err := s.svc.CheckExercise(r.Context(), feedback.Exercise{
		LessonID:       req.LessonID,
		Type:           typ,
		Question:       req.Question,
		UserAnswers:    req.UserAnswers,
		CorrectAnswers: req.CorrectAnswers,
	})
	if err != nil {
		fail(w, r, err, "Failed to check exercise")
		return
	}
	writeJSON(w, http.StatusOK, res)
}
