package server

import (
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	gormdb "github.com/thebtf/promptdock/internal/db/gorm"
	"github.com/thebtf/promptdock/internal/onboarding"
)

var validate = validator.New()

// OnboardingCompletionRequest is the payload for POST /api/onboarding/complete.
// Fields selected as "other" in the UI carry free-text details in the
// matching *_details field; the two are recombined as "other:<details>".
type OnboardingCompletionRequest struct {
	JobType         string   `json:"job_type" validate:"omitempty,max=100"`
	JobOtherDetails string   `json:"job_other_details" validate:"omitempty,max=200"`
	JobIndustry     string   `json:"job_industry" validate:"omitempty,max=100"`
	JobSeniority    string   `json:"job_seniority" validate:"omitempty,max=100"`
	Interests       []string `json:"interests" validate:"omitempty,max=50,dive,max=100"`
	OtherInterests  string   `json:"other_interests" validate:"omitempty,max=200"`
	SignupSource    string   `json:"signup_source" validate:"omitempty,max=100"`
	OtherSource     string   `json:"other_source" validate:"omitempty,max=200"`
}

// FolderRecommendationRequest is the payload for the preview endpoint.
type FolderRecommendationRequest struct {
	JobType      string   `json:"job_type" validate:"omitempty,max=100"`
	JobIndustry  string   `json:"job_industry" validate:"omitempty,max=100"`
	JobSeniority string   `json:"job_seniority" validate:"omitempty,max=100"`
	Interests    []string `json:"interests" validate:"omitempty,max=50,dive,max=100"`
}

// handleOnboardingComplete persists the onboarding answers and assigns
// personalized folders.
func (s *Service) handleOnboardingComplete(w http.ResponseWriter, r *http.Request) {
	var req OnboardingCompletionRequest
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := validate.Struct(&req); err != nil {
		http.Error(w, "invalid request: "+err.Error(), http.StatusBadRequest)
		return
	}

	userID := userIDFrom(r)
	loc := requestLocale(r)

	jobType := req.JobType
	if req.JobType == "other" && req.JobOtherDetails != "" {
		jobType = "other:" + req.JobOtherDetails
	}

	interests := append([]string(nil), req.Interests...)
	if req.OtherInterests != "" {
		interests = append(interests, "other:"+req.OtherInterests)
	}

	signupSource := req.SignupSource
	if req.SignupSource == "other" && req.OtherSource != "" {
		signupSource = "other:" + req.OtherSource
	}

	answers := gormdb.OnboardingAnswers{
		JobType:      jobType,
		JobIndustry:  req.JobIndustry,
		JobSeniority: req.JobSeniority,
		SignupSource: signupSource,
		Interests:    interests,
	}

	s.initMu.RLock()
	pins := s.pins
	onboardingSvc := s.onboarding
	s.initMu.RUnlock()

	if err := pins.SaveOnboardingAnswers(r.Context(), userID, answers); err != nil {
		log.Error().Err(err).Str("user", userID).Msg("Failed to save onboarding answers")
		writeJSONStatus(w, http.StatusInternalServerError, map[string]interface{}{
			"success": false,
			"message": "Failed to save onboarding data",
		})
		return
	}

	result := onboardingSvc.ProcessCompletion(r.Context(), userID, onboarding.Answers{
		JobType:      jobType,
		JobIndustry:  req.JobIndustry,
		JobSeniority: req.JobSeniority,
		Interests:    interests,
	}, loc)

	log.Info().
		Str("user", userID).
		Bool("folder_assignment", result.Success).
		Int("new_folders", len(result.NewFolders)).
		Msg("Completed onboarding")

	writeJSON(w, result)
}

// handleOnboardingPreview computes folder recommendations without persisting
// anything, so the extension can show live results while the form is filled.
func (s *Service) handleOnboardingPreview(w http.ResponseWriter, r *http.Request) {
	var req FolderRecommendationRequest
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := validate.Struct(&req); err != nil {
		http.Error(w, "invalid request: "+err.Error(), http.StatusBadRequest)
		return
	}

	loc := requestLocale(r)

	s.initMu.RLock()
	onboardingSvc := s.onboarding
	s.initMu.RUnlock()

	preview := onboardingSvc.Preview(r.Context(), onboarding.Answers{
		JobType:      req.JobType,
		JobIndustry:  req.JobIndustry,
		JobSeniority: req.JobSeniority,
		Interests:    req.Interests,
	}, loc)

	if !preview.Success {
		writeJSONStatus(w, http.StatusInternalServerError, preview)
		return
	}

	preview.Message = fmt.Sprintf("Found %d recommended folders", preview.TotalCount)
	writeJSON(w, preview)
}
