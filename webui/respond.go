package webui

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"storybook/composer"
	"storybook/pipeline"
	"storybook/session"
	"storybook/story"
)

// Error codes carried in the error envelope.
const (
	CodeBadRequest     = "bad_request"
	CodeBodyTooLarge   = "body_too_large"
	CodeInvalidParams  = "invalid_params"
	CodeEmptyPrompt    = "empty_prompt"
	CodeSceneNotFound  = "scene_not_found"
	CodeNoScenes       = "no_scenes"
	CodeStoryReplaced  = "story_replaced"
	CodeEmptyDocument  = "empty_document"
	CodeRenderFailed   = "render_failed"
	CodeRateLimited    = "rate_limited"
	CodeNotFound       = "not_found"
	CodeInternal       = "internal"
)

// ErrorBody is the payload of every error response.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	// Field names the offending story parameter for invalid_params.
	Field string `json:"field,omitempty"`
}

// ErrorResponse is the error envelope: {"error": {...}}.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Headers are gone by now; nothing useful to do with an encode error.
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Error: ErrorBody{Code: code, Message: message}})
}

// writeFailure maps a pipeline, session or composer error to its status
// code and envelope. Unknown errors are logged and reported as 500.
func writeFailure(w http.ResponseWriter, logger *zap.Logger, err error) {
	var (
		synthErr *story.SynthesisError
		compErr  *composer.CompositionError
	)
	switch {
	case errors.As(err, &synthErr):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: ErrorBody{
			Code: CodeInvalidParams, Message: err.Error(), Field: synthErr.Field,
		}})
	case errors.Is(err, pipeline.ErrEmptyPrompt):
		writeError(w, http.StatusBadRequest, CodeEmptyPrompt, err.Error())
	case errors.Is(err, session.ErrSceneNotFound):
		writeError(w, http.StatusNotFound, CodeSceneNotFound, err.Error())
	case errors.Is(err, pipeline.ErrNoScenes):
		writeError(w, http.StatusConflict, CodeNoScenes, err.Error())
	case errors.Is(err, session.ErrReplaced):
		writeError(w, http.StatusConflict, CodeStoryReplaced, err.Error())
	case errors.Is(err, composer.ErrEmptyDocument):
		writeError(w, http.StatusConflict, CodeEmptyDocument, err.Error())
	case errors.As(err, &compErr):
		logger.Error("document render failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, CodeRenderFailed, err.Error())
	default:
		logger.Error("request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, CodeInternal, "internal error")
	}
}

// decodeBody decodes a JSON request body, writing the error response
// itself. It returns false when the handler should stop.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, CodeBodyTooLarge, err.Error())
			return false
		}
		writeError(w, http.StatusBadRequest, CodeBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}
