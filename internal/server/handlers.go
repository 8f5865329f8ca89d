package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/Veraticus/food-classifier/internal/common"
	"github.com/Veraticus/food-classifier/internal/model"
)

// uploadField is the multipart form field carrying the image.
const uploadField = "image"

// multipartOverhead is the room left for boundaries, part headers and other
// form fields on top of the image itself.
const multipartOverhead = 1 << 20

type errorBody struct {
	Error string       `json:"error"`
	Stage common.Stage `json:"stage,omitempty"`
}

type exampleBody struct {
	Name        string `json:"name"`
	URL         string `json:"url"`
	Description string `json:"description"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleExamples(w http.ResponseWriter, _ *http.Request) {
	examples := make([]exampleBody, 0, len(s.catalog.Examples))
	for _, ex := range s.catalog.Examples {
		examples = append(examples, exampleBody{
			Name:        ex.Name,
			URL:         ex.URL,
			Description: s.catalog.Description(ex.Name),
		})
	}
	writeJSON(w, http.StatusOK, examples)
}

func (s *Server) handlePredictImage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes+multipartOverhead)
	if err := r.ParseMultipartForm(s.maxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			err = fmt.Errorf("upload exceeds %d bytes", s.maxUploadBytes)
		} else {
			err = fmt.Errorf("failed to parse form: %w", err)
		}
		s.writeError(w, common.NewStageError(common.StageUpload, common.ErrInvalidImage, err))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile(uploadField)
	if err != nil {
		s.writeError(w, common.NewStageError(common.StageUpload, common.ErrInvalidImage,
			fmt.Errorf("no image file provided; use %q as the form field name", uploadField)))
		return
	}
	defer func() { _ = file.Close() }()

	data, err := io.ReadAll(io.LimitReader(file, s.maxUploadBytes+1))
	if err != nil {
		s.writeError(w, common.NewStageError(common.StageUpload, common.ErrInvalidImage, fmt.Errorf("failed to read upload: %w", err)))
		return
	}
	if int64(len(data)) > s.maxUploadBytes {
		s.writeError(w, common.NewStageError(common.StageUpload, common.ErrInvalidImage, fmt.Errorf("upload exceeds %d bytes", s.maxUploadBytes)))
		return
	}

	s.logger.Debug("received upload", "file", header.Filename, "bytes", len(data))
	s.predict(w, r, model.Upload{Name: header.Filename, Data: data})
}

func (s *Server) handlePredictExample(w http.ResponseWriter, r *http.Request) {
	s.predict(w, r, model.Example{Name: r.PathValue("name")})
}

func (s *Server) predict(w http.ResponseWriter, r *http.Request, sel model.Selection) {
	ctx := r.Context()

	input, err := s.resolver.Resolve(ctx, sel)
	if err != nil {
		s.writeError(w, err)
		return
	}

	result, err := s.predictor.Predict(ctx, input)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.record(ctx, result)
	writeJSON(w, http.StatusOK, result)
}

// record saves result to history. Failures are logged and never fail the request.
func (s *Server) record(ctx context.Context, result *model.PredictionResult) {
	if s.history == nil {
		return
	}
	record, err := model.NewPredictionRecord(result)
	if err == nil {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), historyTimeout)
		defer cancel()
		err = s.history.SavePrediction(ctx, record)
	}
	if err != nil {
		s.logger.Warn("failed to record prediction", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	stage, _ := common.StageOf(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("prediction failed", "stage", stage, "error", err)
	} else {
		s.logger.Info("prediction rejected", "stage", stage, "error", err)
	}
	writeJSON(w, status, errorBody{Error: common.UserMessage(err), Stage: stage})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, common.ErrInvalidImage):
		return http.StatusBadRequest
	case errors.Is(err, common.ErrExampleFetch):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
