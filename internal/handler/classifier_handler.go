package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/wifi-presence-api/internal/dto"
	"github.com/noah-isme/wifi-presence-api/internal/models"
	appErrors "github.com/noah-isme/wifi-presence-api/pkg/errors"
	"github.com/noah-isme/wifi-presence-api/pkg/response"
)

type anomalyClassifier interface {
	Classify(ctx context.Context, features models.FeatureVector) models.AnomalyVerdict
}

// ClassifierHandler exposes a manual check of the anomaly scorer.
type ClassifierHandler struct {
	classifier anomalyClassifier
	validator  *validator.Validate
}

// NewClassifierHandler builds a classifier handler.
func NewClassifierHandler(classifier anomalyClassifier, validate *validator.Validate) *ClassifierHandler {
	if validate == nil {
		validate = validator.New()
	}
	return &ClassifierHandler{classifier: classifier, validator: validate}
}

// Test godoc
// @Summary Score a caller supplied feature vector
// @Tags Classifier
// @Accept json
// @Produce json
// @Param payload body dto.ClassifierTestRequest true "Feature vector"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /classifier/test [post]
func (h *ClassifierHandler) Test(c *gin.Context) {
	var req dto.ClassifierTestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid feature payload"))
		return
	}
	if err := h.validator.Struct(req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid feature payload"))
		return
	}
	verdict := h.classifier.Classify(c.Request.Context(), models.FeatureVector{
		DurationTotal:    req.DurationTotal,
		APSwitches:       req.APSwitches,
		FragCount:        req.FragCount,
		BytesTotal:       req.BytesTotal,
		RSSIMean:         req.RSSIMean,
		RSSIStd:          req.RSSIStd,
		InvalidRSSICount: req.InvalidRSSICount,
		LoginHour:        req.LoginHour,
		Weekday:          req.Weekday,
		StartMinuteOfDay: req.StartMinuteOfDay,
		SampleCount:      req.FragCount,
	})
	response.JSON(c, http.StatusOK, verdict, nil)
}
