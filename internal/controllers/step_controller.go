package controllers

import (
	"net/http"
	"strconv"

	"github.com/fieldops/backend/internal/middleware"
	"github.com/fieldops/backend/internal/models"
	"github.com/fieldops/backend/internal/services"
	"github.com/fieldops/backend/internal/storage"
	"github.com/gin-gonic/gin"
)

type StepController struct {
	gateService *services.GateService
	photoStore  storage.PhotoStore
}

func NewStepController(gateService *services.GateService, photoStore storage.PhotoStore) *StepController {
	return &StepController{gateService: gateService, photoStore: photoStore}
}

type AddStepRequest struct {
	Title string `json:"title" binding:"required"`
}

func (sc *StepController) AddStep(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		unauthenticated(c)
		return
	}

	jobID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid job ID"})
		return
	}

	var req AddStepRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	step, err := sc.gateService.AddStep(uint(jobID), req.Title, actor)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, step)
}

func (sc *StepController) ToggleStep(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		unauthenticated(c)
		return
	}

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid step ID"})
		return
	}

	step, err := sc.gateService.ToggleStep(uint(id), actor, middleware.ClientVersion(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, step)
}

func (sc *StepController) AddSubStep(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		unauthenticated(c)
		return
	}

	stepID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid step ID"})
		return
	}

	var req AddStepRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sub, err := sc.gateService.AddSubStep(uint(stepID), req.Title, actor)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, sub)
}

func (sc *StepController) ToggleSubStep(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		unauthenticated(c)
		return
	}

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid sub-step ID"})
		return
	}

	sub, err := sc.gateService.ToggleSubStep(uint(id), actor, middleware.ClientVersion(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, sub)
}

// UploadPhotos accepts multipart photo evidence for a sub-step, stores each
// file through the photo store and attaches the results.
func (sc *StepController) UploadPhotos(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		unauthenticated(c)
		return
	}

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid sub-step ID"})
		return
	}

	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid multipart form"})
		return
	}

	files := form.File["photos"]
	if len(files) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No photos provided"})
		return
	}

	var photos []models.Photo
	for _, fh := range files {
		f, err := fh.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read uploaded file"})
			return
		}

		result, err := sc.photoStore.Upload(c.Request.Context(), fh.Filename, f)
		f.Close()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store photo"})
			return
		}

		photos = append(photos, models.Photo{URL: result.URL, PublicID: result.PublicID})
	}

	sub, err := sc.gateService.AttachPhotos(uint(id), photos, actor)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, sub)
}
