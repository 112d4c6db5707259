package controllers

import (
	"net/http"
	"strconv"

	"github.com/fieldops/backend/internal/middleware"
	"github.com/fieldops/backend/internal/models"
	"github.com/fieldops/backend/internal/services"
	"github.com/gin-gonic/gin"
)

type JobController struct {
	jobService *services.JobService
}

func NewJobController(jobService *services.JobService) *JobController {
	return &JobController{jobService: jobService}
}

func (jc *JobController) CreateJob(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		unauthenticated(c)
		return
	}

	var input services.CreateJobInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	job, err := jc.jobService.Create(input, actor)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, job)
}

func (jc *JobController) GetJob(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid job ID"})
		return
	}

	job, err := jc.jobService.Get(uint(id))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, job)
}

func (jc *JobController) GetJobs(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	filter := services.ListJobsFilter{
		Status:   models.JobStatus(c.Query("status")),
		Priority: models.JobPriority(c.Query("priority")),
		Page:     page,
		Limit:    limit,
	}

	jobs, total, err := jc.jobService.List(filter)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"jobs": jobs,
		"pagination": gin.H{
			"page":  page,
			"limit": limit,
			"total": total,
		},
	})
}

func (jc *JobController) UpdateJob(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		unauthenticated(c)
		return
	}

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid job ID"})
		return
	}

	var input services.UpdateJobInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	job, err := jc.jobService.Update(uint(id), input, actor, middleware.ClientVersion(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, job)
}

func (jc *JobController) StartJob(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		unauthenticated(c)
		return
	}

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid job ID"})
		return
	}

	job, err := jc.jobService.Start(uint(id), actor, middleware.ClientVersion(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, job)
}

func (jc *JobController) RequestCompletion(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		unauthenticated(c)
		return
	}

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid job ID"})
		return
	}

	job, approval, err := jc.jobService.RequestCompletion(uint(id), actor, middleware.ClientVersion(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"job":      job,
		"approval": approval,
	})
}

type SetStatusRequest struct {
	Status models.JobStatus `json:"status" binding:"required"`
}

func (jc *JobController) SetStatus(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		unauthenticated(c)
		return
	}

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid job ID"})
		return
	}

	var req SetStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	job, err := jc.jobService.SetStatus(uint(id), req.Status, actor, middleware.ClientVersion(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, job)
}

type AssignJobRequest struct {
	WorkerID *uint `json:"workerId"`
	TeamID   *uint `json:"teamId"`
}

func (jc *JobController) AssignJob(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		unauthenticated(c)
		return
	}

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid job ID"})
		return
	}

	var req AssignJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	assignment, err := jc.jobService.Assign(uint(id), req.WorkerID, req.TeamID, actor)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, assignment)
}
