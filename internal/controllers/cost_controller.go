package controllers

import (
	"net/http"
	"strconv"

	"github.com/fieldops/backend/internal/models"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type CostController struct {
	db *gorm.DB
}

func NewCostController(db *gorm.DB) *CostController {
	return &CostController{db: db}
}

type CreateCostRequest struct {
	Amount      float64             `json:"amount" binding:"required,gt=0"`
	Category    models.CostCategory `json:"category"`
	Description string              `json:"description"`
}

func (cc *CostController) CreateCost(c *gin.Context) {
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

	var req CreateCostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var job models.Job
	if err := cc.db.First(&job, jobID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Job not found"})
		return
	}

	category := req.Category
	if category == "" {
		category = models.CostCategoryOther
	}

	cost := models.CostTracking{
		JobID:       uint(jobID),
		Amount:      req.Amount,
		Category:    category,
		Description: req.Description,
		CreatedByID: actor.ID,
	}
	if err := cc.db.Create(&cost).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create cost entry"})
		return
	}

	c.JSON(http.StatusCreated, cost)
}

func (cc *CostController) GetJobCosts(c *gin.Context) {
	jobID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid job ID"})
		return
	}

	var costs []models.CostTracking
	if err := cc.db.Where("job_id = ?", jobID).Order("created_at").Find(&costs).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch costs"})
		return
	}

	var total float64
	for _, cost := range costs {
		total += cost.Amount
	}

	c.JSON(http.StatusOK, gin.H{
		"costs": costs,
		"total": total,
	})
}
