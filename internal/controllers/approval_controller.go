package controllers

import (
	"net/http"
	"strconv"

	"github.com/fieldops/backend/internal/models"
	"github.com/fieldops/backend/internal/services"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type ApprovalController struct {
	db              *gorm.DB
	approvalService *services.ApprovalService
}

func NewApprovalController(db *gorm.DB, approvalService *services.ApprovalService) *ApprovalController {
	return &ApprovalController{db: db, approvalService: approvalService}
}

type RejectRequest struct {
	Reason string `json:"reason"`
}

type ResolveApprovalRequest struct {
	Approve bool   `json:"approve"`
	Reason  string `json:"reason"`
}

// GetPendingApprovals lists unresolved approvals addressed to the caller.
func (ac *ApprovalController) GetPendingApprovals(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		unauthenticated(c)
		return
	}

	var approvals []models.Approval
	err := ac.db.Preload("Job").Preload("Requester").
		Where("approver_id = ? AND status = ?", actor.ID, models.ApprovalPending).
		Order("created_at").Find(&approvals).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch approvals"})
		return
	}

	// Clear password hashes from preloaded requesters
	for i := range approvals {
		if approvals[i].Requester != nil {
			approvals[i].Requester.Password = ""
		}
	}

	c.JSON(http.StatusOK, gin.H{"approvals": approvals})
}

func (ac *ApprovalController) ResolveApproval(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		unauthenticated(c)
		return
	}

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid approval ID"})
		return
	}

	var req ResolveApprovalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	approval, err := ac.approvalService.ResolveJobApproval(uint(id), actor, req.Approve, req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, approval)
}

func (ac *ApprovalController) ApproveStep(c *gin.Context) {
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

	step, err := ac.approvalService.ApproveStep(uint(id), actor)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, step)
}

func (ac *ApprovalController) RejectStep(c *gin.Context) {
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

	var req RejectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	step, err := ac.approvalService.RejectStep(uint(id), actor, req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, step)
}

func (ac *ApprovalController) ApproveSubStep(c *gin.Context) {
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

	sub, err := ac.approvalService.ApproveSubStep(uint(id), actor)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, sub)
}

func (ac *ApprovalController) RejectSubStep(c *gin.Context) {
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

	var req RejectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sub, err := ac.approvalService.RejectSubStep(uint(id), actor, req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, sub)
}

func (ac *ApprovalController) ApproveCost(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		unauthenticated(c)
		return
	}

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid cost ID"})
		return
	}

	cost, err := ac.approvalService.ApproveCost(uint(id), actor)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, cost)
}

func (ac *ApprovalController) RejectCost(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		unauthenticated(c)
		return
	}

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid cost ID"})
		return
	}

	var req RejectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	cost, err := ac.approvalService.RejectCost(uint(id), actor, req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, cost)
}
