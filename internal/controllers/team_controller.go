package controllers

import (
	"net/http"
	"strconv"

	"github.com/fieldops/backend/internal/models"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type TeamController struct {
	db *gorm.DB
}

func NewTeamController(db *gorm.DB) *TeamController {
	return &TeamController{db: db}
}

type CreateTeamRequest struct {
	Name   string `json:"name" binding:"required"`
	LeadID *uint  `json:"leadId"`
}

func (tc *TeamController) CreateTeam(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		unauthenticated(c)
		return
	}
	if !actor.Role.IsElevated() {
		c.JSON(http.StatusForbidden, gin.H{"error": "Admin or Manager access required"})
		return
	}

	var req CreateTeamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.LeadID != nil {
		var lead models.User
		if err := tc.db.First(&lead, *req.LeadID).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Lead user not found"})
			return
		}
	}

	team := models.Team{Name: req.Name, LeadID: req.LeadID}
	if err := tc.db.Create(&team).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create team"})
		return
	}

	c.JSON(http.StatusCreated, team)
}

func (tc *TeamController) GetTeams(c *gin.Context) {
	var teams []models.Team
	if err := tc.db.Preload("Members.User").Find(&teams).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch teams"})
		return
	}

	// Clear password hashes from preloaded members
	for i := range teams {
		for j := range teams[i].Members {
			if teams[i].Members[j].User != nil {
				teams[i].Members[j].User.Password = ""
			}
		}
	}

	c.JSON(http.StatusOK, gin.H{"teams": teams})
}

type AddMemberRequest struct {
	UserID uint `json:"userId" binding:"required"`
}

func (tc *TeamController) AddMember(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		unauthenticated(c)
		return
	}
	if !actor.Role.IsElevated() {
		c.JSON(http.StatusForbidden, gin.H{"error": "Admin or Manager access required"})
		return
	}

	teamID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid team ID"})
		return
	}

	var req AddMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var team models.Team
	if err := tc.db.First(&team, teamID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Team not found"})
		return
	}

	var user models.User
	if err := tc.db.First(&user, req.UserID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	var existing models.TeamMember
	if err := tc.db.Where("team_id = ? AND user_id = ?", teamID, req.UserID).
		First(&existing).Error; err == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "User is already a member of this team"})
		return
	}

	member := models.TeamMember{TeamID: uint(teamID), UserID: req.UserID}
	if err := tc.db.Create(&member).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to add team member"})
		return
	}

	c.JSON(http.StatusCreated, member)
}

func (tc *TeamController) RemoveMember(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		unauthenticated(c)
		return
	}
	if !actor.Role.IsElevated() {
		c.JSON(http.StatusForbidden, gin.H{"error": "Admin or Manager access required"})
		return
	}

	teamID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid team ID"})
		return
	}

	userID, err := strconv.Atoi(c.Param("userId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID"})
		return
	}

	result := tc.db.Where("team_id = ? AND user_id = ?", teamID, userID).
		Delete(&models.TeamMember{})
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to remove team member"})
		return
	}
	if result.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Team member not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Team member removed"})
}
