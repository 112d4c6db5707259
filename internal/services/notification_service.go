package services

import (
	"encoding/json"
	"time"

	"github.com/fieldops/backend/internal/logger"
	"github.com/fieldops/backend/internal/models"
	"gorm.io/gorm"
)

// PushGateway delivers a best-effort live event to a connected user. The
// persisted Notification row is the source of truth; push delivery is
// optional and its absence is never an error.
type PushGateway interface {
	EmitToUser(userID uint, event string, payload interface{})
}

// EventPublisher mirrors dispatched outbox events onto an external queue for
// out-of-process consumers (mobile push worker). Optional.
type EventPublisher interface {
	Publish(routingKey string, body []byte) error
}

type NotificationService struct {
	db        *gorm.DB
	push      PushGateway
	publisher EventPublisher
}

func NewNotificationService(db *gorm.DB, push PushGateway, publisher EventPublisher) *NotificationService {
	return &NotificationService{db: db, push: push, publisher: publisher}
}

// Enqueue writes the outbox event inside the caller's transaction. Dispatch
// happens after commit, so the notification layer cannot affect the
// atomicity of the mutation that produced the event.
func (ns *NotificationService) Enqueue(tx *gorm.DB, ev *models.JobEvent) error {
	ev.Status = models.EventPending
	return tx.Create(ev).Error
}

// Dispatch processes the given outbox events. All failures are logged and
// swallowed: a failed notification must never block business progress.
func (ns *NotificationService) Dispatch(eventIDs ...uint) {
	if len(eventIDs) == 0 {
		return
	}
	var events []models.JobEvent
	if err := ns.db.Where("id IN ? AND status = ?", eventIDs, models.EventPending).
		Find(&events).Error; err != nil {
		logger.Error("Failed to load outbox events", map[string]interface{}{"error": err.Error()})
		return
	}
	for i := range events {
		ns.dispatchEvent(&events[i])
	}
}

// DispatchPending drains every pending outbox event. Used as a catch-up
// sweep for events whose synchronous dispatch never ran.
func (ns *NotificationService) DispatchPending() {
	var events []models.JobEvent
	if err := ns.db.Where("status = ?", models.EventPending).
		Order("id").Find(&events).Error; err != nil {
		logger.Error("Failed to load pending outbox events", map[string]interface{}{"error": err.Error()})
		return
	}
	for i := range events {
		ns.dispatchEvent(&events[i])
	}
}

func (ns *NotificationService) dispatchEvent(ev *models.JobEvent) {
	var err error
	switch ev.Audience {
	case models.AudienceAssignees:
		if ev.JobID != nil {
			err = ns.SendJobNotification(*ev.JobID, ev.Title, ev.Message, ev.Type, ev.Link)
		}
	case models.AudienceAdmins:
		err = ns.SendAdminNotification(ev.Title, ev.Message, ev.Type, ev.Link, ev.ExcludeUserID)
	case models.AudienceUser:
		if ev.TargetUserID != nil {
			err = ns.deliver([]uint{*ev.TargetUserID}, ev.Title, ev.Message, ev.Type, ev.Link)
		}
	}

	status := models.EventSent
	if err != nil {
		status = models.EventFailed
		logger.WithEvent(ev.ID).WithField("error", err.Error()).Error("Notification dispatch failed")
	}

	now := time.Now()
	if err := ns.db.Model(&models.JobEvent{}).Where("id = ?", ev.ID).Updates(map[string]interface{}{
		"status":        status,
		"dispatched_at": &now,
	}).Error; err != nil {
		logger.WithEvent(ev.ID).WithField("error", err.Error()).Error("Failed to mark outbox event")
	}

	if ns.publisher != nil {
		body, merr := json.Marshal(ev)
		if merr == nil {
			if perr := ns.publisher.Publish(string(ev.Audience), body); perr != nil {
				logger.WithEvent(ev.ID).WithField("error", perr.Error()).Warn("Queue publish failed")
			}
		}
	}
}

// SendJobNotification writes one Notification row per unique recipient
// resolved from the job's assignments. An empty recipient set is a silent
// no-op.
func (ns *NotificationService) SendJobNotification(jobID uint, title, message string, notifType models.NotificationType, link string) error {
	recipients, err := ns.resolveJobRecipients(jobID)
	if err != nil {
		return err
	}
	return ns.deliver(recipients, title, message, notifType, link)
}

// SendAdminNotification fans out to all active admins and managers, minus
// the optional excluded user (the actor who caused the event).
func (ns *NotificationService) SendAdminNotification(title, message string, notifType models.NotificationType, link string, excludeUserID *uint) error {
	recipients, err := ns.resolveAdminRecipients(excludeUserID)
	if err != nil {
		return err
	}
	return ns.deliver(recipients, title, message, notifType, link)
}

// resolveJobRecipients collects direct worker assignees plus every member of
// any assigned team, deduplicated.
func (ns *NotificationService) resolveJobRecipients(jobID uint) ([]uint, error) {
	var assignments []models.JobAssignment
	if err := ns.db.Where("job_id = ?", jobID).Find(&assignments).Error; err != nil {
		return nil, err
	}

	seen := make(map[uint]bool)
	var recipients []uint
	var teamIDs []uint
	for _, a := range assignments {
		if a.WorkerID != nil && !seen[*a.WorkerID] {
			seen[*a.WorkerID] = true
			recipients = append(recipients, *a.WorkerID)
		}
		if a.TeamID != nil {
			teamIDs = append(teamIDs, *a.TeamID)
		}
	}

	if len(teamIDs) > 0 {
		var members []models.TeamMember
		if err := ns.db.Where("team_id IN ?", teamIDs).Find(&members).Error; err != nil {
			return nil, err
		}
		for _, m := range members {
			if !seen[m.UserID] {
				seen[m.UserID] = true
				recipients = append(recipients, m.UserID)
			}
		}
	}

	return recipients, nil
}

func (ns *NotificationService) resolveAdminRecipients(excludeUserID *uint) ([]uint, error) {
	var users []models.User
	query := ns.db.Where("role IN ? AND is_active = ?",
		[]models.UserRole{models.RoleAdmin, models.RoleManager}, true)
	if excludeUserID != nil {
		query = query.Where("id <> ?", *excludeUserID)
	}
	if err := query.Find(&users).Error; err != nil {
		return nil, err
	}

	recipients := make([]uint, 0, len(users))
	for _, u := range users {
		recipients = append(recipients, u.ID)
	}
	return recipients, nil
}

func (ns *NotificationService) deliver(userIDs []uint, title, message string, notifType models.NotificationType, link string) error {
	if len(userIDs) == 0 {
		return nil
	}

	notifications := make([]models.Notification, 0, len(userIDs))
	for _, id := range userIDs {
		notifications = append(notifications, models.Notification{
			UserID:  id,
			Title:   title,
			Message: message,
			Type:    notifType,
			Link:    link,
		})
	}
	if err := ns.db.Create(&notifications).Error; err != nil {
		return err
	}

	if ns.push != nil {
		for i := range notifications {
			ns.push.EmitToUser(notifications[i].UserID, "notification", notifications[i])
		}
	}
	return nil
}
