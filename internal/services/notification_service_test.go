package services

import (
	"sync"
	"testing"

	"github.com/fieldops/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fakePush struct {
	mu     sync.Mutex
	events map[uint]int
}

func (f *fakePush) EmitToUser(userID uint, event string, payload interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.events == nil {
		f.events = make(map[uint]int)
	}
	f.events[userID]++
}

type fakePublisher struct {
	mu   sync.Mutex
	keys []string
}

func (f *fakePublisher) Publish(routingKey string, body []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keys = append(f.keys, routingKey)
	return nil
}

func TestSendJobNotification_TeamFanOut(t *testing.T) {
	db := newTestDB(t)
	ns := NewNotificationService(db, nil, nil)
	admin := createUser(t, db, models.RoleAdmin)
	w1 := createUser(t, db, models.RoleWorker)
	w2 := createUser(t, db, models.RoleWorker)
	w3 := createUser(t, db, models.RoleWorker)
	job := createJob(t, db, admin.ID, models.JobStatusInProgress)
	team := createTeam(t, db, w1.ID, w2.ID, w3.ID)
	assignTeam(t, db, job.ID, team.ID)

	err := ns.SendJobNotification(job.ID, "Heads up", "Schedule changed", models.NotificationInfo, "/jobs/1")
	require.NoError(t, err)

	var total int64
	require.NoError(t, db.Model(&models.Notification{}).Count(&total).Error)
	assert.EqualValues(t, 3, total, "one row per team member")
	assert.Len(t, notificationsFor(t, db, w1.ID), 1)
	assert.Len(t, notificationsFor(t, db, w2.ID), 1)
	assert.Len(t, notificationsFor(t, db, w3.ID), 1)
}

func TestSendJobNotification_DedupAcrossAssignments(t *testing.T) {
	db := newTestDB(t)
	ns := NewNotificationService(db, nil, nil)
	admin := createUser(t, db, models.RoleAdmin)
	w1 := createUser(t, db, models.RoleWorker)
	w2 := createUser(t, db, models.RoleWorker)
	job := createJob(t, db, admin.ID, models.JobStatusInProgress)
	team := createTeam(t, db, w1.ID, w2.ID)
	assignTeam(t, db, job.ID, team.ID)
	// w1 is also directly assigned
	assignWorker(t, db, job.ID, w1.ID)

	err := ns.SendJobNotification(job.ID, "Update", "New photos required", models.NotificationWarning, "")
	require.NoError(t, err)

	assert.Len(t, notificationsFor(t, db, w1.ID), 1, "direct + team membership delivers once")
	assert.Len(t, notificationsFor(t, db, w2.ID), 1)
}

func TestSendJobNotification_NoAssigneesIsNoOp(t *testing.T) {
	db := newTestDB(t)
	ns := NewNotificationService(db, nil, nil)
	admin := createUser(t, db, models.RoleAdmin)
	job := createJob(t, db, admin.ID, models.JobStatusPending)

	err := ns.SendJobNotification(job.ID, "Nobody home", "x", models.NotificationInfo, "")
	require.NoError(t, err)

	var total int64
	require.NoError(t, db.Model(&models.Notification{}).Count(&total).Error)
	assert.Zero(t, total)
}

func TestSendAdminNotification_ExcludesActorAndInactive(t *testing.T) {
	db := newTestDB(t)
	ns := NewNotificationService(db, nil, nil)
	admin := createUser(t, db, models.RoleAdmin)
	manager := createUser(t, db, models.RoleManager)
	inactive := createUser(t, db, models.RoleAdmin)
	require.NoError(t, db.Model(inactive).Update("is_active", false).Error)
	createUser(t, db, models.RoleWorker)

	err := ns.SendAdminNotification("Job started", "x", models.NotificationInfo, "", &admin.ID)
	require.NoError(t, err)

	assert.Empty(t, notificationsFor(t, db, admin.ID), "actor is excluded")
	assert.Len(t, notificationsFor(t, db, manager.ID), 1)
	assert.Empty(t, notificationsFor(t, db, inactive.ID))
}

func TestDispatch_MarksOutboxAndPushes(t *testing.T) {
	db := newTestDB(t)
	push := &fakePush{}
	pub := &fakePublisher{}
	ns := NewNotificationService(db, push, pub)
	admin := createUser(t, db, models.RoleAdmin)
	worker := createUser(t, db, models.RoleWorker)
	job := createJob(t, db, admin.ID, models.JobStatusInProgress)
	assignWorker(t, db, job.ID, worker.ID)

	ev := &models.JobEvent{
		JobID:    &job.ID,
		Audience: models.AudienceAssignees,
		Title:    "Step rejected",
		Message:  "redo required",
		Type:     models.NotificationError,
	}
	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		return ns.Enqueue(tx, ev)
	}))

	var pending models.JobEvent
	require.NoError(t, db.First(&pending, ev.ID).Error)
	assert.Equal(t, models.EventPending, pending.Status)

	ns.Dispatch(ev.ID)

	var sent models.JobEvent
	require.NoError(t, db.First(&sent, ev.ID).Error)
	assert.Equal(t, models.EventSent, sent.Status)
	assert.NotNil(t, sent.DispatchedAt)

	assert.Len(t, notificationsFor(t, db, worker.ID), 1)
	assert.Equal(t, 1, push.events[worker.ID])
	require.Len(t, pub.keys, 1)
	assert.Equal(t, string(models.AudienceAssignees), pub.keys[0])

	// Re-dispatching a sent event is a no-op
	ns.Dispatch(ev.ID)
	assert.Len(t, notificationsFor(t, db, worker.ID), 1)
}

func TestDispatchPending_DrainsBacklog(t *testing.T) {
	db := newTestDB(t)
	ns := NewNotificationService(db, nil, nil)
	admin := createUser(t, db, models.RoleAdmin)

	for i := 0; i < 3; i++ {
		ev := &models.JobEvent{
			Audience:     models.AudienceUser,
			TargetUserID: &admin.ID,
			Title:        "Backlog",
		}
		require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
			return ns.Enqueue(tx, ev)
		}))
	}

	ns.DispatchPending()

	var remaining int64
	require.NoError(t, db.Model(&models.JobEvent{}).
		Where("status = ?", models.EventPending).Count(&remaining).Error)
	assert.Zero(t, remaining)
	assert.Len(t, notificationsFor(t, db, admin.ID), 3)
}
