package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/maktab-hq/maktab-api/internal/models"
	"github.com/maktab-hq/maktab-api/pkg/jobs"
)

// NotificationDispatcher delivers a single notification. Implementations sit
// at the boundary to the mail or SMS gateway.
type NotificationDispatcher interface {
	Dispatch(ctx context.Context, notification models.Notification) error
}

// LogDispatcher is the default dispatcher. It records the notification and
// succeeds, which keeps the pipeline exercisable without a real gateway.
type LogDispatcher struct {
	logger *zap.Logger
}

// NewLogDispatcher constructs a LogDispatcher.
func NewLogDispatcher(logger *zap.Logger) *LogDispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogDispatcher{logger: logger}
}

// Dispatch logs the outbound notification.
func (d *LogDispatcher) Dispatch(_ context.Context, n models.Notification) error {
	d.logger.Sugar().Infow("notification dispatched",
		"channel", n.Channel,
		"recipient", n.Recipient,
		"subject", n.Subject,
	)
	return nil
}

// NotificationService enqueues fire-and-forget notifications after financial
// writes. A full queue or failed dispatch is logged and never surfaces to the
// caller, so the originating write is never rolled back.
type NotificationService struct {
	queue   *jobs.Queue
	logger  *zap.Logger
	enabled bool
}

// NewNotificationService constructs the service and its worker queue.
func NewNotificationService(dispatcher NotificationDispatcher, enabled bool, concurrency int, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &NotificationService{logger: logger, enabled: enabled}
	s.queue = jobs.NewQueue("notifications", func(ctx context.Context, job jobs.Job) error {
		notification, ok := job.Payload.(models.Notification)
		if !ok {
			logger.Sugar().Warnw("dropping malformed notification job", "job_id", job.ID)
			return nil
		}
		return dispatcher.Dispatch(ctx, notification)
	}, jobs.QueueConfig{
		Workers: concurrency,
		Logger:  logger,
	})
	return s
}

// Start boots the worker pool.
func (s *NotificationService) Start(ctx context.Context) {
	if s.enabled {
		s.queue.Start(ctx)
	}
}

// Stop drains the worker pool.
func (s *NotificationService) Stop() {
	if s.enabled {
		s.queue.Stop()
	}
}

// NotifyPayment announces a recorded fee payment to the student account.
func (s *NotificationService) NotifyPayment(scope models.TenantScope, studentID string, amount float64, period models.Period) {
	s.enqueue(studentID, models.Notification{
		Channel:   models.NotificationSMS,
		Recipient: studentID,
		Subject:   "Fee payment received",
		Body:      fmt.Sprintf("Payment of %.2f received for %s.", amount, period),
	}, scope)
}

// NotifySalaryPayment announces a salary disbursement to the employee.
func (s *NotificationService) NotifySalaryPayment(scope models.TenantScope, employeeID string, amount float64, period models.Period) {
	s.enqueue(employeeID, models.Notification{
		Channel:   models.NotificationEmail,
		Recipient: employeeID,
		Subject:   "Salary payment processed",
		Body:      fmt.Sprintf("Salary payment of %.2f processed for %s.", amount, period),
	}, scope)
}

func (s *NotificationService) enqueue(recipientID string, notification models.Notification, scope models.TenantScope) {
	if !s.enabled {
		return
	}
	job := jobs.Job{
		ID:      fmt.Sprintf("notify-%s-%s", recipientID, notification.Channel),
		Type:    "notification",
		Payload: notification,
	}
	if err := s.queue.Enqueue(job); err != nil {
		s.logger.Sugar().Warnw("failed to enqueue notification",
			"recipient", recipientID,
			"campus_id", scope.CampusID,
			"error", err,
		)
	}
}
