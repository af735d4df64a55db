package jobqueue

import (
	"encoding/json"
	"time"
)

// JobType defines the type of job
type JobType string

const (
	JobTypeEmailNotification JobType = "email_notification"
	JobTypePaymentReminder   JobType = "payment_reminder"
)

// JobStatus defines the status of a job
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusRetrying   JobStatus = "retrying"
)

// Notification kinds carried by email notification jobs
const (
	NotificationPaymentConfirmed      = "payment_confirmed"
	NotificationSubscriptionCancelled = "subscription_cancelled"
)

// Job represents a background job
type Job struct {
	ID          string                 `json:"id"`
	Type        JobType                `json:"type"`
	Status      JobStatus              `json:"status"`
	Payload     map[string]interface{} `json:"payload"`
	CreatedAt   time.Time              `json:"created_at"`
	UpdatedAt   time.Time              `json:"updated_at"`
	ProcessedAt *time.Time             `json:"processed_at,omitempty"`
	CompletedAt *time.Time             `json:"completed_at,omitempty"`
	ErrorMsg    string                 `json:"error_msg,omitempty"`
	RetryCount  int                    `json:"retry_count"`
	MaxRetries  int                    `json:"max_retries"`
}

// EmailNotificationJobPayload contains the payload for transactional email jobs
type EmailNotificationJobPayload struct {
	UserID         uint   `json:"user_id"`
	Kind           string `json:"kind"`
	PaymentID      uint   `json:"payment_id,omitempty"`
	SubscriptionID uint   `json:"subscription_id,omitempty"`
}

// ToMap converts the payload to a map for storage
func (p EmailNotificationJobPayload) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"user_id":         p.UserID,
		"kind":            p.Kind,
		"payment_id":      p.PaymentID,
		"subscription_id": p.SubscriptionID,
	}
}

// FromMap creates a payload from a map
func EmailNotificationJobPayloadFromMap(data map[string]interface{}) (*EmailNotificationJobPayload, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	var payload EmailNotificationJobPayload
	err = json.Unmarshal(jsonData, &payload)
	return &payload, err
}

// PaymentReminderJobPayload contains the payload for payment reminder jobs
type PaymentReminderJobPayload struct {
	PaymentID uint `json:"payment_id"`
}

// ToMap converts the payload to a map for storage
func (p PaymentReminderJobPayload) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"payment_id": p.PaymentID,
	}
}

// FromMap creates a payload from a map
func PaymentReminderJobPayloadFromMap(data map[string]interface{}) (*PaymentReminderJobPayload, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	var payload PaymentReminderJobPayload
	err = json.Unmarshal(jsonData, &payload)
	return &payload, err
}

// IsRetryable checks if the job can be retried
func (j *Job) IsRetryable() bool {
	return j.Status == JobStatusFailed && j.RetryCount < j.MaxRetries
}

// MarkAsProcessing updates the job status to processing
func (j *Job) MarkAsProcessing() {
	now := time.Now()
	j.Status = JobStatusProcessing
	j.UpdatedAt = now
	j.ProcessedAt = &now
}

// MarkAsCompleted updates the job status to completed
func (j *Job) MarkAsCompleted() {
	now := time.Now()
	j.Status = JobStatusCompleted
	j.UpdatedAt = now
	j.CompletedAt = &now
	j.ErrorMsg = ""
}

// MarkAsFailed updates the job status to failed
func (j *Job) MarkAsFailed(errorMsg string) {
	j.Status = JobStatusFailed
	j.UpdatedAt = time.Now()
	j.ErrorMsg = errorMsg
	j.RetryCount++
}

// MarkAsRetrying updates the job status to retrying
func (j *Job) MarkAsRetrying() {
	j.Status = JobStatusRetrying
	j.UpdatedAt = time.Now()
}
