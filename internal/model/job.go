package model

import "time"

type JobStatus string

const (
	JobQueued    JobStatus = "queued"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobCancelled JobStatus = "cancelled"
	JobFailed    JobStatus = "failed"
)

func (s JobStatus) String() string { return string(s) }

func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobCancelled || s == JobFailed
}

// BatchJob tracks an asynchronous batch handed to the dispatch worker.
type BatchJob struct {
	ID               string     `db:"id"                json:"id"`
	AccountID        int64      `db:"account_id"        json:"account_id"`
	Message          string     `db:"message"           json:"message"`
	SenderID         string     `db:"sender_id"         json:"sender_id"`
	Recipients       []byte     `db:"recipients"        json:"-"` // JSON array of E.164 numbers
	Status           JobStatus  `db:"status"            json:"status"`
	CancelRequested  bool       `db:"cancel_requested"  json:"cancel_requested"`
	Total            int        `db:"total"             json:"total"`
	Sent             int        `db:"sent"              json:"sent"`
	Failed           int        `db:"failed"            json:"failed"`
	Invalid          int        `db:"invalid"           json:"invalid"`
	CreditsEstimated int64      `db:"credits_estimated" json:"credits_estimated"`
	CreditsSpent     int64      `db:"credits_spent"     json:"credits_spent"`
	LastError        *string    `db:"last_error"        json:"last_error,omitempty"`
	CreatedAt        time.Time  `db:"created_at"        json:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at"        json:"updated_at"`
	StartedAt        *time.Time `db:"started_at"        json:"started_at,omitempty"`
	FinishedAt       *time.Time `db:"finished_at"       json:"finished_at,omitempty"`
}

// JobProgress carries the counters written when a job finishes.
type JobProgress struct {
	Sent         int
	Failed       int
	Invalid      int
	CreditsSpent int64
	LastError    string
}

// Envelope is the payload published to Kafka (via Debezium outbox SMT).
type Envelope struct {
	JobID     string `json:"job_id"`
	AccountID int64  `json:"account_id"`
}

type Notification struct {
	ID        int64     `db:"id"`
	AccountID int64     `db:"account_id"`
	Kind      string    `db:"kind"`
	Title     string    `db:"title"`
	Body      string    `db:"body"`
	CreatedAt time.Time `db:"created_at"`
}
