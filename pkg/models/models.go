package models

import (
	"regexp"
	"time"
)

// DateLayout is the storage layout of a slot's calendar day
const DateLayout = "2006-01-02"

// ClockLayout is the storage layout of slot start and end times
const ClockLayout = "15:04"

var clockPattern = regexp.MustCompile(`^([01]\d|2[0-3]):([0-5]\d)$`)

// ValidClock reports whether s is an HH:MM wall-clock time
func ValidClock(s string) bool {
	return clockPattern.MatchString(s)
}

// Skill is an entry of the shared skill catalog
type Skill struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// JobType is the work setup of a job
type JobType string

const (
	JobOnsite JobType = "onsite"
	JobRemote JobType = "remote"
	JobHybrid JobType = "hybrid"
)

// Job represents an open role owned by a recruiter
type Job struct {
	ID            int64     `json:"id"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	Requirements  string    `json:"requirements"`
	MinExperience float64   `json:"min_experience"`
	CTCMin        *float64  `json:"ctc_min,omitempty"` // lakhs per year
	CTCMax        *float64  `json:"ctc_max,omitempty"`
	Location      string    `json:"location"`
	JobType       JobType   `json:"job_type"`
	Skills        []Skill   `json:"skills"` // ordered as required
	RecruiterID   int64     `json:"recruiter_id"`
	CreatedAt     time.Time `json:"created_at"`
}

// SkillNames returns the names of the job's required skills in order
func (j *Job) SkillNames() []string {
	names := make([]string, 0, len(j.Skills))
	for _, s := range j.Skills {
		names = append(names, s.Name)
	}
	return names
}

// CandidateStatus is the pipeline stage a candidate occupies
type CandidateStatus string

const (
	CandidatePending     CandidateStatus = "pending"
	CandidateScreening   CandidateStatus = "screening"
	CandidateShortlisted CandidateStatus = "shortlisted"
	CandidateRejected    CandidateStatus = "rejected"
	CandidateHired       CandidateStatus = "hired"
)

// LocationPreference is a candidate's preferred work setup
type LocationPreference string

const (
	PreferOnsite   LocationPreference = "onsite"
	PreferRemote   LocationPreference = "remote"
	PreferHybrid   LocationPreference = "hybrid"
	PreferFlexible LocationPreference = "flexible"
)

// SkillRating is a candidate's 1-5 self rating of one skill
type SkillRating struct {
	SkillID int64 `json:"skill_id"`
	Rating  int   `json:"rating"`
}

// Candidate represents a recruiter-scoped candidate profile
type Candidate struct {
	ID                 int64              `json:"id"`
	Name               string             `json:"name"`
	Phone              string             `json:"phone"`
	Email              string             `json:"email"`
	About              string             `json:"about"`
	Experience         float64            `json:"experience"`
	CurrentCTC         *float64           `json:"current_ctc,omitempty"`
	ExpectedCTC        *float64           `json:"expected_ctc,omitempty"`
	NoticePeriod       string             `json:"notice_period"`
	LocationPreference LocationPreference `json:"location_preference"`
	Status             CandidateStatus    `json:"status"`
	Score              float64            `json:"score"`
	Source             string             `json:"source"` // form, manual
	JobID              *int64             `json:"job_id,omitempty"`
	Ratings            []SkillRating      `json:"ratings"`
	LastContact        *time.Time         `json:"last_contact,omitempty"`
	RecruiterID        int64              `json:"recruiter_id"`
	CreatedAt          time.Time          `json:"created_at"`
}

// Slot is a bookable interviewer time window
type Slot struct {
	ID            int64     `json:"id"`
	Date          time.Time `json:"date"` // calendar day, midnight in the store's location
	StartTime     string    `json:"start_time"`
	EndTime       string    `json:"end_time"`
	InterviewerID int64     `json:"interviewer_id"`
	IsAvailable   bool      `json:"is_available"`
	CreatedAt     time.Time `json:"created_at"`
}

// clockOn combines the slot day with an HH:MM value
func (s *Slot) clockOn(clock string) time.Time {
	t, err := time.Parse(ClockLayout, clock)
	if err != nil {
		return s.Date
	}
	y, m, d := s.Date.Date()
	return time.Date(y, m, d, t.Hour(), t.Minute(), 0, 0, s.Date.Location())
}

// StartsAt returns the instant the slot begins
func (s *Slot) StartsAt() time.Time { return s.clockOn(s.StartTime) }

// EndsAt returns the instant the slot ends
func (s *Slot) EndsAt() time.Time { return s.clockOn(s.EndTime) }

// AppointmentStatus is the lifecycle state of an appointment
type AppointmentStatus string

const (
	AppointmentBooked    AppointmentStatus = "booked"
	AppointmentCompleted AppointmentStatus = "completed"
	AppointmentCanceled  AppointmentStatus = "canceled"
)

// Valid reports whether the status is one of the known values
func (s AppointmentStatus) Valid() bool {
	switch s {
	case AppointmentBooked, AppointmentCompleted, AppointmentCanceled:
		return true
	}
	return false
}

// Appointment is a confirmed booking of a slot for a candidate and job
type Appointment struct {
	ID          int64             `json:"id"`
	JobID       int64             `json:"job_id"`
	CandidateID int64             `json:"candidate_id"`
	SlotID      int64             `json:"slot_id"`
	RecruiterID int64             `json:"recruiter_id"`
	MeetingLink string            `json:"meeting_link"`
	Status      AppointmentStatus `json:"status"`
	Notes       string            `json:"notes"`
	CreatedAt   time.Time         `json:"created_at"`

	// Populated by read queries that join the slot
	Slot *Slot `json:"slot,omitempty"`
}

// CallStatus is the state of a call queue entry
type CallStatus string

const (
	CallPending    CallStatus = "pending"
	CallInProgress CallStatus = "in_progress"
	CallCompleted  CallStatus = "completed"
	CallFailed     CallStatus = "failed"
)

// CallQueueEntry is an outbound-contact task for a candidate
type CallQueueEntry struct {
	ID            int64      `json:"id"`
	CandidateID   int64      `json:"candidate_id"`
	JobID         *int64     `json:"job_id,omitempty"`
	RecruiterID   int64      `json:"recruiter_id"`
	Status        CallStatus `json:"status"`
	Priority      int        `json:"priority"`
	Attempts      int        `json:"attempts"`
	MaxAttempts   int        `json:"max_attempts"`
	ScheduledTime time.Time  `json:"scheduled_time"`
	LastAttempt   *time.Time `json:"last_attempt,omitempty"`
	SessionID     string     `json:"session_id"`
	CallSid       string     `json:"call_sid"`
	ErrorMessage  string     `json:"error_message"`
	CreatedAt     time.Time  `json:"created_at"`
}

// Message is one role/content pair of a conversation transcript
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Session is the persisted state of one screening call
type Session struct {
	ID             string         `json:"session_id"`
	CandidateID    int64          `json:"candidate_id"`
	JobID          *int64         `json:"job_id,omitempty"`
	RecruiterID    int64          `json:"recruiter_id"`
	QueueEntryID   *int64         `json:"queue_entry_id,omitempty"`
	Stage          string         `json:"stage"`
	SkillIndex     int            `json:"skill_index"`
	TerminalReason string         `json:"terminal_reason,omitempty"`
	Step           int            `json:"step"`
	JobSkills      []Skill        `json:"job_skills"`
	Entities       map[string]any `json:"entities"`
	History        []Message      `json:"history"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// ConversationLog is an append-only audit record of one dialogue turn
type ConversationLog struct {
	ID          int64          `json:"id"`
	CandidateID int64          `json:"candidate_id"`
	SessionID   string         `json:"session_id"`
	Transcript  string         `json:"transcript"`
	Entities    map[string]any `json:"entities_extracted"`
	CreatedAt   time.Time      `json:"created_at"`
}
