package model

import "time"

// InsightsStatus is the coarse status of the research pipeline on a job.
type InsightsStatus string

const (
	InsightsStatusQueued     InsightsStatus = "queued"
	InsightsStatusProcessing InsightsStatus = "processing"
	InsightsStatusProcessed  InsightsStatus = "processed"
	InsightsStatusError      InsightsStatus = "error"
)

// AgentStage is the fine-grained stage marker of the research pipeline.
type AgentStage string

const (
	AgentStageQueued      AgentStage = "queued"
	AgentStageProcessing  AgentStage = "processing"
	AgentStageDiscovering AgentStage = "discovering"
	AgentStageFetching    AgentStage = "fetching"
	AgentStageSummarizing AgentStage = "summarizing"
	AgentStageAggregating AgentStage = "aggregating"
	AgentStageProcessed   AgentStage = "processed"
	AgentStageError       AgentStage = "error"
)

// IsTerminal reports whether the stage admits no further transitions.
func (s AgentStage) IsTerminal() bool {
	return s == AgentStageProcessed || s == AgentStageError
}

// JobStatusCancelled is the advisory marker written by the cancel endpoint.
// It lives in the job-level status field, which the research pipeline never
// reads or writes.
const JobStatusCancelled = "cancelled"

// AgentProgress holds counters an observer can poll while a run is in flight.
type AgentProgress struct {
	URLsDiscovered int `json:"urls_discovered"`
	PagesFetched   int `json:"pages_fetched"`
	FetchFailures  int `json:"fetch_failures"`
	Documents      int `json:"documents"`
	Summarized     int `json:"summarized"`
}

// Job is the document the research pipeline reads inputs from and writes
// progress and results to. It is owned by the job store.
type Job struct {
	ID             string `json:"id"`
	CompanyName    string `json:"company_name"`
	Position       string `json:"position"`
	JobDescription string `json:"job_description,omitempty"`

	// Status belongs to the upload/job-fit flow. The research pipeline
	// leaves it alone.
	Status string `json:"status,omitempty"`

	InsightsStatus  InsightsStatus   `json:"insights_status,omitempty"`
	AgentStage      AgentStage       `json:"agent_stage,omitempty"`
	AgentProgress   *AgentProgress   `json:"agent_progress,omitempty"`
	AgentError      string           `json:"agent_error,omitempty"`
	CompanyInsights *CompanyInsights `json:"company_insights,omitempty"`
	InterviewPrep   *InterviewPrep   `json:"interview_prep,omitempty"`
	WebResearch     *WebResearch     `json:"web_research,omitempty"`
	Sources         []string         `json:"sources,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewJobInput is what a caller supplies to create a job.
type NewJobInput struct {
	CompanyName    string `json:"company_name"`
	Position       string `json:"position"`
	JobDescription string `json:"job_description,omitempty"`
}

// JobUpdate is a partial, merge-style update. Nil fields are not written.
type JobUpdate struct {
	Status          *string          `json:"status,omitempty"`
	InsightsStatus  *InsightsStatus  `json:"insights_status,omitempty"`
	AgentStage      *AgentStage      `json:"agent_stage,omitempty"`
	AgentProgress   *AgentProgress   `json:"agent_progress,omitempty"`
	AgentError      *string          `json:"agent_error,omitempty"`
	CompanyInsights *CompanyInsights `json:"company_insights,omitempty"`
	InterviewPrep   *InterviewPrep   `json:"interview_prep,omitempty"`
	WebResearch     *WebResearch     `json:"web_research,omitempty"`
	Sources         []string         `json:"sources,omitempty"`
}

// StageUpdate builds the update for a stage transition. Terminal stages also
// move the coarse insights status.
func StageUpdate(stage AgentStage) JobUpdate {
	u := JobUpdate{AgentStage: &stage}
	var status InsightsStatus
	switch stage {
	case AgentStageQueued:
		status = InsightsStatusQueued
	case AgentStageProcessed:
		status = InsightsStatusProcessed
	case AgentStageError:
		status = InsightsStatusError
	default:
		status = InsightsStatusProcessing
	}
	u.InsightsStatus = &status
	return u
}

// Apply merges u into j in place. Store implementations without a native
// document merge use it, and tests use it to predict stored state.
func (j *Job) Apply(u JobUpdate) {
	if u.Status != nil {
		j.Status = *u.Status
	}
	if u.InsightsStatus != nil {
		j.InsightsStatus = *u.InsightsStatus
	}
	if u.AgentStage != nil {
		j.AgentStage = *u.AgentStage
	}
	if u.AgentProgress != nil {
		p := *u.AgentProgress
		j.AgentProgress = &p
	}
	if u.AgentError != nil {
		j.AgentError = *u.AgentError
	}
	if u.CompanyInsights != nil {
		j.CompanyInsights = u.CompanyInsights
	}
	if u.InterviewPrep != nil {
		j.InterviewPrep = u.InterviewPrep
	}
	if u.WebResearch != nil {
		j.WebResearch = u.WebResearch
	}
	if u.Sources != nil {
		j.Sources = u.Sources
	}
}
