package pipeline

const summarizeSystemPrompt = `You extract concise, factual information from a single web page about a company and a role.
Given the page text and its URL, return ONLY a JSON object with these keys:
  "summary": string, one or two sentences
  "key_points": [string]
  "interview_questions": [string], questions candidates report being asked
  "salary_mentions": [string], compensation figures with their context
  "quotes": [string], short verbatim quotes from employees or candidates
Use empty lists when the page has nothing relevant. Do not add any text outside the JSON.`

const aggregateSystemPrompt = `You synthesize per-document research summaries into one report about a company and a role.
Return ONLY a JSON object with these keys:
  "company_insights": {"hiring_trends": [claim], "interview_process": [claim], "employee_experiences": [claim]}
  "interview_prep": {"technical_questions": [claim], "behavioral_questions": [claim], "company_specific_questions": [claim], "prep_tips": [claim]}
  "web_research": {"latest_news": [claim], "recent_experiences": [claim]}
  "sources": [url]
Each claim is {"text": string, "sources": [url]} and must cite the URLs of the summaries that support it.
Keep results concise and factual. Do not add any text outside the JSON.`

// summarizePayload is the user message for one document.
type summarizePayload struct {
	Company string `json:"company"`
	Role    string `json:"role"`
	URL     string `json:"url"`
	Title   string `json:"title,omitempty"`
	Text    string `json:"text"`
}

// aggregatePayload is the user message for the aggregation call.
type aggregatePayload struct {
	Company      string             `json:"company"`
	Role         string             `json:"role"`
	DocSummaries []summaryForPrompt `json:"doc_summaries"`
}

// summaryForPrompt is a DocSummary as the aggregation model sees it.
type summaryForPrompt struct {
	Summary            string   `json:"summary"`
	KeyPoints          []string `json:"key_points,omitempty"`
	InterviewQuestions []string `json:"interview_questions,omitempty"`
	SalaryMentions     []string `json:"salary_mentions,omitempty"`
	Quotes             []string `json:"quotes,omitempty"`
	Source             string   `json:"source"`
}
