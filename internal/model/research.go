package model

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"
)

// FetchRecord is the outcome of fetching one discovered URL. A failed fetch
// has Error set and Text empty.
type FetchRecord struct {
	URL        string `json:"url"`
	StatusCode int    `json:"status_code"`
	Title      string `json:"title,omitempty"`
	Text       string `json:"text,omitempty"`
	Error      string `json:"error,omitempty"`
}

// OK reports whether the record carries usable text.
func (r FetchRecord) OK() bool {
	return r.Error == "" && strings.TrimSpace(r.Text) != ""
}

// Document is a fetched page that survived dedup.
type Document struct {
	URL   string `json:"url"`
	Title string `json:"title,omitempty"`
	Text  string `json:"text"`
}

// DocSummary is the structured summary of one document. Source is always
// the document URL.
type DocSummary struct {
	Summary            string     `json:"summary"`
	KeyPoints          StringList `json:"key_points"`
	InterviewQuestions StringList `json:"interview_questions"`
	SalaryMentions     StringList `json:"salary_mentions"`
	Quotes             StringList `json:"quotes"`
	Source             string     `json:"source"`
	Error              string     `json:"error,omitempty"`
}

// StringList decodes from a string, an array of strings or an array of
// mixed values, and always encodes as an array.
type StringList []string

// UnmarshalJSON implements json.Unmarshaler.
func (l *StringList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*l = StringList{}
		return nil
	}

	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		if strings.TrimSpace(single) == "" {
			*l = StringList{}
		} else {
			*l = StringList{single}
		}
		return nil
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		// Some other scalar or object.
		*l = StringList{}
		if s := textOf(data); s != "" {
			*l = StringList{s}
		}
		return nil
	}

	out := make(StringList, 0, len(raw))
	for _, item := range raw {
		if s := textOf(item); s != "" {
			out = append(out, s)
		}
	}
	*l = out
	return nil
}

// MarshalJSON implements json.Marshaler.
func (l StringList) MarshalJSON() ([]byte, error) {
	if l == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]string(l))
}

// textKeys are the object keys models use for the text of a list item.
var textKeys = []string{"text", "claim", "summary", "question", "title", "point", "quote", "value"}

// textOf renders one JSON value as a string. Objects resolve to their most
// text-like field.
func textOf(data json.RawMessage) string {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err == nil {
		for _, k := range textKeys {
			if v, ok := obj[k]; ok {
				if s := textOf(v); s != "" {
					return s
				}
			}
		}
		return ""
	}
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "null" {
		return ""
	}
	return trimmed
}

// Claim is a statement in the aggregated report with its supporting URLs.
type Claim struct {
	Text    string   `json:"text"`
	Sources []string `json:"sources"`
}

var sourceKeys = []string{"sources", "source", "urls", "url"}

// UnmarshalJSON accepts a bare string or an object using any of the common
// text and source key spellings.
func (c *Claim) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*c = Claim{Text: strings.TrimSpace(s), Sources: []string{}}
		return nil
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return eris.Wrap(err, "model: claim")
	}

	claim := Claim{Sources: []string{}}
	for _, k := range textKeys {
		if v, ok := obj[k]; ok {
			if t := textOf(v); t != "" {
				claim.Text = t
				break
			}
		}
	}
	for _, k := range sourceKeys {
		v, ok := obj[k]
		if !ok {
			continue
		}
		var list StringList
		if err := json.Unmarshal(v, &list); err == nil && len(list) > 0 {
			claim.Sources = []string(list)
			break
		}
	}
	*c = claim
	return nil
}

// MarshalJSON implements json.Marshaler.
func (c Claim) MarshalJSON() ([]byte, error) {
	type alias Claim
	a := alias(c)
	if a.Sources == nil {
		a.Sources = []string{}
	}
	return json.Marshal(a)
}

// ClaimList decodes from an array of claims, a single claim or null.
type ClaimList []Claim

// UnmarshalJSON implements json.Unmarshaler.
func (l *ClaimList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*l = ClaimList{}
		return nil
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		var one Claim
		if err := json.Unmarshal(data, &one); err != nil {
			return eris.Wrap(err, "model: claim list")
		}
		*l = ClaimList{}
		if one.Text != "" {
			*l = ClaimList{one}
		}
		return nil
	}
	out := make(ClaimList, 0, len(raw))
	for _, item := range raw {
		var c Claim
		if err := json.Unmarshal(item, &c); err != nil {
			continue
		}
		if c.Text != "" {
			out = append(out, c)
		}
	}
	*l = out
	return nil
}

// MarshalJSON implements json.Marshaler.
func (l ClaimList) MarshalJSON() ([]byte, error) {
	if l == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]Claim(l))
}

// CompanyInsights groups what the report says about the company.
type CompanyInsights struct {
	HiringTrends        ClaimList `json:"hiring_trends"`
	InterviewProcess    ClaimList `json:"interview_process"`
	EmployeeExperiences ClaimList `json:"employee_experiences"`
}

// InterviewPrep groups interview preparation material.
type InterviewPrep struct {
	TechnicalQuestions       ClaimList `json:"technical_questions"`
	BehavioralQuestions      ClaimList `json:"behavioral_questions"`
	CompanySpecificQuestions ClaimList `json:"company_specific_questions"`
	PrepTips                 ClaimList `json:"prep_tips"`
}

// WebResearch groups recent news and experiences found on the web.
type WebResearch struct {
	LatestNews        ClaimList `json:"latest_news"`
	RecentExperiences ClaimList `json:"recent_experiences"`
}

// AggregatedReport is the terminal output of a research run.
type AggregatedReport struct {
	CompanyInsights CompanyInsights `json:"company_insights"`
	InterviewPrep   InterviewPrep   `json:"interview_prep"`
	WebResearch     WebResearch     `json:"web_research"`
	Sources         []string        `json:"sources"`
}

// EmptyReport returns a report with every list present and empty.
func EmptyReport() AggregatedReport {
	var r AggregatedReport
	r.Normalize()
	return r
}

// Normalize replaces nil lists with empty ones so the report always has its
// full shape.
func (r *AggregatedReport) Normalize() {
	for _, l := range []*ClaimList{
		&r.CompanyInsights.HiringTrends,
		&r.CompanyInsights.InterviewProcess,
		&r.CompanyInsights.EmployeeExperiences,
		&r.InterviewPrep.TechnicalQuestions,
		&r.InterviewPrep.BehavioralQuestions,
		&r.InterviewPrep.CompanySpecificQuestions,
		&r.InterviewPrep.PrepTips,
		&r.WebResearch.LatestNews,
		&r.WebResearch.RecentExperiences,
	} {
		if *l == nil {
			*l = ClaimList{}
		}
		for i := range *l {
			if (*l)[i].Sources == nil {
				(*l)[i].Sources = []string{}
			}
		}
	}
	if r.Sources == nil {
		r.Sources = []string{}
	}
}

// Update returns the job update that persists the report.
func (r AggregatedReport) Update() JobUpdate {
	ci, ip, wr := r.CompanyInsights, r.InterviewPrep, r.WebResearch
	sources := r.Sources
	if sources == nil {
		sources = []string{}
	}
	return JobUpdate{
		CompanyInsights: &ci,
		InterviewPrep:   &ip,
		WebResearch:     &wr,
		Sources:         sources,
	}
}
