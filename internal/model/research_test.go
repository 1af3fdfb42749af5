package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStringList_Unmarshal(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want StringList
	}{
		{"array of strings", `["a", "b"]`, StringList{"a", "b"}},
		{"single string", `"only one"`, StringList{"only one"}},
		{"empty string", `""`, StringList{}},
		{"null", `null`, StringList{}},
		{"mixed values", `["a", 3, null, {"question": "Why us?"}]`, StringList{"a", "3", "Why us?"}},
		{"object item without text", `[{"foo": "bar"}]`, StringList{}},
		{"bare object", `{"text": "inline"}`, StringList{"inline"}},
		{"bare number", `42`, StringList{"42"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var got StringList
			require.NoError(t, json.Unmarshal([]byte(tt.in), &got))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStringList_MarshalNilAsEmptyArray(t *testing.T) {
	t.Parallel()
	b, err := json.Marshal(DocSummary{Summary: "s", Source: "https://x"})
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"summary": "s",
		"key_points": [],
		"interview_questions": [],
		"salary_mentions": [],
		"quotes": [],
		"source": "https://x"
	}`, string(b))
}

func TestClaim_Unmarshal(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want Claim
	}{
		{"bare string", `"Hiring is up"`, Claim{Text: "Hiring is up", Sources: []string{}}},
		{"canonical", `{"text": "t", "sources": ["u1", "u2"]}`, Claim{Text: "t", Sources: []string{"u1", "u2"}}},
		{"claim + source", `{"claim": "c", "source": "u1"}`, Claim{Text: "c", Sources: []string{"u1"}}},
		{"question + urls", `{"question": "q", "urls": ["u"]}`, Claim{Text: "q", Sources: []string{"u"}}},
		{"no sources", `{"summary": "s"}`, Claim{Text: "s", Sources: []string{}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var got Claim
			require.NoError(t, json.Unmarshal([]byte(tt.in), &got))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClaimList_SkipsUnusableItems(t *testing.T) {
	t.Parallel()
	var got ClaimList
	require.NoError(t, json.Unmarshal([]byte(`["a", 7, {"foo": 1}, {"text": "b"}]`), &got))
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].Text)
	assert.Equal(t, "b", got[1].Text)
}

func TestClaimList_SingleObject(t *testing.T) {
	t.Parallel()
	var got ClaimList
	require.NoError(t, json.Unmarshal([]byte(`{"text": "solo", "sources": "u"}`), &got))
	assert.Equal(t, ClaimList{{Text: "solo", Sources: []string{"u"}}}, got)
}

func TestAggregatedReport_DecodeLenient(t *testing.T) {
	t.Parallel()
	raw := `{
		"company_insights": {
			"hiring_trends": [{"text": "Growing backend team", "sources": ["https://a"]}],
			"interview_process": "Three rounds"
		},
		"interview_prep": {"technical_questions": ["Design a rate limiter"]},
		"sources": ["https://a"]
	}`
	var r AggregatedReport
	require.NoError(t, json.Unmarshal([]byte(raw), &r))
	r.Normalize()

	assert.Equal(t, "Growing backend team", r.CompanyInsights.HiringTrends[0].Text)
	assert.Equal(t, []string{"https://a"}, r.CompanyInsights.HiringTrends[0].Sources)
	assert.Equal(t, ClaimList{{Text: "Three rounds", Sources: []string{}}}, r.CompanyInsights.InterviewProcess)
	assert.Equal(t, "Design a rate limiter", r.InterviewPrep.TechnicalQuestions[0].Text)
	assert.NotNil(t, r.WebResearch.LatestNews)
	assert.NotNil(t, r.CompanyInsights.EmployeeExperiences)
}

func TestEmptyReport_HasFullShape(t *testing.T) {
	t.Parallel()
	b, err := json.Marshal(EmptyReport())
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"company_insights": {"hiring_trends": [], "interview_process": [], "employee_experiences": []},
		"interview_prep": {"technical_questions": [], "behavioral_questions": [], "company_specific_questions": [], "prep_tips": []},
		"web_research": {"latest_news": [], "recent_experiences": []},
		"sources": []
	}`, string(b))
}

func TestFetchRecord_OK(t *testing.T) {
	t.Parallel()
	assert.True(t, FetchRecord{URL: "u", Text: "body"}.OK())
	assert.False(t, FetchRecord{URL: "u", Text: "  \n"}.OK())
	assert.False(t, FetchRecord{URL: "u", Text: "body", Error: "HTTP 404"}.OK())
}

func TestReportUpdate(t *testing.T) {
	t.Parallel()
	r := EmptyReport()
	r.Sources = []string{"https://a"}
	u := r.Update()

	require.NotNil(t, u.CompanyInsights)
	require.NotNil(t, u.InterviewPrep)
	require.NotNil(t, u.WebResearch)
	assert.Equal(t, []string{"https://a"}, u.Sources)
	assert.Nil(t, u.AgentStage)
	assert.Nil(t, u.Status)
}
