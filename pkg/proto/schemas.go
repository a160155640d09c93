package proto

// RouteDecision is the manager's structured routing output: which actor acts
// next and why. Ephemeral - it is logged into the message log but never
// persisted on its own.
type RouteDecision struct {
	NextActor Actor  `json:"next_actor"`
	Reasoning string `json:"reasoning"`
}

// UserStory is a single user story with acceptance criteria.
type UserStory struct {
	ID                 string   `json:"id"`
	Title              string   `json:"title"`
	Description        string   `json:"description"`
	AcceptanceCriteria []string `json:"acceptance_criteria,omitempty"`
}

// BAResponse is the business analyst's structured analysis of a request.
type BAResponse struct {
	Title       string      `json:"title"`
	Description string      `json:"description"`
	UserStories []UserStory `json:"user_stories,omitempty"`
	// Questions carries clarifying questions when the requirements are
	// ambiguous; a non-empty list suspends the workflow.
	Questions []string `json:"questions,omitempty"`
	Priority  string   `json:"priority,omitempty"` // high, medium, low
}

// NeedsClarification reports whether the analysis is blocked on the user.
func (b *BAResponse) NeedsClarification() bool {
	return len(b.Questions) > 0
}

// FilePlan is a planned file with a summary, produced before writing.
type FilePlan struct {
	Path    string `json:"path"`
	Summary string `json:"summary"`
}

// GeneratedFile is a generated file with content.
type GeneratedFile struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// ImplementationResult is the developer's structured output.
type ImplementationResult struct {
	Success      bool              `json:"success"`
	Plan         []FilePlan        `json:"plan,omitempty"`
	Files        []GeneratedFile   `json:"files,omitempty"`
	Explanations map[string]string `json:"explanations,omitempty"`
	// CreatedFiles lists the paths actually written to the workspace.
	CreatedFiles []string `json:"created_files,omitempty"`
	Error        string   `json:"error,omitempty"`
}

// Risk levels used in a tester risk assessment.
const (
	RiskLow      = "low"
	RiskMedium   = "medium"
	RiskHigh     = "high"
	RiskCritical = "critical"
)

// RiskAssessment summarizes the tester's review of the implementation.
// Concerns are the unresolved defects; a non-empty list routes the workflow
// back to the developer.
type RiskAssessment struct {
	Level           string   `json:"level"`
	Summary         string   `json:"summary"`
	Concerns        []string `json:"concerns,omitempty"`
	Recommendations []string `json:"recommendations,omitempty"`
}

// GeneratedTest is one generated test file.
type GeneratedTest struct {
	Path    string `json:"path"`
	Content string `json:"content"`
	Purpose string `json:"purpose,omitempty"`
}

// TestPlan is the tester's structured output: generated tests plus a risk
// assessment over the reviewed artifacts.
type TestPlan struct {
	Title          string          `json:"title"`
	Description    string          `json:"description,omitempty"`
	Tests          []GeneratedTest `json:"tests,omitempty"`
	RiskAssessment RiskAssessment  `json:"risk_assessment"`
}

// HasUnresolvedDefects reports whether the review found defects that must go
// back to the developer before the workflow may finish.
func (p *TestPlan) HasUnresolvedDefects() bool {
	return len(p.RiskAssessment.Concerns) > 0
}

// SpecialistResult is the validated output of one specialist invocation.
// Exactly one of BA, Dev, Test is set, matching Role. Produced by the
// invocation adapter, consumed-and-merged exactly once by the supervisor.
type SpecialistResult struct {
	Role Actor                 `json:"role"`
	BA   *BAResponse           `json:"ba,omitempty"`
	Dev  *ImplementationResult `json:"dev,omitempty"`
	Test *TestPlan             `json:"test,omitempty"`

	// Artifacts are the workspace paths this invocation produced.
	Artifacts []string `json:"artifacts,omitempty"`

	// Summary is the one-line outcome appended to the message log.
	Summary string `json:"summary"`

	// Malformed holds validator-rejected payloads that preceded the accepted
	// one, in order, so the audit trail stays complete when recovery succeeds.
	Malformed []string `json:"-"`
}
