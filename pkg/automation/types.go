package automation

import (
	"time"

	"mercator-hq/scanport/pkg/export"
)

// ConditionType selects a condition evaluator.
type ConditionType string

const (
	ConditionDataCount     ConditionType = "data_count"
	ConditionTimeBased     ConditionType = "time_based"
	ConditionDataType      ConditionType = "data_type"
	ConditionProductExists ConditionType = "product_exists"
)

// Operator is the comparison a condition applies. The valid set depends on
// the condition type.
type Operator string

// data_count operators.
const (
	OpGreaterThan       Operator = "greater_than"
	OpLessThan          Operator = "less_than"
	OpEquals            Operator = "equals"
	OpGreaterThanEquals Operator = "greater_than_equals"
	OpLessThanEquals    Operator = "less_than_equals"
)

// time_based operators.
const (
	OpTimeOfDay Operator = "time_of_day"
	OpDayOfWeek Operator = "day_of_week"
	OpScheduled Operator = "scheduled"
)

// data_type operators.
const (
	OpContains   Operator = "contains"
	OpAll        Operator = "all"
	OpPercentage Operator = "percentage"
)

// product_exists operators.
const (
	OpHasProduct             Operator = "has_product"
	OpAllHaveProducts        Operator = "all_have_products"
	OpPercentageWithProducts Operator = "percentage_with_products"
)

// ScheduleType is the period of a scheduled time condition.
type ScheduleType string

const (
	ScheduleHourly ScheduleType = "hourly"
	ScheduleDaily  ScheduleType = "daily"
	ScheduleWeekly ScheduleType = "weekly"
)

// ActionType selects an action executor.
type ActionType string

const (
	ActionExportCSV   ActionType = "export_csv"
	ActionExportPDF   ActionType = "export_pdf"
	ActionSendEmail   ActionType = "send_email"
	ActionUploadCloud ActionType = "upload_cloud"
	ActionWebhook     ActionType = "webhook"
)

// Rule pairs AND-combined conditions with an ordered action list.
type Rule struct {
	ID          string      `json:"id" yaml:"id,omitempty"`
	Name        string      `json:"name" yaml:"name"`
	Description string      `json:"description,omitempty" yaml:"description,omitempty"`
	Enabled     bool        `json:"enabled" yaml:"enabled"`
	Conditions  []Condition `json:"conditions" yaml:"conditions"`
	Actions     []Action    `json:"actions" yaml:"actions"`

	CreatedAt     time.Time  `json:"createdAt" yaml:"created_at,omitempty"`
	LastTriggered *time.Time `json:"lastTriggered,omitempty" yaml:"last_triggered,omitempty"`
}

// Clone returns a deep copy of r.
func (r Rule) Clone() Rule {
	out := r
	if r.Conditions != nil {
		out.Conditions = make([]Condition, len(r.Conditions))
		for i, c := range r.Conditions {
			out.Conditions[i] = c.clone()
		}
	}
	if r.Actions != nil {
		out.Actions = make([]Action, len(r.Actions))
		for i, a := range r.Actions {
			out.Actions[i] = a.clone()
		}
	}
	if r.LastTriggered != nil {
		t := *r.LastTriggered
		out.LastTriggered = &t
	}
	return out
}

// Condition is a boolean predicate over the data set and the clock.
type Condition struct {
	Type     ConditionType `json:"type" yaml:"type"`
	Operator Operator      `json:"operator" yaml:"operator"`

	// Value is the comparison threshold or target.
	Value Value `json:"value,omitzero" yaml:"value,omitempty"`

	// Target is the value items are matched against by the data_type
	// percentage operator, whose Value is the threshold. When empty the
	// Value doubles as the target.
	Target Value `json:"target,omitzero" yaml:"target,omitempty"`

	// Field projects an item field for data_type conditions. Empty
	// compares the item type.
	Field string `json:"field,omitempty" yaml:"field,omitempty"`

	// Schedule is used by the scheduled operator.
	Schedule *Schedule `json:"schedule,omitempty" yaml:"schedule,omitempty"`
}

func (c Condition) clone() Condition {
	out := c
	if c.Schedule != nil {
		s := *c.Schedule
		out.Schedule = &s
	}
	return out
}

// Schedule is a periodic time check.
type Schedule struct {
	Type ScheduleType `json:"type" yaml:"type"`

	// Value is the hour (daily) or weekday with Sunday as 0 (weekly).
	Value Value `json:"value" yaml:"value"`
}

// Action is a side effect executed when a rule triggers. Exactly the config
// record matching Type is consulted.
type Action struct {
	Type ActionType `json:"type" yaml:"type"`

	Export  *ExportAction  `json:"export,omitempty" yaml:"export,omitempty"`
	Email   *EmailAction   `json:"email,omitempty" yaml:"email,omitempty"`
	Cloud   *CloudAction   `json:"cloud,omitempty" yaml:"cloud,omitempty"`
	Webhook *WebhookAction `json:"webhook,omitempty" yaml:"webhook,omitempty"`
}

func (a Action) clone() Action {
	out := a
	if a.Export != nil {
		e := *a.Export
		e.Options.CustomHeaders = append([]string(nil), a.Export.Options.CustomHeaders...)
		out.Export = &e
	}
	if a.Email != nil {
		e := *a.Email
		e.Recipients = append([]string(nil), a.Email.Recipients...)
		out.Email = &e
	}
	if a.Cloud != nil {
		c := *a.Cloud
		out.Cloud = &c
	}
	if a.Webhook != nil {
		w := *a.Webhook
		if a.Webhook.Headers != nil {
			w.Headers = make(map[string]string, len(a.Webhook.Headers))
			for k, v := range a.Webhook.Headers {
				w.Headers[k] = v
			}
		}
		out.Webhook = &w
	}
	return out
}

// ExportAction configures export_csv and export_pdf.
type ExportAction struct {
	Options export.Options `json:"options" yaml:",inline"`
}

// EmailAction configures send_email.
type EmailAction struct {
	Recipients []string `json:"recipients" yaml:"recipients"`
	Subject    string   `json:"subject,omitempty" yaml:"subject,omitempty"`
}

// CloudAction configures upload_cloud.
type CloudAction struct {
	Service string `json:"service,omitempty" yaml:"service,omitempty"`
	Folder  string `json:"folder,omitempty" yaml:"folder,omitempty"`
}

// WebhookAction configures webhook.
type WebhookAction struct {
	URL     string            `json:"url" yaml:"url"`
	Headers map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
}

// ActionResult is the outcome of one action. Result holds the typed outcome
// on success; Error holds the message on failure.
type ActionResult struct {
	ActionType ActionType `json:"action"`
	Success    bool       `json:"success"`
	Result     any        `json:"result,omitempty"`
	Error      string     `json:"error,omitempty"`

	err error
}

// Err returns the underlying error of a failed action.
func (r ActionResult) Err() error {
	return r.err
}

// ExportOutcome is the result of an export action.
type ExportOutcome struct {
	Format    export.Format       `json:"format"`
	ItemCount int                 `json:"itemCount"`
	Artifact  *export.ArtifactRef `json:"artifact,omitempty"`
	ByteSize  int64               `json:"byteSize,omitempty"`
}

// EmailOutcome is the result of a send_email action.
type EmailOutcome struct {
	Recipients []string `json:"recipients"`
	ItemCount  int      `json:"itemCount"`
	MessageIDs []string `json:"messageIds,omitempty"`
}

// UploadOutcome is the result of an upload_cloud action.
type UploadOutcome struct {
	Service   string `json:"service"`
	ItemCount int    `json:"itemCount"`
	Location  string `json:"location,omitempty"`
}

// WebhookOutcome is the result of a webhook action. Body is the decoded
// JSON response, or a status record when the response has no JSON body.
type WebhookOutcome struct {
	StatusCode int `json:"statusCode"`
	Body       any `json:"body"`
}

// EvalContext carries per-pass evaluation inputs.
type EvalContext struct {
	// Now overrides the engine clock for this pass.
	Now time.Time

	// Trigger names what started the pass ("manual", "schedule", ...).
	Trigger string
}

// Summary is an overview of the engine's rules.
type Summary struct {
	Total    int           `json:"total"`
	Enabled  int           `json:"enabled"`
	Disabled int           `json:"disabled"`
	Rules    []RuleSummary `json:"rules"`
}

// RuleSummary describes one rule in a Summary.
type RuleSummary struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	Enabled       bool       `json:"enabled"`
	Conditions    int        `json:"conditions"`
	Actions       int        `json:"actions"`
	LastTriggered *time.Time `json:"lastTriggered,omitempty"`
}

// RuleRun is the outcome of one triggered rule in a RunOnce pass.
type RuleRun struct {
	Rule    Rule           `json:"rule"`
	Results []ActionResult `json:"results"`
}

// Succeeded reports whether every action succeeded.
func (r RuleRun) Succeeded() bool {
	for _, res := range r.Results {
		if !res.Success {
			return false
		}
	}
	return true
}
