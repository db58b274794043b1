package automation

import (
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"mercator-hq/scanport/pkg/export"
)

// Validate checks the parts of a rule that can be checked statically.
// Condition types are not checked here: an unknown condition makes its rule
// never trigger.
func (r Rule) Validate() error {
	var problems []string
	if strings.TrimSpace(r.Name) == "" {
		problems = append(problems, "name is required")
	}
	for i, a := range r.Actions {
		switch a.Type {
		case ActionExportCSV, ActionExportPDF, ActionSendEmail, ActionUploadCloud, ActionWebhook:
		case "":
			problems = append(problems, fmt.Sprintf("action %d: type is required", i))
		default:
			problems = append(problems, fmt.Sprintf("action %d: %v: %q", i, ErrUnknownAction, a.Type))
		}
	}
	for i, c := range r.Conditions {
		if c.Type == "" {
			problems = append(problems, fmt.Sprintf("condition %d: type is required", i))
		}
	}

	if len(problems) > 0 {
		return &RuleError{RuleID: r.ID, Name: r.Name, Errors: problems}
	}
	return nil
}

// UnmarshalYAML decodes a rule, defaulting Enabled to true.
func (r *Rule) UnmarshalYAML(node *yaml.Node) error {
	type plain Rule
	p := plain{Enabled: true}
	if err := node.Decode(&p); err != nil {
		return err
	}
	*r = Rule(p)
	return nil
}

// UnmarshalJSON decodes a rule, defaulting Enabled to true.
func (r *Rule) UnmarshalJSON(data []byte) error {
	type plain Rule
	p := plain{Enabled: true}
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*r = Rule(p)
	return nil
}

// Built-in rule IDs. They match the IDs a rule file would derive from the
// rule names, so history and LastTriggered carry across processes.
const (
	RuleDailyBackup      = "rule-daily-backup"
	RuleLargeBatchExport = "rule-large-batch-export"
	RuleInventoryAlert   = "rule-product-inventory-alert"
)

// DefaultRules returns the built-in rule set: a daily 2 AM backup, a large
// batch export and a product inventory alert.
func DefaultRules() []Rule {
	backup := export.DefaultOptions()
	backup.IncludeMetadata = false

	return []Rule{
		{
			ID:          RuleDailyBackup,
			Name:        "Daily Backup",
			Description: "Automatically backup scan history daily",
			Enabled:     true,
			Conditions: []Condition{{
				Type:     ConditionTimeBased,
				Operator: OpScheduled,
				Schedule: &Schedule{Type: ScheduleDaily, Value: NewValue(2)},
			}},
			Actions: []Action{
				{Type: ActionExportCSV, Export: &ExportAction{Options: backup}},
				{Type: ActionUploadCloud, Cloud: &CloudAction{Service: "google_drive", Folder: "QR Scanner Backups"}},
			},
		},
		{
			ID:          RuleLargeBatchExport,
			Name:        "Large Batch Export",
			Description: "Export when batch scan exceeds 100 items",
			Enabled:     true,
			Conditions: []Condition{{
				Type:     ConditionDataCount,
				Operator: OpGreaterThan,
				Value:    NewValue(100),
			}},
			Actions: []Action{
				{Type: ActionExportCSV, Export: &ExportAction{Options: backup}},
			},
		},
		{
			ID:          RuleInventoryAlert,
			Name:        "Product Inventory Alert",
			Description: "Send email when products are scanned",
			Enabled:     true,
			Conditions: []Condition{{
				Type:     ConditionProductExists,
				Operator: OpHasProduct,
				Value:    NewValue(true),
			}},
			Actions: []Action{
				{Type: ActionSendEmail, Email: &EmailAction{
					Recipients: []string{"inventory@company.com"},
					Subject:    "New Products Scanned",
				}},
			},
		},
	}
}
