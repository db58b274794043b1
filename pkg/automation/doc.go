// Package automation evaluates declarative rules against scan data and runs
// the actions of the rules that trigger.
//
// A rule triggers when it is enabled and every condition holds. Conditions
// inspect the item count (data_count), the clock (time_based), item field
// values (data_type) and product presence (product_exists). Actions export
// through an Exporter, mail a summary, upload a JSON snapshot or POST to a
// webhook. Action failures are reported per action and never stop the
// remaining actions.
//
// Basic usage:
//
//	engine := automation.New(
//	    automation.WithExporter(orch),
//	    automation.WithMailer(sender),
//	)
//	for _, r := range automation.DefaultRules() {
//	    engine.AddRule(r)
//	}
//	runs, err := engine.RunOnce(ctx, items, automation.EvalContext{Trigger: "manual"})
package automation
