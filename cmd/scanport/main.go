// Scanport exports scanned items and runs automation rules over them.
//
// It encodes scan snapshots to CSV, JSON, HTML documents and spreadsheet
// workbooks, delivers them by email or to cloud storage, and evaluates
// rules that trigger exports, mails, uploads and webhooks.
//
// Usage:
//
//	# Export a snapshot to CSV
//	scanport export --format csv scans.json
//
//	# Export and mail the artifact
//	scanport export --format json --email ops@example.com scans.json
//
//	# Write the default rules to a file
//	scanport rules init -o rules.yaml
//
//	# Evaluate rules against a snapshot and run their actions
//	scanport rules evaluate --execute scans.json
//
//	# Run the scheduler, rule watcher and metrics endpoint
//	scanport serve --config /etc/scanport/config.yaml
package main

func main() {
	Execute()
}
