package export

// ValidateItems checks every item and returns a *ValidationError listing all
// offending indices, or nil. An empty set is reported as ErrNoData.
func ValidateItems(items []Item) error {
	if len(items) == 0 {
		return &ValidationError{Cause: ErrNoData}
	}
	return CheckItems(items)
}

// CheckItems validates items like ValidateItems but accepts an empty set.
func CheckItems(items []Item) error {
	var issues []ItemIssue
	for i, item := range items {
		if item.ID == "" {
			issues = append(issues, ItemIssue{Index: i, Message: "is missing ID"})
		}
		if item.Data == "" {
			issues = append(issues, ItemIssue{Index: i, Message: "is missing data field"})
		}
		if item.Timestamp != "" {
			if _, err := ParseTimestamp(item.Timestamp); err != nil {
				issues = append(issues, ItemIssue{Index: i, Message: "has invalid timestamp"})
			}
		}
	}

	if len(issues) > 0 {
		return &ValidationError{Issues: issues}
	}
	return nil
}
