package automation

import (
	"fmt"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"mercator-hq/scanport/pkg/export"
)

// evaluateCondition dispatches a condition to its evaluator. A returned
// error means the condition could not be evaluated; non-numeric thresholds
// are not errors, they are simply not met.
func evaluateCondition(c Condition, items []export.Item, now time.Time) (bool, error) {
	switch c.Type {
	case ConditionDataCount:
		return evaluateCount(len(items), c.Operator, c.Value)
	case ConditionTimeBased:
		return evaluateTime(c, now)
	case ConditionDataType:
		return evaluateDataType(items, c)
	case ConditionProductExists:
		return evaluateProduct(items, c.Operator, c.Value)
	}
	return false, fmt.Errorf("%w: %q", ErrUnknownCondition, c.Type)
}

func evaluateCount(actual int, op Operator, v Value) (bool, error) {
	switch op {
	case OpGreaterThan, OpLessThan, OpEquals, OpGreaterThanEquals, OpLessThanEquals:
	default:
		return false, fmt.Errorf("%w: %q for data_count", ErrUnknownOperator, op)
	}

	expected, ok := v.Number()
	if !ok {
		return false, nil
	}
	n := float64(actual)

	switch op {
	case OpGreaterThan:
		return n > expected, nil
	case OpLessThan:
		return n < expected, nil
	case OpEquals:
		return n == expected, nil
	case OpGreaterThanEquals:
		return n >= expected, nil
	default:
		return n <= expected, nil
	}
}

func evaluateTime(c Condition, now time.Time) (bool, error) {
	switch c.Operator {
	case OpTimeOfDay:
		hour, ok := c.Value.Int()
		return ok && now.Hour() == hour, nil
	case OpDayOfWeek:
		day, ok := c.Value.Int()
		return ok && int(now.Weekday()) == day, nil
	case OpScheduled:
		if c.Schedule == nil {
			return false, nil
		}
		return checkSchedule(*c.Schedule, now)
	}
	return false, fmt.Errorf("%w: %q for time_based", ErrUnknownOperator, c.Operator)
}

func checkSchedule(s Schedule, now time.Time) (bool, error) {
	n, ok := s.Value.Int()
	if !ok {
		return false, nil
	}

	switch s.Type {
	case ScheduleHourly:
		return now.Minute() == 0, nil
	case ScheduleDaily:
		return now.Hour() == n, nil
	case ScheduleWeekly:
		return int(now.Weekday()) == n, nil
	}
	return false, fmt.Errorf("%w: schedule type %q", ErrUnknownOperator, s.Type)
}

func evaluateDataType(items []export.Item, c Condition) (bool, error) {
	switch c.Operator {
	case OpContains, OpAll, OpPercentage:
	default:
		return false, fmt.Errorf("%w: %q for data_type", ErrUnknownOperator, c.Operator)
	}
	if len(items) == 0 {
		return false, nil
	}

	target := c.Value
	if c.Operator == OpPercentage && !c.Target.IsZero() {
		target = c.Target
	}

	matching := 0
	for _, item := range items {
		if target.IsZero() {
			break
		}
		v, ok := project(item, c.Field)
		if ok && v == target.String() {
			matching++
		}
	}

	switch c.Operator {
	case OpContains:
		return matching > 0, nil
	case OpAll:
		return matching == len(items), nil
	default:
		return meetsPercentage(matching, len(items), c.Value), nil
	}
}

func evaluateProduct(items []export.Item, op Operator, v Value) (bool, error) {
	switch op {
	case OpHasProduct, OpAllHaveProducts, OpPercentageWithProducts:
	default:
		return false, fmt.Errorf("%w: %q for product_exists", ErrUnknownOperator, op)
	}
	if len(items) == 0 {
		return false, nil
	}

	with := 0
	for _, item := range items {
		if item.Product != nil {
			with++
		}
	}

	switch op {
	case OpHasProduct:
		return with > 0, nil
	case OpAllHaveProducts:
		return with == len(items), nil
	default:
		return meetsPercentage(with, len(items), v), nil
	}
}

// meetsPercentage reports matching/total*100 >= threshold. A non-numeric
// threshold is never met.
func meetsPercentage(matching, total int, threshold Value) bool {
	want, ok := threshold.Int()
	if !ok {
		return false
	}
	return float64(matching)/float64(total)*100 >= float64(want)
}

// project returns the named item field as text. An empty field selects the
// item type. Known fields are always present, even when empty; unknown
// names are looked up in the item metadata.
func project(item export.Item, field string) (string, bool) {
	var v string
	switch field {
	case "", "type":
		v = item.Type
	case "id":
		v = item.ID
	case "data":
		v = item.Data
	case "timestamp":
		v = item.Timestamp
	case "location":
		v = item.Location
	case "scanned_count", "scannedCount":
		return strconv.Itoa(item.Count()), true
	default:
		raw, ok := item.Metadata[field]
		if !ok || raw == nil {
			return "", false
		}
		return fmt.Sprint(raw), true
	}
	return v, true
}

// UnmarshalYAML accepts the scheduled shorthand where the schedule is given
// as the condition value: {type: daily, value: 2}.
func (c *Condition) UnmarshalYAML(node *yaml.Node) error {
	var raw struct {
		Type     ConditionType `yaml:"type"`
		Operator Operator      `yaml:"operator"`
		Value    yaml.Node     `yaml:"value"`
		Target   Value         `yaml:"target"`
		Field    string        `yaml:"field"`
		Schedule *Schedule     `yaml:"schedule"`
	}
	if err := node.Decode(&raw); err != nil {
		return err
	}

	out := Condition{
		Type:     raw.Type,
		Operator: raw.Operator,
		Target:   raw.Target,
		Field:    raw.Field,
		Schedule: raw.Schedule,
	}

	switch raw.Value.Kind {
	case 0:
	case yaml.MappingNode:
		if out.Schedule != nil {
			return fmt.Errorf("line %d: condition has both a schedule value and a schedule", raw.Value.Line)
		}
		var s Schedule
		if err := raw.Value.Decode(&s); err != nil {
			return err
		}
		out.Schedule = &s
	default:
		if err := raw.Value.Decode(&out.Value); err != nil {
			return err
		}
	}

	*c = out
	return nil
}
