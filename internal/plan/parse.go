package plan

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Parse decodes EXPLAIN (FORMAT JSON) output. It accepts the driver-level
// array form, a single {"Plan": ...} entry, or a bare plan node. Missing or
// mistyped scalar fields decode as zero values; a root or child that is not
// an object is an error.
func Parse(data []byte) (ExplainOutput, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var payload any
	if err := dec.Decode(&payload); err != nil {
		return ExplainOutput{}, fmt.Errorf("invalid EXPLAIN JSON: %w", err)
	}

	entry, err := firstEntry(payload)
	if err != nil {
		return ExplainOutput{}, err
	}

	rootVal, wrapped := entry["Plan"]
	if !wrapped {
		if _, ok := entry["Node Type"]; !ok {
			return ExplainOutput{}, errors.New("invalid EXPLAIN JSON: expected \"Plan\" or \"Node Type\" at root")
		}
		rootVal = entry
	}

	rootObj, err := asObject(rootVal)
	if err != nil {
		return ExplainOutput{}, fmt.Errorf("invalid EXPLAIN JSON: plan root: %w", err)
	}

	root, err := parseNode(rootObj, "0")
	if err != nil {
		return ExplainOutput{}, err
	}

	out := ExplainOutput{Plan: root}
	if wrapped {
		out.PlanningTime = asFloat(entry["Planning Time"])
		out.ExecutionTime = asFloat(entry["Execution Time"])
	}
	return out, nil
}

func firstEntry(payload any) (map[string]any, error) {
	switch v := payload.(type) {
	case []any:
		if len(v) == 0 {
			return nil, errors.New("empty EXPLAIN output")
		}
		obj, err := asObject(v[0])
		if err != nil {
			return nil, fmt.Errorf("invalid EXPLAIN JSON: entry: %w", err)
		}
		return obj, nil
	case map[string]any:
		return v, nil
	default:
		return nil, fmt.Errorf("invalid EXPLAIN JSON: unexpected top-level type %T", payload)
	}
}

func parseNode(data map[string]any, path string) (PlanNode, error) {
	node := PlanNode{
		NodeType:           asString(data["Node Type"]),
		ParentRelationship: asString(data["Parent Relationship"]),
		StartupCost:        asFloat(data["Startup Cost"]),
		TotalCost:          asFloat(data["Total Cost"]),
		PlanRows:           asInt64(data["Plan Rows"]),
		ActualTotalTime:    asFloat(data["Actual Total Time"]),
		ActualLoops:        asInt64(data["Actual Loops"]),
		Schema:             asString(data["Schema"]),
		RelationName:       asString(data["Relation Name"]),
		Alias:              asString(data["Alias"]),
		IndexName:          asString(data["Index Name"]),
		IndexCond:          asString(data["Index Cond"]),
		Filter:             asString(data["Filter"]),
		JoinType:           asString(data["Join Type"]),
		HashCond:           asString(data["Hash Cond"]),
		SortKey:            asStringSlice(data["Sort Key"]),
	}

	if v, ok := data["Actual Rows"]; ok && isNumber(v) {
		actual := asInt64(v)
		node.ActualRows = &actual
	}

	children, _ := data["Plans"].([]any)
	for i, childVal := range children {
		childPath := fmt.Sprintf("%s.%d", path, i)
		childObj, err := asObject(childVal)
		if err != nil {
			return PlanNode{}, fmt.Errorf("invalid EXPLAIN JSON: plan node %s: %w", childPath, err)
		}
		child, err := parseNode(childObj, childPath)
		if err != nil {
			return PlanNode{}, err
		}
		node.Plans = append(node.Plans, child)
	}

	return node, nil
}

func asObject(val any) (map[string]any, error) {
	obj, ok := val.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("expected object, got %T", val)
	}
	return obj, nil
}

func isNumber(val any) bool {
	switch v := val.(type) {
	case json.Number:
		return true
	case string:
		_, err := strconv.ParseFloat(v, 64)
		return err == nil
	}
	return false
}

func asString(val any) string {
	switch v := val.(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	default:
		return ""
	}
}

// Sort Key is a list in FORMAT JSON but some producers emit a single string.
func asStringSlice(val any) []string {
	switch v := val.(type) {
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s := asString(item); s != "" {
				out = append(out, s)
			}
		}
		return out
	case string:
		if strings.TrimSpace(v) == "" {
			return nil
		}
		return []string{v}
	default:
		return nil
	}
}

func asFloat(val any) float64 {
	switch v := val.(type) {
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0
		}
		return f
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}

func asInt64(val any) int64 {
	switch v := val.(type) {
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return i
		}
		f, err := v.Float64()
		if err != nil {
			return 0
		}
		return int64(math.Round(f))
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0
		}
		return int64(math.Round(f))
	default:
		return 0
	}
}
