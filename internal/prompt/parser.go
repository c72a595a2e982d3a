package prompt

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/laptop-mgfd/dialogue-core/internal/core"
	"github.com/laptop-mgfd/dialogue-core/internal/model"
)

const maxRepairAttempts = 4

var thinkBlock = regexp.MustCompile(`(?s)<think>.*?</think>`)

// unquotedKey matches a bare identifier immediately followed by a colon,
// used to quote object keys the model forgot to quote.
var unquotedKey = regexp.MustCompile(`([{,]\s*)([A-Za-z_][A-Za-z0-9_]*)(\s*:)`)

// trailingComma matches a comma immediately before a closing brace/bracket.
var trailingComma = regexp.MustCompile(`,\s*([}\]])`)

// rawReply is the shape the LLM is instructed to emit; Table is left as
// json.RawMessage because it may arrive in any of the three accepted shapes.
type rawReply struct {
	Summary string          `json:"summary"`
	Table   json.RawMessage `json:"table"`
}

// Parse implements I's parse pipeline: think-block stripping, brace
// extraction, strict decode with bounded repair, shape validation, and
// table canonicalization. targetNames fixes the comparison column order.
func Parse(reply string, targetNames []string, maxCellWidth int) (model.Response, error) {
	reply = thinkBlock.ReplaceAllString(reply, "")

	candidate, ok := extractBraces(reply)
	if !ok {
		return model.Response{}, core.New(core.KindParseFailure, "no JSON object found in LLM reply")
	}

	raw, err := decodeWithRepair(candidate)
	if err != nil {
		return model.Response{}, core.Wrap(core.KindParseFailure, "LLM reply is not valid JSON after repair", err)
	}

	if raw.Summary == "" {
		return model.Response{}, core.New(core.KindParseFailure, "LLM reply missing summary")
	}

	table, err := canonicalizeTable(raw.Table, targetNames, maxCellWidth)
	if err != nil {
		return model.Response{}, err
	}

	return model.Response{Summary: raw.Summary, Table: table}, nil
}

// extractBraces returns the substring from the first '{' to the last
// matching '}', or false if no '{' exists.
func extractBraces(s string) (string, bool) {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start == -1 || end == -1 || end < start {
		return "", false
	}
	return s[start : end+1], true
}

// decodeWithRepair attempts strict decoding, then applies a bounded,
// idempotent repair pipeline on failure.
func decodeWithRepair(candidate string) (rawReply, error) {
	var out rawReply
	if err := json.Unmarshal([]byte(candidate), &out); err == nil {
		return out, nil
	}

	repaired := candidate
	var lastErr error
	for attempt := 0; attempt < maxRepairAttempts; attempt++ {
		repaired = repairPass(repaired)
		if err := json.Unmarshal([]byte(repaired), &out); err == nil {
			return out, nil
		} else {
			lastErr = err
		}
	}
	return rawReply{}, lastErr
}

// repairPass applies the small, bounded set of repairs described in
// spec.md §4.I. Each transformation is idempotent and safe to reapply.
func repairPass(s string) string {
	s = unquotedKey.ReplaceAllString(s, `$1"$2"$3`)
	s = strings.ReplaceAll(s, "'", `"`)
	s = trailingComma.ReplaceAllString(s, "$1")
	s = collapseDuplicateBraces(s)
	return s
}

// collapseDuplicateBraces removes a repeated opening and closing brace at
// the very start and end of the candidate, e.g. "{{...}}" -> "{...}", a
// defect some models produce when double-wrapping. Braces inside the
// object (such as the "}}" closing a nested object) are left alone.
func collapseDuplicateBraces(s string) string {
	t := strings.TrimSpace(s)
	for strings.HasPrefix(t, "{{") && strings.HasSuffix(t, "}}") {
		t = t[1 : len(t)-1]
	}
	return t
}

// canonicalizeTable converts any of the three accepted shapes into the
// canonical list-of-row-maps form, filling missing cells with "N/A" and
// truncating overlong values to maxCellWidth.
func canonicalizeTable(raw json.RawMessage, targetNames []string, maxCellWidth int) ([]model.Row, error) {
	if len(raw) == 0 {
		return []model.Row{}, nil
	}

	var asArray []map[string]any
	if err := json.Unmarshal(raw, &asArray); err == nil {
		return finalizeRows(fromCanonical(asArray), targetNames, maxCellWidth), nil
	}

	var asObject map[string]any
	if err := json.Unmarshal(raw, &asObject); err != nil {
		return nil, core.New(core.KindTableShapeError, "table is neither a row array nor an object")
	}

	if rows, ok := fromTransposed(asObject); ok {
		return finalizeRows(rows, targetNames, maxCellWidth), nil
	}
	if row, ok := fromSingleRow(asObject); ok {
		return finalizeRows([]model.Row{row}, targetNames, maxCellWidth), nil
	}

	return nil, core.New(core.KindTableShapeError, "unrecognized table shape")
}

// fromCanonical converts [{feature, name1, name2, ...}, ...] into Rows.
func fromCanonical(arr []map[string]any) []model.Row {
	rows := make([]model.Row, 0, len(arr))
	for _, m := range arr {
		row := model.Row{}
		for k, v := range m {
			row[k] = toString(v)
		}
		rows = append(rows, row)
	}
	return rows
}

// fromTransposed converts {Feature: [f1, f2, ...], name1: [v11, v12, ...]}
// into Rows by pivoting column-wise.
func fromTransposed(obj map[string]any) ([]model.Row, bool) {
	featureKey, features, ok := findFeatureList(obj)
	if !ok {
		return nil, false
	}

	columns := make(map[string][]any)
	maxLen := len(features)
	for k, v := range obj {
		if k == featureKey {
			continue
		}
		arr, ok := v.([]any)
		if !ok {
			return nil, false
		}
		columns[k] = arr
		if len(arr) > maxLen {
			maxLen = len(arr)
		}
	}
	if len(columns) == 0 {
		return nil, false
	}

	rows := make([]model.Row, 0, maxLen)
	for i := 0; i < maxLen; i++ {
		row := model.Row{"feature": indexOrNA(features, i)}
		for col, vals := range columns {
			row[col] = indexOrNA(vals, i)
		}
		rows = append(rows, row)
	}
	return rows, true
}

// fromSingleRow converts {feature: "...", name1: "...", ...} into a
// single-element Row slice.
func fromSingleRow(obj map[string]any) (model.Row, bool) {
	_, isList := obj["feature"].([]any)
	if isList {
		return nil, false
	}
	row := model.Row{}
	for k, v := range obj {
		if _, ok := v.([]any); ok {
			return nil, false
		}
		if _, ok := v.(map[string]any); ok {
			return nil, false
		}
		row[k] = toString(v)
	}
	return row, true
}

func findFeatureList(obj map[string]any) (string, []any, bool) {
	for _, key := range []string{"Feature", "feature"} {
		if v, ok := obj[key]; ok {
			if arr, ok := v.([]any); ok {
				return key, arr, true
			}
		}
	}
	return "", nil, false
}

func indexOrNA(arr []any, i int) string {
	if i >= len(arr) {
		return "N/A"
	}
	return toString(arr[i])
}

func toString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case nil:
		return "N/A"
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return "N/A"
		}
		return string(b)
	}
}

// finalizeRows restricts each row to "feature" plus one key per entry of
// targetNames (a Row is a map, so it carries no key order), fills missing
// cells with "N/A", and truncates overlong values.
func finalizeRows(rows []model.Row, targetNames []string, maxCellWidth int) []model.Row {
	out := make([]model.Row, len(rows))
	for i, r := range rows {
		row := model.Row{"feature": truncate(valueOr(r, "feature"), maxCellWidth)}
		for _, name := range targetNames {
			row[name] = truncate(valueOr(r, name), maxCellWidth)
		}
		out[i] = row
	}
	return out
}

func valueOr(r model.Row, key string) string {
	if v, ok := r[key]; ok && v != "" {
		return v
	}
	return "N/A"
}

func truncate(s string, width int) string {
	r := []rune(s)
	if width <= 0 || len(r) <= width {
		return s
	}
	if width <= 1 {
		return string(r[:width])
	}
	return string(r[:width-1]) + "…"
}
