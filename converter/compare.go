package converter

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"
)

// FieldDiff is one field that did not survive a round trip.
type FieldDiff struct {
	Field     string `json:"field"`
	Original  any    `json:"original"`
	Roundtrip any    `json:"roundtrip"`
}

// IgnoredFields are skipped by Compare: bookkeeping, identity and flags
// that a conversion is allowed to rewrite.
var IgnoredFields = []string{
	"_meta",
	"_fieldSources",
	"createTime",
	"modifiedTime",
	"lastUpdateTime",
	"id",
	"bookSourceUrl",
	"customButton",
	"eventListener",
	"enableMultiRoads",
	"chapterRoads",
	"chapterRoadName",
	"enabled",
	"enabledExplore",
	"enabledCookieJar",
	"enableUpload",
}

// ignored matches a listed field by key, or by a path at or under it.
func ignored(path, key string) bool {
	for _, f := range IgnoredFields {
		if key == f || path == f || strings.HasPrefix(path, f+".") {
			return true
		}
	}
	return false
}

func empty(v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && s == ""
}

// Compare reports every field where roundtrip differs from original. Nil
// and empty strings count as absent, and a number equals a string with
// the same text.
func Compare(original, roundtrip map[string]any) []FieldDiff {
	return compare(original, roundtrip, "")
}

func compare(original, roundtrip map[string]any, prefix string) []FieldDiff {
	keys := make(map[string]bool, len(original)+len(roundtrip))
	for k := range original {
		keys[k] = true
	}
	for k := range roundtrip {
		keys[k] = true
	}
	sorted := make([]string, 0, len(keys))
	for k := range keys {
		sorted = append(sorted, k)
	}
	sort.Strings(sorted)

	var diffs []FieldDiff
	for _, key := range sorted {
		path := key
		if prefix != "" {
			path = prefix + "." + key
		}
		if ignored(path, key) {
			continue
		}

		orig, rt := original[key], roundtrip[key]
		if empty(orig) && empty(rt) {
			continue
		}
		if empty(orig) || empty(rt) || reflect.TypeOf(orig) != reflect.TypeOf(rt) {
			if !numericMatch(orig, rt) {
				diffs = append(diffs, FieldDiff{Field: path, Original: orig, Roundtrip: rt})
			}
			continue
		}

		switch o := orig.(type) {
		case map[string]any:
			diffs = append(diffs, compare(o, rt.(map[string]any), path)...)
		case []any:
			if !jsonEqual(o, rt) {
				diffs = append(diffs, FieldDiff{Field: path, Original: orig, Roundtrip: rt})
			}
		default:
			if orig != rt {
				diffs = append(diffs, FieldDiff{Field: path, Original: orig, Roundtrip: rt})
			}
		}
	}
	return diffs
}

// numericMatch accepts a number and a string with the same text.
func numericMatch(a, b any) bool {
	switch a.(type) {
	case float64:
		if _, ok := b.(string); !ok {
			return false
		}
	case string:
		if _, ok := b.(float64); !ok {
			return false
		}
	default:
		return false
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

func jsonEqual(a, b any) bool {
	x, errA := json.Marshal(a)
	y, errB := json.Marshal(b)
	return errA == nil && errB == nil && string(x) == string(y)
}
