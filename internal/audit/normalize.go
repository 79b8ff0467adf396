package audit

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"
	"unicode/utf8"
)

// Placeholder marks a field value that could not be converted into a
// serializable form. The rest of the record is still emitted.
const Placeholder = "!unserializable"

// timeLayout matches the storage format used across the audit trail.
const timeLayout = "2006-01-02 15:04:05"

// maxValueLength bounds stored string values so a single large field cannot
// bloat the audit table.
const maxValueLength = 1000

// maxNormalizeDepth bounds recursion through nested collections so cyclic
// values terminate with a placeholder instead of overflowing the stack.
const maxNormalizeDepth = 8

// Normalize converts an arbitrary domain value into an audit-safe,
// serializable representation. It never panics for legal domain values:
// temporal values become formatted strings, related entities become
// "Kind#id" reference tokens, collections are normalized element-wise and
// unknown objects collapse to their type name.
func Normalize(value any) any {
	return normalize(value, 0)
}

// NormalizeMap normalizes every field of a snapshot, masking secret-bearing
// keys and recovering per-field from normalization panics.
func NormalizeMap(fields map[string]any) map[string]any {
	if fields == nil {
		return nil
	}

	normalized := make(map[string]any, len(fields))
	for key, value := range fields {
		if isSecretField(key) {
			normalized[key] = "***"
			continue
		}
		normalized[key] = normalizeField(value)
	}
	return normalized
}

// FieldChange holds the before and after representation of one field.
type FieldChange struct {
	Old any
	New any
}

// ChangeSet maps changed field names to their before/after values.
type ChangeSet map[string]FieldChange

// Fields returns the changed field names in stable order.
func (cs ChangeSet) Fields() []string {
	fields := make([]string, 0, len(cs))
	for field := range cs {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return fields
}

// Contains reports whether the named field changed.
func (cs ChangeSet) Contains(field string) bool {
	_, ok := cs[field]
	return ok
}

// Diff compares two snapshots of the same entity and returns the fields that
// actually changed, excluding the kind's ignored fields. Values are compared
// in normalized form so equivalent representations do not register as
// changes. An empty result means the update carries no audit value.
func Diff(kind Kind, oldValues, newValues map[string]any) ChangeSet {
	changes := ChangeSet{}

	for field, newValue := range newValues {
		if IsIgnoredField(kind, field) {
			continue
		}

		oldNormalized := normalizeField(oldValues[field])
		newNormalized := normalizeField(newValue)
		if reflect.DeepEqual(oldNormalized, newNormalized) {
			continue
		}

		// Secret-bearing fields register as changed without exposing either
		// value.
		if isSecretField(field) {
			changes[field] = FieldChange{Old: "***", New: "***"}
			continue
		}

		changes[field] = FieldChange{Old: oldNormalized, New: newNormalized}
	}

	return changes
}

// normalizeField shields the record from a single field that cannot be
// normalized: the offending field becomes a placeholder, nothing is raised.
func normalizeField(value any) (result any) {
	defer func() {
		if recover() != nil {
			result = Placeholder
		}
	}()
	return normalize(value, 0)
}

func normalize(value any, depth int) any {
	if value == nil {
		return nil
	}
	if depth > maxNormalizeDepth {
		return Placeholder
	}

	switch v := value.(type) {
	case time.Time:
		return v.UTC().Format(timeLayout)
	case *time.Time:
		if v == nil {
			return nil
		}
		return v.UTC().Format(timeLayout)
	case Recordable:
		return fmt.Sprintf("%s#%d", v.AuditKind(), v.AuditID())
	case string:
		return truncate(v)
	case bool, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return v
	}

	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return nil
		}
		return normalize(rv.Elem().Interface(), depth+1)
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return nil
		}
		items := make([]any, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			items[i] = normalize(rv.Index(i).Interface(), depth+1)
		}
		return items
	case reflect.Map:
		if rv.IsNil() {
			return nil
		}
		entries := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			entries[fmt.Sprintf("%v", iter.Key().Interface())] = normalize(iter.Value().Interface(), depth+1)
		}
		return entries
	case reflect.Struct:
		// Unknown objects without an identity accessor collapse to their
		// type name; recursing into bodies risks unbounded graphs.
		return rv.Type().Name()
	default:
		return truncate(fmt.Sprintf("%v", value))
	}
}

// truncate cuts oversized values on a rune boundary so stored strings stay
// valid UTF-8.
func truncate(s string) string {
	if len(s) <= maxValueLength {
		return s
	}
	cut := maxValueLength
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "... (truncated)"
}

func isSecretField(key string) bool {
	lower := strings.ToLower(key)
	return strings.Contains(lower, "password") || strings.Contains(lower, "token") || strings.Contains(lower, "secret")
}
