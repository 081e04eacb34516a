package schedule

import (
	"time"
)

// Date builds a normalized date value (midnight UTC).  All dates flowing
// through the engine are normalized this way so equality checks are safe.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// Normalize truncates a timestamp to its date at midnight UTC.
func Normalize(t time.Time) time.Time {
	return Date(t.Year(), t.Month(), t.Day())
}

// ParseDateValue interprets an attribute-store value as a date.  Supported
// encodings: time.Time, *time.Time, and the serialized string form.
func ParseDateValue(v interface{}) (time.Time, bool) {
	switch val := v.(type) {
	case time.Time:
		return Normalize(val), true
	case *time.Time:
		if val == nil {
			return time.Time{}, false
		}
		return Normalize(*val), true
	case string:
		if val == "" || val == NullValue {
			return time.Time{}, false
		}
		t, err := time.Parse(DateFormat, val)
		if err != nil {
			return time.Time{}, false
		}
		return t, true
	default:
		return time.Time{}, false
	}
}

// Truthy mirrors the attribute store's loose truthiness: nil, false, empty
// strings, zero numbers, and empty collections are falsy; everything else
// is truthy.
func Truthy(v interface{}) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	case string:
		return val != "" && val != NullValue
	case int:
		return val != 0
	case int64:
		return val != 0
	case float64:
		return val != 0
	case []interface{}:
		return len(val) > 0
	case map[string]interface{}:
		return len(val) > 0
	case time.Time:
		return !val.IsZero()
	case *time.Time:
		return val != nil && !val.IsZero()
	default:
		return true
	}
}

// NumericDays interprets an attribute value as a whole day count for
// auxiliary calculation offsets.  Non-numeric values report false and are
// ignored by the caller.
func NumericDays(v interface{}) (int, bool) {
	switch val := v.(type) {
	case int:
		return val, true
	case int64:
		return int(val), true
	case float64:
		return int(val), true
	default:
		return 0, false
	}
}

// EvalEnv is the evaluation environment for one scheduling or preview run:
// the project snapshot, an optional preview attribute overlay, and the
// deadline dates resolved so far (persisted rows merged with this run's
// results).
type EvalEnv struct {
	Project *Project

	// Preview overlays hypothetical attribute values over the project's
	// persisted data.  Empty for commit runs.
	Preview map[string]interface{}

	// Dates maps deadline ID to the currently-known resolved date.
	Dates map[string]*time.Time
}

// NewEvalEnv builds an environment over the given project.
func NewEvalEnv(p *Project, preview map[string]interface{}) *EvalEnv {
	return &EvalEnv{
		Project: p,
		Preview: preview,
		Dates:   make(map[string]*time.Time),
	}
}

// AttributeValue reads one attribute value; the preview overlay takes
// precedence over persisted data.  Missing keys report false.
func (e *EvalEnv) AttributeValue(identifier string) (interface{}, bool) {
	if e.Preview != nil {
		if v, ok := e.Preview[identifier]; ok {
			return v, true
		}
	}
	if e.Project == nil || e.Project.AttributeData == nil {
		return nil, false
	}
	v, ok := e.Project.AttributeData[identifier]
	return v, ok
}

// DeadlineDate resolves another deadline's date within this run.  When the
// base deadline is bound to an attribute, a preview value for that attribute
// takes precedence over the stored date.
func (e *EvalEnv) DeadlineDate(d *Deadline) *time.Time {
	if d == nil {
		return nil
	}
	if d.Attribute != nil && e.Preview != nil {
		if v, ok := e.Preview[d.Attribute.Identifier]; ok {
			if t, valid := ParseDateValue(v); valid {
				return &t
			}
		}
	}
	return e.Dates[d.ID]
}

// SetDeadlineDate records a resolved date for the rest of the run.
func (e *EvalEnv) SetDeadlineDate(id string, date *time.Time) {
	e.Dates[id] = date
}

// CheckCondition evaluates one condition attribute: truthy attribute data
// wins, then the static-property fallback on the project itself.
func (e *EvalEnv) CheckCondition(attr *Attribute) bool {
	if attr == nil {
		return false
	}
	if v, ok := e.AttributeValue(attr.Identifier); ok && Truthy(v) {
		return true
	}
	if attr.StaticProperty != "" {
		if v, ok := e.Project.StaticProperty(attr.StaticProperty); ok {
			return Truthy(v)
		}
	}
	return false
}

// Confirmed reports whether the deadline is locked by its confirmation
// attribute in the current data (preview overlay included).
func (e *EvalEnv) Confirmed(d *Deadline) bool {
	if d.ConfirmationAttribute == nil {
		return false
	}
	v, ok := e.AttributeValue(d.ConfirmationAttribute.Identifier)
	return ok && Truthy(v)
}
