package customdata

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/reoring/customdata/i18n"
)

// Issue codes (exported consts for IDE completion and type safety by convention)
const (
	CodeRequired              = "required"
	CodeRequiredWhen          = "required_when"
	CodeRequiredWhenEquals    = "required_when_equals"
	CodeInvalidType           = "invalid_type"
	CodeValidationFailed      = "validation_failed"
	CodeEmpty                 = "empty"
	CodeInvalidItemType       = "invalid_item_type"
	CodeNotInArray            = "not_in_array"
	CodeUncallable            = "uncallable"
	CodeHandlerMethodNotFound = "handler_method_not_found"
	CodeActionNoArgument      = "action_no_argument"
	CodeActionArgumentNotData = "action_argument_not_data"
	CodeKeySerialization      = "key_serialization"
	CodeUnsupportedType       = "unsupported_type"
	CodeNestingTooDeep        = "nesting_too_deep"
	CodeInvalidPayload        = "invalid_payload"
	CodeRecordNotFound        = "record_not_found"
	// Dependency temporary/unavailable errors
	CodeDependencyUnavailable = "dependency_unavailable"
)

// Error kinds. Every *Error unwraps to exactly one of these, so callers
// branch with errors.Is.
var (
	ErrMissingRequiredProperty     = errors.New("customdata: missing required property")
	ErrUnexpectedPropertyType      = errors.New("customdata: unexpected property type")
	ErrEmptyProperty               = errors.New("customdata: empty property")
	ErrUnexpectedArrayItemType     = errors.New("customdata: unexpected array item type")
	ErrUncallableValue             = errors.New("customdata: uncallable value")
	ErrActionHandlerMethodNotFound = errors.New("customdata: action handler method not found")
	ErrActionWithNoArgument        = errors.New("customdata: action with no argument")
	ErrActionArgumentNotCustomData = errors.New("customdata: action argument is not custom data")
	ErrKeySerialization            = errors.New("customdata: key serialization")
	ErrUnsupportedType             = errors.New("customdata: unsupported type")
	ErrNestingTooDeep              = errors.New("customdata: nesting too deep")
	ErrInvalidPayload              = errors.New("customdata: invalid payload")
	ErrRecordNotFound              = errors.New("customdata: record not found")
)

// Error is the concrete error raised by the engine.
type Error struct {
	Kind     error  // one of the Err* sentinels
	Code     string // i18n code the default message was rendered from
	Path     string // JSON Pointer of the failing field (for example: /items/2/city)
	Owner    string // data type that owns the field
	Field    string
	Index    int // array index for item failures, -1 otherwise
	Expected string
	Actual   string
	Message  string
	Cause    error
}

func (e *Error) Error() string {
	if e.Cause != nil && e.Message == "" {
		return e.Cause.Error()
	}
	return e.Message
}

// Unwrap exposes both the kind sentinel and the underlying cause.
func (e *Error) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Cause}
}

// Issue projects the error onto the Issue model.
func (e *Error) Issue() Issue {
	params := map[string]any{}
	if e.Owner != "" {
		params["owner"] = e.Owner
	}
	if e.Expected != "" {
		params["expected"] = e.Expected
	}
	if e.Actual != "" {
		params["got"] = e.Actual
	}
	if e.Index >= 0 {
		params["index"] = e.Index
	}
	return Issue{Path: e.Path, Code: e.Code, Message: e.Message, Cause: e.Cause, Params: params}
}

// rebase moves the error under a parent field, the way nested failures are
// reported as failures of the field that holds them.
func (e *Error) rebase(segments ...string) *Error {
	cp := *e
	prefix := "/" + strings.Join(segments, "/")
	if cp.Path == "" || cp.Path == "/" {
		cp.Path = prefix
	} else {
		cp.Path = prefix + cp.Path
	}
	return &cp
}

// AsError extracts *Error from err using errors.As.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// errorInfo collects what newError needs; zero values are omitted from the
// message data.
type errorInfo struct {
	kind     error
	code     string
	owner    string
	field    string
	item     bool // index is meaningful
	index    int
	expected string
	actual   string
	message  string // overrides the i18n message when set
	cause    error
	extra    map[string]string
}

func newError(s errorInfo) *Error {
	data := map[string]string{
		"field":    s.field,
		"owner":    s.owner,
		"expected": s.expected,
		"actual":   s.actual,
	}
	index := -1
	if s.item {
		index = s.index
		data["index"] = strconv.Itoa(s.index)
	}
	for k, v := range s.extra {
		data[k] = v
	}
	msg := s.message
	if msg == "" {
		msg = i18n.T(s.code, data)
	}
	path := ""
	if s.field != "" {
		path = "/" + s.field
		if s.item {
			path += "/" + strconv.Itoa(s.index)
		}
	}
	return &Error{
		Kind:     s.kind,
		Code:     s.code,
		Path:     path,
		Owner:    s.owner,
		Field:    s.field,
		Index:    index,
		Expected: s.expected,
		Actual:   s.actual,
		Message:  msg,
		Cause:    s.cause,
	}
}

// Issue represents a single validation entry.
type Issue struct {
	Path    string `json:"path"`          // JSON Pointer (for example: /items/2/price).
	Code    string `json:"code"`          // One of the codes listed above.
	Message string `json:"message"`
	Cause   error  `json:"-"`             // Optional: underlying error.
	// Params carries structured parameters (e.g., {"expected":"string", "got":"integer"})
	// for i18n and observability.
	Params map[string]any `json:"params,omitempty"`
}

// Issues is a collection of validation errors that implements error.
type Issues []Issue

// Error summarizes the first few issues.
func (iss Issues) Error() string {
	if len(iss) == 0 {
		return ""
	}
	const maxShown = 3
	b := &strings.Builder{}
	n := len(iss)
	lim := n
	if lim > maxShown {
		lim = maxShown
	}
	for i := 0; i < lim; i++ {
		if i > 0 {
			b.WriteString("; ")
		}
		it := iss[i]
		// e.g. invalid_type at /path
		fmt.Fprintf(b, "%s at %s", it.Code, it.Path)
	}
	if n > lim {
		fmt.Fprintf(b, "; ... (total %d)", n)
	}
	return b.String()
}

// AppendIssues appends issues to the destination, initializing the slice when
// needed.
func AppendIssues(dst Issues, more ...Issue) Issues {
	if dst == nil {
		dst = Issues{}
	}
	dst = append(dst, more...)
	return dst
}

// AsIssues extracts Issues from an error using errors.As internally.
func AsIssues(err error) (Issues, bool) {
	if err == nil {
		return nil, false
	}
	var iss Issues
	if errors.As(err, &iss) {
		return iss, true
	}
	return nil, false
}

// ToIssues converts any error into Issues. Engine errors keep their path and
// code; foreign errors become a single invalid_payload issue.
func ToIssues(err error) Issues {
	if err == nil {
		return nil
	}
	if iss, ok := AsIssues(err); ok {
		return iss
	}
	if e, ok := AsError(err); ok {
		return AppendIssues(nil, e.Issue())
	}
	return AppendIssues(nil, Issue{Path: "/", Code: CodeInvalidPayload, Message: err.Error(), Cause: err})
}
