package extractor

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// DateRange is one occurrence of an event. Both ends are ISO-8601 strings as
// returned by the model; the validator parses From.
type DateRange struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Location is where the event takes place.
type Location struct {
	Name    string `json:"name"`
	Address string `json:"address"`
}

// AgeLimit is kept as a string ("0", "6", "12", "16", "18"). Models often
// answer with a bare number, so both forms decode.
type AgeLimit string

func (a *AgeLimit) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		*a = ""
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*a = AgeLimit(strings.TrimSuffix(strings.TrimSpace(v), "+"))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("age limit: %w", err)
	}
	*a = AgeLimit(n.String())
	return nil
}

// Price accepts a JSON number or a numeric string.
type Price float64

func (p *Price) UnmarshalJSON(b []byte) error {
	var f float64
	if err := json.Unmarshal(b, &f); err == nil {
		*p = Price(f)
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("price: %w", err)
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return fmt.Errorf("price %q: %w", s, err)
	}
	*p = Price(f)
	return nil
}

// EventRecord is the structured form of one announcement. Field names match
// the schema the model is prompted with.
type EventRecord struct {
	Title       string      `json:"eventTitle"`
	Description string      `json:"eventDescription"`
	Dates       []DateRange `json:"eventDate"`
	Prices      []Price     `json:"eventPrice"`
	Categories  []string    `json:"eventCategories"`
	Themes      []string    `json:"eventThemes"`
	AgeLimit    AgeLimit    `json:"eventAgeLimit"`
	Location    Location    `json:"eventLocation"`
	Link        string      `json:"linkSource"`
}

// ErrorText names a terminal pipeline failure.
type ErrorText string

const (
	DateNotFound ErrorText = "DATE_NOT_FOUND"
	JSONNotFound ErrorText = "JSON_NOT_FOUND"
	InvalidDate  ErrorText = "INVALID_DATE"
	NotParsed    ErrorText = "NOT_PARSED"
	DateInPast   ErrorText = "DATE_IN_PAST"
	ModelFailed  ErrorText = "MODEL_ERROR"
)

var errorCodes = map[ErrorText]string{
	DateNotFound: "1",
	JSONNotFound: "2",
	InvalidDate:  "3",
	NotParsed:    "4",
	DateInPast:   "5",
	ModelFailed:  "6",
}

// Code returns the numeric code reported to the backend.
func (t ErrorText) Code() string {
	if c, ok := errorCodes[t]; ok {
		return c
	}
	return "0"
}

// ErrorRecord is the failure branch of a Result.
type ErrorRecord struct {
	Code    string          `json:"errorCode"`
	Text    ErrorText       `json:"errorText"`
	Details json.RawMessage `json:"errorDetails,omitempty"`
}

// NewError builds an ErrorRecord. details is marshalled as-is; raw JSON may be
// passed as json.RawMessage. Values that fail to marshal are stored as their
// string form.
func NewError(text ErrorText, details any) *ErrorRecord {
	rec := &ErrorRecord{Code: text.Code(), Text: text}
	switch d := details.(type) {
	case nil:
	case json.RawMessage:
		if len(d) > 0 && json.Valid(d) {
			rec.Details = d
		}
	default:
		b, err := json.Marshal(d)
		if err != nil {
			b, _ = json.Marshal(fmt.Sprint(d))
		}
		rec.Details = b
	}
	return rec
}

// Kind tags which branch of a Result is populated.
type Kind int

const (
	KindEvent Kind = iota
	KindError
	KindAdvert
)

func (k Kind) String() string {
	switch k {
	case KindEvent:
		return "event"
	case KindError:
		return "error"
	case KindAdvert:
		return "advert"
	}
	return "unknown"
}

// Result is exactly one of an event, an error, or the model's raw
// advertisement answer.
type Result struct {
	Kind   Kind
	Event  *EventRecord
	Error  *ErrorRecord
	Advert json.RawMessage
}

func EventResult(ev *EventRecord) Result {
	return Result{Kind: KindEvent, Event: ev}
}

func ErrorResult(rec *ErrorRecord) Result {
	return Result{Kind: KindError, Error: rec}
}

func AdvertResult(raw json.RawMessage) Result {
	return Result{Kind: KindAdvert, Advert: raw}
}

// MarshalJSON writes only the populated branch, which is the shape the sync
// backend expects in the "result" field.
func (r Result) MarshalJSON() ([]byte, error) {
	switch r.Kind {
	case KindEvent:
		return json.Marshal(r.Event)
	case KindError:
		return json.Marshal(r.Error)
	case KindAdvert:
		if len(r.Advert) == 0 {
			return []byte("null"), nil
		}
		return r.Advert, nil
	}
	return nil, fmt.Errorf("marshal result: unknown kind %d", r.Kind)
}
