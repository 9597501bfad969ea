// Package extractor turns raw model output into a Result.
package extractor

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// AdsSentinel is the errorText a model returns for advertisements.
const AdsSentinel = "ADS"

// ErrDecode wraps every failure to decode the model's JSON.
var ErrDecode = errors.New("decode model output")

var fencedJSON = regexp.MustCompile("(?s)```json\\s*(\\{.*?\\})\\s*```")

type envelope struct {
	Data      json.RawMessage `json:"data"`
	ErrorText string          `json:"errorText"`
}

// LastFencedBlock returns the body of the last ```json block in raw. Models
// sometimes reason in earlier blocks before giving the final answer, so the
// last block always wins.
func LastFencedBlock(raw string) (string, bool) {
	matches := fencedJSON.FindAllStringSubmatch(raw, -1)
	if len(matches) == 0 {
		return "", false
	}
	return matches[len(matches)-1][1], true
}

// Extract decodes the model answer. Without a fenced block the whole text is
// decoded as JSON. An "ADS" answer is returned untouched as an advert result.
// A missing or empty first date yields an error result rather than a Go error;
// a Go error (wrapping ErrDecode) means the output was not usable JSON.
func Extract(raw string) (Result, error) {
	body, ok := LastFencedBlock(raw)
	if !ok {
		body = strings.TrimSpace(raw)
	}

	var env envelope
	if err := json.Unmarshal([]byte(body), &env); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	if env.ErrorText == AdsSentinel {
		return AdvertResult(json.RawMessage(body)), nil
	}

	data := env.Data
	if len(bytes.TrimSpace(data)) == 0 || bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		data = json.RawMessage("{}")
	}

	if rec := checkDates(data); rec != nil {
		return ErrorResult(rec), nil
	}

	var ev EventRecord
	if err := json.Unmarshal(data, &ev); err != nil {
		return Result{}, fmt.Errorf("%w: event: %v", ErrDecode, err)
	}
	return EventResult(&ev), nil
}

// checkDates inspects eventDate loosely, before the typed decode, so a
// malformed date is reported as a date problem rather than a decode failure.
func checkDates(data json.RawMessage) *ErrorRecord {
	var loose struct {
		EventDate json.RawMessage `json:"eventDate"`
	}
	if err := json.Unmarshal(data, &loose); err != nil {
		return NewError(InvalidDate, data)
	}

	var dates []json.RawMessage
	if len(loose.EventDate) > 0 {
		if err := json.Unmarshal(loose.EventDate, &dates); err != nil {
			return NewError(InvalidDate, data)
		}
	}
	if len(dates) == 0 {
		return NewError(DateNotFound, data)
	}

	var first map[string]any
	if err := json.Unmarshal(dates[0], &first); err != nil {
		return NewError(InvalidDate, data)
	}
	from, ok := first["from"].(string)
	if !ok || strings.TrimSpace(from) == "" {
		return NewError(InvalidDate, data)
	}
	return nil
}
