package extractor

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validEvent = `{"data": {"eventTitle": "Джаз", "eventDate": [{"from": "2031-03-14T20:00:00", "to": "2031-03-14T23:00:00"}], "eventPrice": [1500, "200"], "eventCategories": ["concerts"], "eventThemes": ["music"], "eventAgeLimit": 18, "eventLocation": {"name": "Клуб", "address": "Невский 1"}, "linkSource": "https://x.example"}, "errorText": ""}`

func TestExtract_FencedBlock(t *testing.T) {
	raw := "Sure! Here is the event:\n```json\n" + validEvent + "\n```\nHope this helps."

	res, err := Extract(raw)
	require.NoError(t, err)
	require.Equal(t, KindEvent, res.Kind)

	ev := res.Event
	assert.Equal(t, "Джаз", ev.Title)
	assert.Equal(t, []DateRange{{From: "2031-03-14T20:00:00", To: "2031-03-14T23:00:00"}}, ev.Dates)
	assert.Equal(t, []Price{1500, 200}, ev.Prices)
	assert.Equal(t, AgeLimit("18"), ev.AgeLimit)
	assert.Equal(t, Location{Name: "Клуб", Address: "Невский 1"}, ev.Location)
	assert.Equal(t, "https://x.example", ev.Link)
}

func TestExtract_LastBlockWins(t *testing.T) {
	draft := `{"data": {"eventTitle": "draft", "eventDate": [{"from": "2031-01-01"}]}}`
	final := `{"data": {"eventTitle": "final", "eventDate": [{"from": "2031-02-02"}]}}`
	raw := "Thinking...\n```json\n" + draft + "\n```\nActually:\n```json\n" + final + "\n```"

	res, err := Extract(raw)
	require.NoError(t, err)
	require.Equal(t, KindEvent, res.Kind)
	assert.Equal(t, "final", res.Event.Title)
	assert.Equal(t, "2031-02-02", res.Event.Dates[0].From)
}

func TestExtract_UnfencedJSON(t *testing.T) {
	res, err := Extract("  " + validEvent + "\n")
	require.NoError(t, err)
	assert.Equal(t, KindEvent, res.Kind)
	assert.Equal(t, "Джаз", res.Event.Title)
}

func TestExtract_Advert(t *testing.T) {
	body := `{"data": {}, "errorText": "ADS"}`
	res, err := Extract("```json\n" + body + "\n```")
	require.NoError(t, err)
	require.Equal(t, KindAdvert, res.Kind)
	assert.JSONEq(t, body, string(res.Advert))

	out, err := json.Marshal(res)
	require.NoError(t, err)
	assert.JSONEq(t, body, string(out))
}

func TestExtract_DateErrors(t *testing.T) {
	cases := []struct {
		name string
		body string
		want ErrorText
	}{
		{"no data", `{"errorText": ""}`, DateNotFound},
		{"missing dates", `{"data": {"eventTitle": "x"}}`, DateNotFound},
		{"empty dates", `{"data": {"eventDate": []}}`, DateNotFound},
		{"null dates", `{"data": {"eventDate": null}}`, DateNotFound},
		{"empty from", `{"data": {"eventDate": [{"from": ""}]}}`, InvalidDate},
		{"missing from", `{"data": {"eventDate": [{"to": "2031-01-01"}]}}`, InvalidDate},
		{"numeric from", `{"data": {"eventDate": [{"from": 20310101}]}}`, InvalidDate},
		{"dates not a list", `{"data": {"eventDate": "tomorrow"}}`, InvalidDate},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res, err := Extract(tc.body)
			require.NoError(t, err)
			require.Equal(t, KindError, res.Kind)
			assert.Equal(t, tc.want, res.Error.Text)
			assert.Equal(t, tc.want.Code(), res.Error.Code)
		})
	}
}

func TestExtract_DecodeFailure(t *testing.T) {
	for _, raw := range []string{
		"no json here at all",
		"```json\n{\"data\": {\"eventDate\": [}\n```",
		`{"data": {"eventDate": [{"from": "2031-01-01"}], "eventCategories": "concerts"}}`,
	} {
		_, err := Extract(raw)
		assert.True(t, errors.Is(err, ErrDecode), "raw=%q err=%v", raw, err)
	}
}

func TestAgeLimit_Decode(t *testing.T) {
	cases := map[string]AgeLimit{
		`"12"`:  "12",
		`12`:    "12",
		`"16+"`: "16",
		`null`:  "",
		`""`:    "",
	}
	for in, want := range cases {
		var a AgeLimit
		require.NoError(t, json.Unmarshal([]byte(in), &a), in)
		assert.Equal(t, want, a, in)
	}
}

func TestResult_Marshal(t *testing.T) {
	ev := EventResult(&EventRecord{Title: "t", AgeLimit: "12"})
	b, err := json.Marshal(ev)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"eventTitle":"t"`)
	assert.Contains(t, string(b), `"eventAgeLimit":"12"`)

	er := ErrorResult(NewError(NotParsed, map[string]string{"eventTitle": "x"}))
	b, err = json.Marshal(er)
	require.NoError(t, err)
	assert.JSONEq(t, `{"errorCode":"4","errorText":"NOT_PARSED","errorDetails":{"eventTitle":"x"}}`, string(b))
}

func TestNewError_Details(t *testing.T) {
	assert.Nil(t, NewError(DateInPast, nil).Details)
	assert.Nil(t, NewError(DateInPast, json.RawMessage("{broken")).Details)
	assert.JSONEq(t, `{"a":1}`, string(NewError(DateInPast, json.RawMessage(`{"a":1}`)).Details))
	assert.JSONEq(t, `"timeout"`, string(NewError(ModelFailed, "timeout").Details))
	assert.Equal(t, "0", ErrorText("SOMETHING_ELSE").Code())
}
