package utils

import (
	"errors"
	"strings"
	"testing"
)

func TestToJSON(t *testing.T) {
	t.Parallel()

	type result struct {
		Result string `json:"result"`
	}

	tests := []struct {
		name  string
		input any
		want  string
	}{
		{
			name:  "method result",
			input: result{Result: "Executed direct method: SetFanState"},
			want:  `{"result":"Executed direct method: SetFanState"}`,
		},
		{
			name:  "html is not escaped",
			input: map[string]string{"result": "<on>"},
			want:  `{"result":"<on>"}`,
		},
		{
			name:  "nil",
			input: nil,
			want:  "null",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := ToJSON(tt.input)
			if err != nil {
				t.Fatalf("ToJSON() error = %v", err)
			}

			if string(got) != tt.want {
				t.Errorf("ToJSON() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestFromJSON(t *testing.T) {
	t.Parallel()

	type body struct {
		Payload string `json:"payload"`
		Timeout int    `json:"timeout"`
	}

	tests := []struct {
		name    string
		input   string
		want    body
		wantErr bool
	}{
		{name: "valid", input: `{"payload":"on","timeout":5}`, want: body{Payload: "on", Timeout: 5}},
		{name: "empty input", input: ``, want: body{}},
		{name: "trailing whitespace", input: `{"payload":"off"}  `, want: body{Payload: "off"}},
		{name: "truncated", input: `{"payload":`, wantErr: true},
		{name: "unknown field", input: `{"payload":"on","speed":3}`, wantErr: true},
		{name: "two values", input: `{"payload":"on"}{"payload":"off"}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := FromJSON[body]([]byte(tt.input))
			if (err != nil) != tt.wantErr {
				t.Fatalf("FromJSON() error = %v, wantErr %v", err, tt.wantErr)
			}

			if !tt.wantErr && got != tt.want {
				t.Errorf("FromJSON() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestFromJSONStreamExtraData(t *testing.T) {
	t.Parallel()

	_, err := FromJSONStream[map[string]any](strings.NewReader(`{"a":1} {"b":2}`))

	var extra *ExtraDataAfterJSONError
	if !errors.As(err, &extra) {
		t.Fatalf("FromJSONStream() error = %v, want ExtraDataAfterJSONError", err)
	}
}

func TestFromJSONStreamEmpty(t *testing.T) {
	t.Parallel()

	if _, err := FromJSONStream[map[string]any](strings.NewReader("")); err == nil {
		t.Error("FromJSONStream() with empty reader should return error")
	}
}
