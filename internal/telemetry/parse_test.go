package telemetry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseValue(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    float64
		wantErr bool
	}{
		{name: "bare decimal", payload: "123.4", want: 123.4},
		{name: "bare integer", payload: "42", want: 42},
		{name: "negative", payload: "-17.25", want: -17.25},
		{name: "surrounding whitespace", payload: "  42 ", want: 42},
		{name: "json object with value", payload: `{"value": 7}`, want: 7},
		{name: "json object with float value", payload: `{"value": 99.9}`, want: 99.9},
		{name: "json string number", payload: `"55.5"`, want: 55.5},
		{name: "scientific notation", payload: "1.5e3", want: 1500},
		{name: "non-numeric text", payload: "on", wantErr: true},
		{name: "nan rejected", payload: "NaN", wantErr: true},
		{name: "infinity rejected", payload: "Inf", wantErr: true},
		{name: "negative infinity rejected", payload: "-Inf", wantErr: true},
		{name: "json string nan rejected", payload: `"NaN"`, wantErr: true},
		{name: "json object without value", payload: `{}`, wantErr: true},
		{name: "json object with non-numeric value", payload: `{"value": "on"}`, wantErr: true},
		{name: "empty payload", payload: "", wantErr: true},
		{name: "whitespace only", payload: "   ", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseValue([]byte(tt.payload))
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrUnparseablePayload)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
