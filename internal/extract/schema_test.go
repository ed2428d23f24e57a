package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateResponse(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		wantErr bool
	}{
		{
			name:    "minimal valid",
			payload: `{"fields":[]}`,
		},
		{
			name: "full field",
			payload: `{"fields":[{"name":"vendor","value":"ACME","kind":"key_value","confidence":0.9,"page":1,"bounding_box":"0,0,10,10"}],"summary":"ok"}`,
		},
		{
			name:    "table cell with indices",
			payload: `{"fields":[{"name":"c","kind":"table_cell","table_index":0,"row_index":1,"column_index":2}]}`,
		},
		{
			name:    "null value and confidence",
			payload: `{"fields":[{"name":"f","kind":"line","value":null,"confidence":null}]}`,
		},
		{
			name:    "missing fields key",
			payload: `{"summary":"no fields"}`,
			wantErr: true,
		},
		{
			name:    "unknown kind",
			payload: `{"fields":[{"name":"f","kind":"paragraph"}]}`,
			wantErr: true,
		},
		{
			name:    "confidence above one",
			payload: `{"fields":[{"name":"f","kind":"line","confidence":1.5}]}`,
			wantErr: true,
		},
		{
			name:    "negative confidence",
			payload: `{"fields":[{"name":"f","kind":"line","confidence":-0.1}]}`,
			wantErr: true,
		},
		{
			name:    "empty name",
			payload: `{"fields":[{"name":"","kind":"line"}]}`,
			wantErr: true,
		},
		{
			name:    "page zero",
			payload: `{"fields":[{"name":"f","kind":"line","page":0}]}`,
			wantErr: true,
		},
		{
			name:    "unexpected top-level key",
			payload: `{"fields":[],"vendor_extra":true}`,
			wantErr: true,
		},
		{
			name:    "not json",
			payload: `<html>502 Bad Gateway</html>`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateResponse([]byte(tt.payload))
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
