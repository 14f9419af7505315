package v1

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEventValidate(t *testing.T) {
	tests := []struct {
		name      string
		event     Event
		wantError string
	}{
		{
			name: "valid",
			event: Event{
				Name:       "scam_message_flagged",
				Properties: map[string]interface{}{"user_id": "12345"},
			},
		},
		{
			name: "missing name",
			event: Event{
				Properties: map[string]interface{}{"user_id": "12345"},
			},
			wantError: "name is required",
		},
		{
			name:      "nil properties",
			event:     Event{Name: "purchase_made"},
			wantError: "properties is required",
		},
		{
			name: "missing user_id",
			event: Event{
				Name:       "purchase_made",
				Properties: map[string]interface{}{"amount": 10.0},
			},
			wantError: "properties.user_id is required",
		},
		{
			name: "empty user_id",
			event: Event{
				Name:       "purchase_made",
				Properties: map[string]interface{}{"user_id": ""},
			},
			wantError: "properties.user_id must be a non-empty string",
		},
		{
			name: "numeric user_id rejected",
			event: Event{
				Name:       "purchase_made",
				Properties: map[string]interface{}{"user_id": 12345.0},
			},
			wantError: "properties.user_id must be a non-empty string",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.event.Validate()
			if tc.wantError == "" {
				require.NoError(t, err)
				return
			}
			require.EqualError(t, err, tc.wantError)
		})
	}
}

func TestEventUserID(t *testing.T) {
	evt := Event{
		Name:       "credit_card_added",
		Properties: map[string]interface{}{"user_id": "u-1", "card_id": "c-1"},
	}

	id, err := evt.UserID()
	require.NoError(t, err)
	require.Equal(t, "u-1", id)
}
