package services

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dosada05/esports-booking/models"
)

func TestNextBookingStatus(t *testing.T) {
	tests := []struct {
		name    string
		from    models.BookingStatus
		event   BookingEvent
		want    models.BookingStatus
		wantErr bool
	}{
		{name: "submit creates pending", from: "", event: EventSubmit, want: models.BookingPending},
		{name: "approve pending", from: models.BookingPending, event: EventApprove, want: models.BookingApproved},
		{name: "reject pending", from: models.BookingPending, event: EventReject, want: models.BookingRejected},
		{name: "message keeps approved", from: models.BookingApproved, event: EventMessage, want: models.BookingApproved},
		{name: "complete approved", from: models.BookingApproved, event: EventComplete, want: models.BookingCompleted},
		{name: "cancel approved", from: models.BookingApproved, event: EventCancel, want: models.BookingCancelled},
		{name: "winner", from: models.BookingApproved, event: EventDeclareWinner, want: models.BookingWon},
		{name: "winner uploads qr", from: models.BookingWon, event: EventUploadQR, want: models.BookingProcessing},
		{name: "prize paid", from: models.BookingProcessing, event: EventMarkPaid, want: models.BookingPaid},
		{name: "tournament cancelled", from: models.BookingApproved, event: EventCancelTournament, want: models.BookingRefundPending},
		{name: "refund qr", from: models.BookingRefundPending, event: EventUploadQR, want: models.BookingRefundProcessing},
		{name: "refund paid", from: models.BookingRefundProcessing, event: EventMarkPaid, want: models.BookingRefundPaid},

		{name: "approve twice", from: models.BookingApproved, event: EventApprove, wantErr: true},
		{name: "approve rejected", from: models.BookingRejected, event: EventApprove, wantErr: true},
		{name: "message pending", from: models.BookingPending, event: EventMessage, wantErr: true},
		{name: "qr before winning", from: models.BookingApproved, event: EventUploadQR, wantErr: true},
		{name: "qr twice", from: models.BookingProcessing, event: EventUploadQR, wantErr: true},
		{name: "paid without qr", from: models.BookingWon, event: EventMarkPaid, wantErr: true},
		{name: "refund pending cannot be paid", from: models.BookingRefundPending, event: EventMarkPaid, wantErr: true},
		{name: "pending not refunded", from: models.BookingPending, event: EventCancelTournament, wantErr: true},
		{name: "paid is terminal", from: models.BookingPaid, event: EventMarkPaid, wantErr: true},
		{name: "submit on existing", from: models.BookingPending, event: EventSubmit, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NextBookingStatus(tt.from, tt.event)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidBookingTransition)
				assert.Empty(t, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAllowedBookingEvents(t *testing.T) {
	tests := []struct {
		from models.BookingStatus
		want []BookingEvent
	}{
		{from: models.BookingPending, want: []BookingEvent{EventApprove, EventReject}},
		{from: models.BookingApproved, want: []BookingEvent{EventMessage, EventComplete, EventCancel, EventDeclareWinner, EventCancelTournament}},
		{from: models.BookingWon, want: []BookingEvent{EventUploadQR}},
		{from: models.BookingRefundProcessing, want: []BookingEvent{EventMarkPaid}},
		{from: models.BookingPaid, want: []BookingEvent{}},
		{from: models.BookingRejected, want: []BookingEvent{}},
	}

	for _, tt := range tests {
		t.Run(string(tt.from), func(t *testing.T) {
			if diff := cmp.Diff(tt.want, AllowedBookingEvents(tt.from)); diff != "" {
				t.Errorf("AllowedBookingEvents(%q) mismatch (-want +got):\n%s", tt.from, diff)
			}
		})
	}
}

// Оплаченные и отклоненные заявки не выходят из конечных состояний.
func TestTerminalBookingStates(t *testing.T) {
	terminal := []models.BookingStatus{
		models.BookingRejected, models.BookingCompleted, models.BookingCancelled,
		models.BookingPaid, models.BookingRefundPaid,
	}
	events := []BookingEvent{
		EventSubmit, EventApprove, EventReject, EventMessage, EventComplete, EventCancel,
		EventDeclareWinner, EventUploadQR, EventMarkPaid, EventCancelTournament,
	}
	for _, from := range terminal {
		for _, ev := range events {
			_, err := NextBookingStatus(from, ev)
			assert.ErrorIs(t, err, ErrInvalidBookingTransition, "%s from %s", ev, from)
		}
	}
}

func TestHelpers(t *testing.T) {
	assert.Equal(t, "team alpha", normalizeName("  Team   ALPHA "))
	assert.Equal(t, "Alpha (UID: 12345)", slotLabel(" Alpha ", "12345"))
	assert.Equal(t, "Alpha", slotLabel("Alpha", " "))
	assert.Equal(t, "abc...", truncate("abcdef", 3))
	assert.Equal(t, "абв", truncate("абв", 3))

	if diff := cmp.Diff([]string{"Alpha (UID: 1)", "Bravo"}, ParseRoster("Alpha (UID: 1)\r\n\n  Bravo  \n")); diff != "" {
		t.Errorf("ParseRoster mismatch (-want +got):\n%s", diff)
	}
	assert.Empty(t, ParseRoster(" \n\n"))

	ext, err := GetExtensionFromContentType("image/svg+xml")
	require.NoError(t, err)
	assert.Equal(t, ".svg", ext)
	_, err = GetExtensionFromContentType("application/pdf")
	assert.ErrorIs(t, err, ErrValidationFailed)

	assert.Equal(t, 50, clampLimit(0, 50, 200))
	assert.Equal(t, 200, clampLimit(1000, 50, 200))
	assert.Equal(t, 10, clampLimit(10, 50, 200))
}
