package payment

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatus_CanMoveTo(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusPending, StatusWaitingForCapture, true},
		{StatusPending, StatusSucceeded, true},
		{StatusPending, StatusCanceled, true},
		{StatusWaitingForCapture, StatusSucceeded, true},
		{StatusWaitingForCapture, StatusCanceled, true},
		{StatusWaitingForCapture, StatusPending, false},
		{StatusPending, StatusPending, false},
		{StatusSucceeded, StatusCanceled, false},
		{StatusCanceled, StatusSucceeded, false},
		{StatusPending, "refunded", false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanMoveTo(tt.to))
		})
	}
}
