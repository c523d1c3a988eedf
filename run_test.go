package analytics_admin

import (
	"bytes"
	"errors"
	"fmt"
	"log"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/silinternational/analytics-admin/internal"
)

func TestHandleJobError(t *testing.T) {
	logger := log.New(&bytes.Buffer{}, "", 0)

	tests := []struct {
		name       string
		err        error
		wantListed bool
	}{
		{
			name:       "plain error is alert-worthy",
			err:        errors.New("something broke"),
			wantListed: true,
		},
		{
			name:       "job error with alert",
			err:        internal.JobError{Message: errors.New("remote refused"), SendAlert: true},
			wantListed: true,
		},
		{
			name:       "job error without alert",
			err:        internal.JobError{Message: errors.New("transient 503"), SendAlert: false},
			wantListed: false,
		},
		{
			name:       "wrapped job error without alert",
			err:        fmt.Errorf("job failed: %w", internal.JobError{Message: errors.New("transient 503"), SendAlert: false}),
			wantListed: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			alertList := handleJobError(logger, tt.err, nil)
			if tt.wantListed {
				require.Len(t, alertList, 1)
				require.Contains(t, alertList[0], tt.err.Error())
			} else {
				require.Empty(t, alertList)
			}
		})
	}
}
