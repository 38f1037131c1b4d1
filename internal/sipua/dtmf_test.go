package sipua

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDTMFBody(t *testing.T) {
	require.Equal(t, "Signal=5\r\nDuration=160\r\n", string(dtmfBody('5')))
	require.Equal(t, "Signal=#\r\nDuration=160\r\n", string(dtmfBody('#')))
	require.Equal(t, "Signal=*\r\nDuration=160\r\n", string(dtmfBody('*')))
}

func TestReasonValue(t *testing.T) {
	require.Equal(t, `SIP ;cause=480 ;text="Finished Call"`, reasonValue(480, "Finished Call"))
}
