package stripe

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testPayload = []byte(`{"id":"evt_1","type":"payment_intent.succeeded","data":{"object":{"id":"pi_1"}}}`)

func TestConstructEvent_PrimarySecret(t *testing.T) {
	now := time.Now()
	header := SignPayload(testPayload, "whsec_primary", now.Unix())

	event, err := constructEventAt(testPayload, header, []string{"whsec_primary", "whsec_secondary"}, now, DefaultTolerance)
	require.NoError(t, err)
	assert.Equal(t, "payment_intent.succeeded", event.Type)
	assert.Equal(t, "evt_1", event.ID)
}

func TestConstructEvent_SecondarySecret(t *testing.T) {
	// Подпись резервным секретом тоже принимается: так работает ротация.
	now := time.Now()
	header := SignPayload(testPayload, "whsec_secondary", now.Unix())

	event, err := constructEventAt(testPayload, header, []string{"whsec_primary", "whsec_secondary", "whsec_tertiary"}, now, DefaultTolerance)
	require.NoError(t, err)
	assert.Equal(t, "evt_1", event.ID)
}

func TestConstructEvent_UnknownSecret(t *testing.T) {
	now := time.Now()
	header := SignPayload(testPayload, "whsec_rogue", now.Unix())

	_, err := constructEventAt(testPayload, header, []string{"whsec_primary", "whsec_secondary"}, now, DefaultTolerance)
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestConstructEvent_TamperedPayload(t *testing.T) {
	now := time.Now()
	header := SignPayload(testPayload, "whsec_primary", now.Unix())

	tampered := append([]byte{}, testPayload...)
	tampered[len(tampered)-2] = 'x'

	_, err := constructEventAt(tampered, header, []string{"whsec_primary"}, now, DefaultTolerance)
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestConstructEvent_OldTimestamp(t *testing.T) {
	now := time.Now()
	header := SignPayload(testPayload, "whsec_primary", now.Add(-10*time.Minute).Unix())

	_, err := constructEventAt(testPayload, header, []string{"whsec_primary"}, now, DefaultTolerance)
	assert.ErrorIs(t, err, ErrTooOld)
}

func TestConstructEvent_MissingHeader(t *testing.T) {
	_, err := constructEventAt(testPayload, "", []string{"whsec_primary"}, time.Now(), DefaultTolerance)
	assert.ErrorIs(t, err, ErrNoSignature)
}

func TestConstructEvent_NoSecrets(t *testing.T) {
	now := time.Now()
	header := SignPayload(testPayload, "whsec_primary", now.Unix())

	_, err := constructEventAt(testPayload, header, nil, now, DefaultTolerance)
	assert.ErrorIs(t, err, ErrNoSecrets)
}

func TestParseSignatureHeader_MultipleV1(t *testing.T) {
	now := time.Now().Unix()
	sig := ComputeSignature(now, testPayload, "whsec_primary")
	header := "t=" + SignPayload(testPayload, "whsec_other", now)[2:] // t=..,v1=чужая
	header += ",v1=" + sig

	event, err := constructEventAt(testPayload, header, []string{"whsec_primary"}, time.Unix(now, 0), DefaultTolerance)
	require.NoError(t, err)
	assert.Equal(t, "evt_1", event.ID)
}
