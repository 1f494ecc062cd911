package storage

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenSignerRoundTrip(t *testing.T) {
	signer := NewTokenSigner("secret", time.Hour)
	token, expiresAt, err := signer.Sign("job-1", "vouchers/fee_voucher_20260615.pdf")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	jobID, path, parsedExpiry, err := signer.Verify(token, false)
	require.NoError(t, err)
	assert.Equal(t, "job-1", jobID)
	assert.Equal(t, "vouchers/fee_voucher_20260615.pdf", path)
	assert.WithinDuration(t, expiresAt, parsedExpiry, time.Second)
}

func TestTokenSignerRejectsTampering(t *testing.T) {
	signer := NewTokenSigner("secret", time.Hour)
	token, _, err := signer.Sign("job-1", "vouchers/file.csv")
	require.NoError(t, err)

	_, _, _, err = signer.Verify(token+"x", false)
	require.Error(t, err)

	other := NewTokenSigner("different-secret", time.Hour)
	_, _, _, err = other.Verify(token, false)
	require.Error(t, err)

	_, _, _, err = signer.Verify(strings.ReplaceAll(token, ".", ""), false)
	require.Error(t, err)
}

func TestTokenSignerExpiry(t *testing.T) {
	signer := NewTokenSigner("secret", 10*time.Millisecond)
	token, _, err := signer.Sign("job-1", "vouchers/file.csv")
	require.NoError(t, err)
	time.Sleep(20 * time.Millisecond)

	_, _, _, err = signer.Verify(token, false)
	require.Error(t, err)

	jobID, path, _, err := signer.Verify(token, true)
	require.NoError(t, err)
	assert.Equal(t, "job-1", jobID)
	assert.Equal(t, "vouchers/file.csv", path)
}

func TestTokenSignerRequiresSecret(t *testing.T) {
	signer := NewTokenSigner("", time.Hour)
	_, _, err := signer.Sign("job-1", "vouchers/file.csv")
	require.Error(t, err)
}
