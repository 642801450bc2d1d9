package sumup

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/require"
)

func sign(body []byte, secret string) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return mac.Sum(nil)
}

func TestVerifySignature(t *testing.T) {
	body := []byte(`{"data":{"foreign_transaction_id":"abc123","status":"SUCCESSFUL"}}`)
	secret := "s3cret"
	sum := sign(body, secret)

	require.NoError(t, VerifySignature(body, hex.EncodeToString(sum), secret))
	require.NoError(t, VerifySignature(body, "sha256="+hex.EncodeToString(sum), secret))
	require.NoError(t, VerifySignature(body, base64.StdEncoding.EncodeToString(sum), secret))
	require.NoError(t, VerifySignature(body, base64.RawURLEncoding.EncodeToString(sum), secret))
}

func TestVerifySignature_Rejects(t *testing.T) {
	body := []byte(`{"data":{"status":"SUCCESSFUL"}}`)
	secret := "s3cret"
	good := hex.EncodeToString(sign(body, secret))

	tampered := []byte(`{"data":{"status":"DECLINED"}}`)
	require.ErrorIs(t, VerifySignature(tampered, good, secret), ErrSignatureInvalid)
	require.ErrorIs(t, VerifySignature(body, good, "other"), ErrSignatureInvalid)
	require.ErrorIs(t, VerifySignature(body, "", secret), ErrSignatureInvalid)
	require.ErrorIs(t, VerifySignature(body, good[:10], secret), ErrSignatureInvalid)
	require.ErrorIs(t, VerifySignature(body, good+"00", secret), ErrSignatureInvalid)
	require.ErrorIs(t, VerifySignature(body, "not-a-signature!!", secret), ErrSignatureInvalid)
	require.ErrorIs(t, VerifySignature(body, good, ""), ErrSignatureInvalid)
}
