package sumup

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"strings"
)

// SignatureHeader carries the HMAC of the raw webhook body.
const SignatureHeader = "X-SumUp-Signature"

// VerifySignature checks header against HMAC-SHA256(secret, body). The header
// may be hex or base64 encoded and may carry a "sha256=" prefix.
func VerifySignature(body []byte, header, secret string) error {
	if secret == "" {
		return ErrSignatureInvalid
	}
	provided := decodeSignature(header)
	if len(provided) != sha256.Size {
		return ErrSignatureInvalid
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	if !hmac.Equal(mac.Sum(nil), provided) {
		return ErrSignatureInvalid
	}
	return nil
}

func decodeSignature(header string) []byte {
	sig := strings.TrimSpace(header)
	if len(sig) > 7 && strings.EqualFold(sig[:7], "sha256=") {
		sig = sig[7:]
	}
	if sig == "" {
		return nil
	}

	if len(sig) == hex.EncodedLen(sha256.Size) {
		if b, err := hex.DecodeString(sig); err == nil {
			return b
		}
	}
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.RawStdEncoding, base64.URLEncoding, base64.RawURLEncoding} {
		if b, err := enc.DecodeString(sig); err == nil {
			return b
		}
	}
	return nil
}
