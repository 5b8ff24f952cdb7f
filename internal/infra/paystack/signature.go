package paystack

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"strings"
)

const SignatureHeader = "x-paystack-signature"

// 生のリクエストボディに対する HMAC-SHA512(hex) を定数時間で比較
func VerifySignature(rawBody []byte, signature string, secret string) bool {
	if signature == "" || secret == "" {
		return false
	}
	got, err := hex.DecodeString(strings.TrimSpace(signature))
	if err != nil {
		return false
	}
	return hmac.Equal(got, Sign(rawBody, secret))
}

func Sign(rawBody []byte, secret string) []byte {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(rawBody)
	return mac.Sum(nil)
}

func SignHex(rawBody []byte, secret string) string {
	return hex.EncodeToString(Sign(rawBody, secret))
}
