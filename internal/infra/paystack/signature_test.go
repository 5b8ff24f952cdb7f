package paystack_test

import (
	"strings"
	"testing"

	"github.com/Ayflow350/Ice-empire/internal/infra/paystack"

	"github.com/stretchr/testify/assert"
)

func TestVerifySignature(t *testing.T) {
	body := []byte(`{"event":"charge.success","data":{"reference":"ICE-1-aa","amount":12550}}`)
	secret := "sk_test"
	valid := paystack.SignHex(body, secret)

	tests := []struct {
		name      string
		body      []byte
		signature string
		secret    string
		want      bool
	}{
		{name: "valid", body: body, signature: valid, secret: secret, want: true},
		{name: "valid uppercase hex", body: body, signature: strings.ToUpper(valid), secret: secret, want: true},
		{name: "tampered body", body: []byte(strings.Replace(string(body), "12550", "99999", 1)), signature: valid, secret: secret, want: false},
		{name: "wrong secret", body: body, signature: valid, secret: "sk_other", want: false},
		{name: "missing header", body: body, signature: "", secret: secret, want: false},
		{name: "not hex", body: body, signature: "zz", secret: secret, want: false},
		{name: "empty secret", body: body, signature: valid, secret: "", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, paystack.VerifySignature(tt.body, tt.signature, tt.secret))
		})
	}
}
