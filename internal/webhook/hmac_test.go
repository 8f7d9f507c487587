package webhook

import (
	"strings"
	"testing"
)

func TestVerifySignature(t *testing.T) {
	secret := "test-secret-key"
	body := []byte(`{"uuid":"a-1","hostname":"build-01"}`)
	valid := Signature(body, secret)

	tests := []struct {
		name      string
		body      []byte
		signature string
		secret    string
		wantErr   bool
	}{
		{name: "prefixed hex", body: body, signature: valid, secret: secret},
		{name: "plain hex", body: body, signature: strings.TrimPrefix(valid, "sha256="), secret: secret},
		{name: "tampered body", body: []byte(`{"uuid":"a-2"}`), signature: valid, secret: secret, wantErr: true},
		{name: "wrong secret", body: body, signature: valid, secret: "other", wantErr: true},
		{name: "empty signature", body: body, signature: "", secret: secret, wantErr: true},
		{name: "empty secret", body: body, signature: valid, secret: "", wantErr: true},
		{name: "not hex", body: body, signature: "sha256=zz", secret: secret, wantErr: true},
		{name: "truncated", body: body, signature: valid[:20], secret: secret, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := verifySignature(tt.body, tt.signature, tt.secret)
			if (err != nil) != tt.wantErr {
				t.Fatalf("verifySignature() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && err.Error() != "webhook verification failed" {
				t.Errorf("error leaks details: %v", err)
			}
		})
	}
}

func TestParseMaxBodySize(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{in: "", want: DefaultMaxBodySize},
		{in: "2048", want: 2048},
		{in: "512KB", want: 512 << 10},
		{in: "1mb", want: 1 << 20},
		{in: "2GB", want: 2 << 30},
		{in: "0", wantErr: true},
		{in: "-1KB", wantErr: true},
		{in: "lots", wantErr: true},
	}
	for _, tt := range tests {
		got, err := parseMaxBodySize(tt.in)
		if (err != nil) != tt.wantErr {
			t.Fatalf("parseMaxBodySize(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("parseMaxBodySize(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
