package license

import (
	"crypto/ed25519"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
)

// Names of the on-disk license artifacts inside the license
// directory.
const (
	RecordFile    = "license.key"
	SignatureFile = "license.sig"
	PublicKeyFile = "public.pem"
)

// vendorPublicKeyPEM is the compiled-in verification key. A
// deployment that rotates keys points license.public_key_path at its
// own PEM instead.
const vendorPublicKeyPEM = `-----BEGIN PUBLIC KEY-----
MCowBQYDK2VwAyEAQlO68J5DYOUvCe6wL3nqEXqZfqScbDOHALo7A3SUXDw=
-----END PUBLIC KEY-----
`

// LoadPublicKey returns the verification key. An empty path selects
// the compiled-in vendor key.
func LoadPublicKey(path string) (ed25519.PublicKey, error) {
	data := []byte(vendorPublicKeyPEM)
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read public key: %w", err)
		}
	}
	return parsePublicKey(data)
}

func parsePublicKey(data []byte) (ed25519.PublicKey, error) {
	block, _ := pem.Decode(data)
	if block == nil || block.Type != "PUBLIC KEY" {
		return nil, errors.New("no PUBLIC KEY block found")
	}
	parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse public key: %w", err)
	}
	pub, ok := parsed.(ed25519.PublicKey)
	if !ok {
		return nil, fmt.Errorf("unsupported key type %T", parsed)
	}
	return pub, nil
}
