// Package secrets implements the RSA credential codec used for password
// transport: clients encrypt with the gateway's public key, the gateway
// decrypts with its private key. PKCS#1 v1.5 padding, base64 on the wire.
package secrets

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
)

// ErrDecrypt is returned for any decryption failure. The underlying crypto
// error is never surfaced to clients.
var ErrDecrypt = errors.New("decryption failed")

// Codec holds the loaded keypair. Either half may be nil when the
// configuration doesn't require it.
type Codec struct {
	public  *rsa.PublicKey
	private *rsa.PrivateKey
}

// Load reads the PEM key files. Empty paths leave the corresponding half nil.
func Load(publicPath, privatePath string) (*Codec, error) {
	c := &Codec{}
	if publicPath != "" {
		key, err := loadPublicKey(publicPath)
		if err != nil {
			return nil, fmt.Errorf("loading public key: %w", err)
		}
		c.public = key
	}
	if privatePath != "" {
		key, err := loadPrivateKey(privatePath)
		if err != nil {
			return nil, fmt.Errorf("loading private key: %w", err)
		}
		c.private = key
	}
	return c, nil
}

// NewCodec builds a codec from in-memory keys. Used by tests and keygen.
func NewCodec(public *rsa.PublicKey, private *rsa.PrivateKey) *Codec {
	return &Codec{public: public, private: private}
}

// CanEncrypt reports whether a public key is loaded.
func (c *Codec) CanEncrypt() bool { return c.public != nil }

// CanDecrypt reports whether a private key is loaded.
func (c *Codec) CanDecrypt() bool { return c.private != nil }

// Encrypt RSA-encrypts plaintext and returns it base64-encoded.
func (c *Codec) Encrypt(plaintext string) (string, error) {
	if c.public == nil {
		return "", errors.New("no public key loaded")
	}
	ciphertext, err := rsa.EncryptPKCS1v15(rand.Reader, c.public, []byte(plaintext))
	if err != nil {
		return "", fmt.Errorf("encrypting: %w", err)
	}
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// Decrypt reverses Encrypt. Every failure mode collapses into ErrDecrypt so
// callers can't leak padding-oracle details.
func (c *Codec) Decrypt(encoded string) (string, error) {
	if c.private == nil {
		return "", ErrDecrypt
	}
	ciphertext, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", ErrDecrypt
	}
	plaintext, err := rsa.DecryptPKCS1v15(rand.Reader, c.private, ciphertext)
	if err != nil {
		return "", ErrDecrypt
	}
	return string(plaintext), nil
}

func loadPublicKey(path string) (*rsa.PublicKey, error) {
	block, err := readPEM(path)
	if err != nil {
		return nil, err
	}
	// Accept both SubjectPublicKeyInfo and PKCS#1 encodings.
	if pub, err := x509.ParsePKIXPublicKey(block.Bytes); err == nil {
		rsaPub, ok := pub.(*rsa.PublicKey)
		if !ok {
			return nil, fmt.Errorf("%s: not an RSA public key", path)
		}
		return rsaPub, nil
	}
	pub, err := x509.ParsePKCS1PublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return pub, nil
}

func loadPrivateKey(path string) (*rsa.PrivateKey, error) {
	block, err := readPEM(path)
	if err != nil {
		return nil, err
	}
	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}
	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	rsaKey, ok := key.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("%s: not an RSA private key", path)
	}
	return rsaKey, nil
}

func readPEM(path string) (*pem.Block, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("%s: no PEM block found", path)
	}
	return block, nil
}
