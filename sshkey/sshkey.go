// Package sshkey provides the public key installed on acquired instances.
package sshkey

import (
	"crypto"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/rsa"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/ssh"
)

type Algorithm string

const (
	RSA     Algorithm = "rsa"
	Ed25519 Algorithm = "ed25519"

	rsaBits = 2048
)

type Key struct {
	// Authorized keys line
	PublicKey      string
	PublicKeyFile  string
	PrivateKeyFile string
	Generated      bool
}

// ReadOrGenerate reads the public key file, generating a new key pair when
// it does not exist. The private key is written to privateDir as
// "<stem>_private".
func ReadOrGenerate(publicKeyFile, privateDir string, algorithm Algorithm) (Key, error) {
	key := Key{PublicKeyFile: publicKeyFile}

	content, err := os.ReadFile(publicKeyFile)
	if errors.Is(err, os.ErrNotExist) {
		key.PrivateKeyFile = filepath.Join(privateDir, stem(publicKeyFile)+"_private")
		if err := generate(publicKeyFile, key.PrivateKeyFile, algorithm); err != nil {
			return Key{}, err
		}
		key.Generated = true
		content, err = os.ReadFile(publicKeyFile)
	}
	if err != nil {
		return Key{}, fmt.Errorf("failed to read public key: %w", err)
	}

	if _, _, _, _, err := ssh.ParseAuthorizedKey(content); err != nil {
		return Key{}, fmt.Errorf("invalid public key in '%s': %w", publicKeyFile, err)
	}

	key.PublicKey = strings.TrimSpace(string(content))
	return key, nil
}

func generate(publicKeyFile, privateKeyFile string, algorithm Algorithm) error {
	var public crypto.PublicKey
	var private crypto.PrivateKey

	switch algorithm {
	case RSA, "":
		key, err := rsa.GenerateKey(rand.Reader, rsaBits)
		if err != nil {
			return fmt.Errorf("failed to generate keypair: %w", err)
		}
		public, private = &key.PublicKey, key
	case Ed25519:
		pub, priv, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return fmt.Errorf("failed to generate keypair: %w", err)
		}
		public, private = pub, priv
	default:
		return fmt.Errorf("unknown key algorithm '%s'", algorithm)
	}

	comment := stem(publicKeyFile) + "_auto_generated"
	block, err := ssh.MarshalPrivateKey(private, comment)
	if err != nil {
		return fmt.Errorf("failed to marshal private key: %w", err)
	}

	sshPublic, err := ssh.NewPublicKey(public)
	if err != nil {
		return fmt.Errorf("failed to create SSH public key: %w", err)
	}
	authorized := strings.TrimSpace(string(ssh.MarshalAuthorizedKey(sshPublic))) + " " + comment + "\n"

	for _, dir := range []string{filepath.Dir(publicKeyFile), filepath.Dir(privateKeyFile)} {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("failed to create key directory: %w", err)
		}
	}
	if err := os.WriteFile(privateKeyFile, pem.EncodeToMemory(block), 0o600); err != nil {
		return fmt.Errorf("failed to write private key: %w", err)
	}
	if err := os.WriteFile(publicKeyFile, []byte(authorized), 0o644); err != nil {
		return fmt.Errorf("failed to write public key: %w", err)
	}
	return nil
}

func stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Fingerprint returns the SHA256 fingerprint of the public key.
func (k Key) Fingerprint() string {
	publicKey, _, _, _, err := ssh.ParseAuthorizedKey([]byte(k.PublicKey))
	if err != nil {
		return ""
	}
	return ssh.FingerprintSHA256(publicKey)
}
