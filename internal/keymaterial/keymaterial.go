// Package keymaterial loads and holds the RSA key pairs backing token
// signing and verification, keyed by kid, with fail-fast startup checks.
package keymaterial

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
	"runtime"

	"github.com/zeromicro/go-zero/core/logx"
)

const minRSABits = 2048

// KeyDescriptor is one loaded key pair. PrivateKey is nil for kids that
// are verification-only.
type KeyDescriptor struct {
	Kid        string
	PublicKey  *rsa.PublicKey
	PrivateKey *rsa.PrivateKey
}

// Source describes where a kid's PEM material is loaded from.
type Source struct {
	Kid            string
	PrivateKeyPath string // empty for verification-only kids
	PublicKeyPath  string
}

// KeyMaterial holds every loaded key, the active signing kid, and the
// superset of kids accepted for verification.
type KeyMaterial struct {
	activeKid        string
	verificationKids map[string]struct{}
	keys             map[string]KeyDescriptor
}

// Load reads every source, validates the fail-fast invariants in the
// component design, and returns a ready KeyMaterial.
func Load(sources []Source, activeKid string, verificationKids []string) (*KeyMaterial, error) {
	if activeKid == "" {
		return nil, fmt.Errorf("keymaterial: activeKid must not be empty")
	}

	verifSet := make(map[string]struct{}, len(verificationKids))
	for _, kid := range verificationKids {
		verifSet[kid] = struct{}{}
	}
	if _, ok := verifSet[activeKid]; !ok {
		return nil, fmt.Errorf("keymaterial: activeKid %q not present in verificationKids", activeKid)
	}

	keys := make(map[string]KeyDescriptor, len(sources))
	for _, src := range sources {
		if _, dup := keys[src.Kid]; dup {
			return nil, fmt.Errorf("keymaterial: duplicate kid %q", src.Kid)
		}

		pub, err := loadPublicKey(src.PublicKeyPath)
		if err != nil {
			return nil, fmt.Errorf("keymaterial: kid %q: %w", src.Kid, err)
		}
		if pub.N.BitLen() < minRSABits {
			return nil, fmt.Errorf("keymaterial: kid %q public key has %d bits, want >= %d", src.Kid, pub.N.BitLen(), minRSABits)
		}

		desc := KeyDescriptor{Kid: src.Kid, PublicKey: pub}

		if src.Kid == activeKid {
			if src.PrivateKeyPath == "" {
				return nil, fmt.Errorf("keymaterial: activeKid %q has no private key configured", src.Kid)
			}
			if err := checkPrivateKeyPermissions(src.PrivateKeyPath); err != nil {
				return nil, fmt.Errorf("keymaterial: kid %q: %w", src.Kid, err)
			}
			priv, err := loadPrivateKey(src.PrivateKeyPath)
			if err != nil {
				return nil, fmt.Errorf("keymaterial: kid %q: %w", src.Kid, err)
			}
			if priv.N.Cmp(pub.N) != 0 {
				return nil, fmt.Errorf("keymaterial: kid %q modulus mismatch between private and public key", src.Kid)
			}
			desc.PrivateKey = priv
		}

		keys[src.Kid] = desc
	}

	for kid := range verifSet {
		if _, ok := keys[kid]; !ok {
			return nil, fmt.Errorf("keymaterial: verificationKids references unknown kid %q", kid)
		}
	}

	logx.Infof("keymaterial: loaded %d key(s), activeKid=%s, verificationKids=%d", len(keys), activeKid, len(verifSet))

	return &KeyMaterial{activeKid: activeKid, verificationKids: verifSet, keys: keys}, nil
}

// ActiveSigningKey returns the kid and private key used to sign new
// tokens.
func (km *KeyMaterial) ActiveSigningKey() (kid string, key *rsa.PrivateKey) {
	desc := km.keys[km.activeKid]
	return km.activeKid, desc.PrivateKey
}

// VerificationKey resolves the public key for kid, failing if kid is not
// in the verification superset.
func (km *KeyMaterial) VerificationKey(kid string) (*rsa.PublicKey, bool) {
	if _, ok := km.verificationKids[kid]; !ok {
		return nil, false
	}
	desc, ok := km.keys[kid]
	if !ok {
		return nil, false
	}
	return desc.PublicKey, true
}

func loadPrivateKey(path string) (*rsa.PrivateKey, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read private key file: %w", err)
	}
	block, _ := pem.Decode(raw)
	if block == nil {
		return nil, fmt.Errorf("no PEM block found in %s", path)
	}
	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}
	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	rsaKey, ok := key.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("private key in %s is not an RSA key", path)
	}
	return rsaKey, nil
}

func loadPublicKey(path string) (*rsa.PublicKey, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read public key file: %w", err)
	}
	block, _ := pem.Decode(raw)
	if block == nil {
		return nil, fmt.Errorf("no PEM block found in %s", path)
	}
	if pub, err := x509.ParsePKIXPublicKey(block.Bytes); err == nil {
		if rsaPub, ok := pub.(*rsa.PublicKey); ok {
			return rsaPub, nil
		}
		return nil, fmt.Errorf("public key in %s is not an RSA key", path)
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse public key or certificate: %w", err)
	}
	rsaPub, ok := cert.PublicKey.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("certificate public key in %s is not an RSA key", path)
	}
	return rsaPub, nil
}

// checkPrivateKeyPermissions fails startup if a private key file is
// group- or world-readable on POSIX systems.
func checkPrivateKeyPermissions(path string) error {
	if runtime.GOOS == "windows" {
		return nil
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat private key file: %w", err)
	}
	if info.Mode().Perm()&0o044 != 0 {
		return fmt.Errorf("private key file %s is group- or world-readable (mode %v)", path, info.Mode().Perm())
	}
	return nil
}
