// SPDX-FileCopyrightText: 2026 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

// Package certs manages the TLS certificate held in the secret store:
// generation of self-signed key/certificate pairs, versioned upload, and the
// rotation policy. Rotation is zero-downtime by contract: consumers hold a
// versionless reference and pick up new versions without being touched.
package certs

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/base64"
	"fmt"
	"math/big"
	"time"

	"github.com/go-logr/logr"
	"k8s.io/utils/clock"
	pkcs12 "software.sslmate.com/src/go-pkcs12"

	"github.com/telekom/appgw-provisioner/pkg/metrics"
	"github.com/telekom/appgw-provisioner/pkg/provider"
)

const (
	DefaultKeySize     = 2048
	DefaultValidity    = 365 * 24 * time.Hour
	DefaultRenewBefore = 30 * 24 * time.Hour

	contentTypePKCS12 = "application/x-pkcs12"
)

// ConfirmFunc asks the operator to approve regenerating a near-expiry
// certificate. A nil ConfirmFunc means non-interactive mode: the existing
// certificate is kept unless rotation is forced.
type ConfirmFunc func(prompt string) bool

// Manager drives a certificate through Absent -> Present -> Rotated.
type Manager struct {
	store       provider.SecretStore
	clk         clock.PassiveClock
	log         logr.Logger
	keySize     int
	validity    time.Duration
	renewBefore time.Duration
	confirm     ConfirmFunc
}

type Option func(*Manager)

// WithClock injects the time source used for validity windows and expiry
// decisions.
func WithClock(c clock.PassiveClock) Option {
	return func(m *Manager) { m.clk = c }
}

func WithKeySize(bits int) Option {
	return func(m *Manager) { m.keySize = bits }
}

func WithValidity(d time.Duration) Option {
	return func(m *Manager) { m.validity = d }
}

// WithRenewBefore sets how long before expiry the manager starts prompting
// for regeneration.
func WithRenewBefore(d time.Duration) Option {
	return func(m *Manager) { m.renewBefore = d }
}

func WithConfirm(f ConfirmFunc) Option {
	return func(m *Manager) { m.confirm = f }
}

func WithLogger(log logr.Logger) Option {
	return func(m *Manager) { m.log = log }
}

func NewManager(store provider.SecretStore, opts ...Option) *Manager {
	m := &Manager{
		store:       store,
		clk:         clock.RealClock{},
		log:         logr.Discard(),
		keySize:     DefaultKeySize,
		validity:    DefaultValidity,
		renewBefore: DefaultRenewBefore,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// EnsureCertificate converges the named secret to hold a usable certificate
// for commonName and returns the versionless reference.
//
// Absent secrets get a fresh pair. Present secrets are kept unless force is
// set, or they are within the renew window and the operator confirms. A new
// pair is always uploaded as a new version under the same name; history is
// never overwritten, so the returned reference is identical across rotations.
func (m *Manager) EnsureCertificate(ctx context.Context, vault, name, commonName string, force bool) (provider.SecretReference, error) {
	ref := provider.SecretReference{VaultName: vault, SecretName: name}

	existing, err := m.store.GetLatest(ctx, vault, name)
	if err != nil {
		if !provider.IsNotFound(err) {
			return provider.SecretReference{}, fmt.Errorf("reading secret %s/%s: %w", vault, name, err)
		}
		m.log.Info("no certificate present, generating", "secret", name, "commonName", commonName)
		if err := m.rotate(ctx, vault, name, commonName); err != nil {
			return provider.SecretReference{}, err
		}
		return ref, nil
	}

	if force {
		m.log.Info("forced rotation requested", "secret", name, "currentNotAfter", existing.NotAfter)
		if err := m.rotate(ctx, vault, name, commonName); err != nil {
			return provider.SecretReference{}, err
		}
		return ref, nil
	}

	now := m.clk.Now()
	if now.After(existing.NotAfter.Add(-m.renewBefore)) {
		prompt := fmt.Sprintf("certificate %q expires at %s, regenerate now?",
			name, existing.NotAfter.Format(time.RFC3339))
		if m.confirm != nil && m.confirm(prompt) {
			if err := m.rotate(ctx, vault, name, commonName); err != nil {
				return provider.SecretReference{}, err
			}
			return ref, nil
		}
		m.log.Info("certificate near expiry, keeping existing version",
			"secret", name, "notAfter", existing.NotAfter)
		return ref, nil
	}

	m.log.V(1).Info("certificate valid, keeping existing version",
		"secret", name, "version", existing.Version, "notAfter", existing.NotAfter)
	return ref, nil
}

// rotate generates a fresh pair and uploads it as a new secret version. Both
// failure modes are fatal: a generation fault aborts before any write, and an
// upload fault relies on the store's atomic versioned-write semantics to
// leave no partial version behind.
func (m *Manager) rotate(ctx context.Context, vault, name, commonName string) error {
	payload, err := m.generate(commonName)
	if err != nil {
		return fmt.Errorf("generating certificate for %q: %w", commonName, err)
	}
	version, err := m.store.PutSecret(ctx, vault, name, payload)
	if err != nil {
		return fmt.Errorf("uploading certificate to %s/%s: %w", vault, name, err)
	}
	metrics.CertificatesIssued.Inc()
	m.log.Info("uploaded certificate version",
		"secret", name, "version", version, "notAfter", payload.NotAfter)
	return nil
}

func (m *Manager) generate(commonName string) (provider.SecretPayload, error) {
	key, err := rsa.GenerateKey(rand.Reader, m.keySize)
	if err != nil {
		return provider.SecretPayload{}, fmt.Errorf("generating RSA key: %w", err)
	}

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return provider.SecretPayload{}, fmt.Errorf("generating serial number: %w", err)
	}

	// Backdate NotBefore slightly to tolerate clock skew on the consumer.
	notBefore := m.clk.Now().Add(-5 * time.Minute)
	notAfter := notBefore.Add(m.validity)

	template := x509.Certificate{
		SerialNumber:          serial,
		Subject:               pkix.Name{CommonName: commonName},
		DNSNames:              []string{commonName},
		NotBefore:             notBefore,
		NotAfter:              notAfter,
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
	}

	der, err := x509.CreateCertificate(rand.Reader, &template, &template, &key.PublicKey, key)
	if err != nil {
		return provider.SecretPayload{}, fmt.Errorf("creating certificate: %w", err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return provider.SecretPayload{}, fmt.Errorf("parsing generated certificate: %w", err)
	}

	password, err := exportPassword()
	if err != nil {
		return provider.SecretPayload{}, err
	}
	pfx, err := pkcs12.Modern.Encode(key, cert, nil, password)
	if err != nil {
		return provider.SecretPayload{}, fmt.Errorf("encoding PKCS#12 bundle: %w", err)
	}

	return provider.SecretPayload{
		Value:          pfx,
		ExportPassword: password,
		ContentType:    contentTypePKCS12,
		CommonName:     commonName,
		NotBefore:      notBefore,
		NotAfter:       notAfter,
	}, nil
}

// exportPassword returns a fresh single-use password protecting the bundle
// in transit to the store.
func exportPassword() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating export password: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
