// SPDX-FileCopyrightText: 2026 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

package certs

import (
	"context"
	"errors"
	"testing"
	"time"

	clocktesting "k8s.io/utils/clock/testing"
	pkcs12 "software.sslmate.com/src/go-pkcs12"

	"github.com/telekom/appgw-provisioner/pkg/provider"
	"github.com/telekom/appgw-provisioner/pkg/provider/memory"
)

const (
	testVault  = "kv-1"
	testSecret = "gateway-tls"
	testDomain = "shop.example.com"
)

var testEpoch = time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)

func newTestManager(world *memory.Provider, clk *clocktesting.FakePassiveClock, opts ...Option) *Manager {
	base := []Option{
		WithClock(clk),
		// Small keys keep the suite fast; size is policy, not mechanism.
		WithKeySize(1024),
		WithValidity(90 * 24 * time.Hour),
		WithRenewBefore(14 * 24 * time.Hour),
	}
	return NewManager(world, append(base, opts...)...)
}

func TestEnsureCertificateGeneratesWhenAbsent(t *testing.T) {
	ctx := context.Background()
	world := memory.New()
	clk := clocktesting.NewFakePassiveClock(testEpoch)
	m := newTestManager(world, clk)

	ref, err := m.EnsureCertificate(ctx, testVault, testSecret, testDomain, false)
	if err != nil {
		t.Fatalf("EnsureCertificate() error = %v", err)
	}
	want := provider.SecretReference{VaultName: testVault, SecretName: testSecret}
	if ref != want {
		t.Errorf("EnsureCertificate() ref = %+v, want %+v", ref, want)
	}
	if got := world.SecretVersions(testVault, testSecret); got != 1 {
		t.Fatalf("SecretVersions() = %d, want 1", got)
	}

	bundle, err := world.GetLatest(ctx, testVault, testSecret)
	if err != nil {
		t.Fatalf("GetLatest() error = %v", err)
	}
	if bundle.ContentType != "application/x-pkcs12" {
		t.Errorf("ContentType = %q, want PKCS#12", bundle.ContentType)
	}
	if bundle.CommonName != testDomain {
		t.Errorf("CommonName = %q, want %q", bundle.CommonName, testDomain)
	}
	if !bundle.NotBefore.Before(testEpoch) {
		t.Errorf("NotBefore = %s, want backdated before %s", bundle.NotBefore, testEpoch)
	}
	wantNotAfter := testEpoch.Add(-5 * time.Minute).Add(90 * 24 * time.Hour)
	if !bundle.NotAfter.Equal(wantNotAfter) {
		t.Errorf("NotAfter = %s, want %s", bundle.NotAfter, wantNotAfter)
	}
}

func TestGeneratedBundleIsDecodable(t *testing.T) {
	world := memory.New()
	clk := clocktesting.NewFakePassiveClock(testEpoch)
	m := newTestManager(world, clk)

	payload, err := m.generate(testDomain)
	if err != nil {
		t.Fatalf("generate() error = %v", err)
	}

	key, cert, err := pkcs12.Decode(payload.Value, payload.ExportPassword)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if key == nil {
		t.Error("Decode() returned no private key")
	}
	if cert.Subject.CommonName != testDomain {
		t.Errorf("certificate CN = %q, want %q", cert.Subject.CommonName, testDomain)
	}
	if len(cert.DNSNames) != 1 || cert.DNSNames[0] != testDomain {
		t.Errorf("certificate DNS names = %v, want [%s]", cert.DNSNames, testDomain)
	}
}

func TestEnsureCertificateKeepsValidCertificate(t *testing.T) {
	ctx := context.Background()
	world := memory.New()
	clk := clocktesting.NewFakePassiveClock(testEpoch)
	m := newTestManager(world, clk)

	first, err := m.EnsureCertificate(ctx, testVault, testSecret, testDomain, false)
	if err != nil {
		t.Fatalf("EnsureCertificate() error = %v", err)
	}
	second, err := m.EnsureCertificate(ctx, testVault, testSecret, testDomain, false)
	if err != nil {
		t.Fatalf("EnsureCertificate() second call error = %v", err)
	}
	if first != second {
		t.Errorf("reference changed across runs: %+v vs %+v", first, second)
	}
	if got := world.SecretVersions(testVault, testSecret); got != 1 {
		t.Errorf("SecretVersions() = %d, want existing version kept", got)
	}
}

func TestEnsureCertificateForceRotates(t *testing.T) {
	ctx := context.Background()
	world := memory.New()
	clk := clocktesting.NewFakePassiveClock(testEpoch)
	m := newTestManager(world, clk)

	first, err := m.EnsureCertificate(ctx, testVault, testSecret, testDomain, false)
	if err != nil {
		t.Fatalf("EnsureCertificate() error = %v", err)
	}
	v1, err := world.GetLatest(ctx, testVault, testSecret)
	if err != nil {
		t.Fatalf("GetLatest() error = %v", err)
	}

	clk.SetTime(testEpoch.Add(30 * 24 * time.Hour))
	second, err := m.EnsureCertificate(ctx, testVault, testSecret, testDomain, true)
	if err != nil {
		t.Fatalf("EnsureCertificate() forced error = %v", err)
	}
	if first != second {
		t.Errorf("reference changed across rotation: %+v vs %+v", first, second)
	}
	if got := world.SecretVersions(testVault, testSecret); got != 2 {
		t.Fatalf("SecretVersions() = %d, want a new version appended", got)
	}
	latest, err := world.GetLatest(ctx, testVault, testSecret)
	if err != nil {
		t.Fatalf("GetLatest() error = %v", err)
	}
	if latest.Version == v1.Version {
		t.Errorf("rotation reused version %q", v1.Version)
	}
	if !latest.NotAfter.After(v1.NotAfter) {
		t.Errorf("rotated NotAfter = %s, want later than %s", latest.NotAfter, v1.NotAfter)
	}
}

func TestEnsureCertificateNearExpiry(t *testing.T) {
	tests := []struct {
		name         string
		confirm      ConfirmFunc
		wantVersions int
	}{
		{
			name:         "non-interactive keeps the certificate",
			confirm:      nil,
			wantVersions: 1,
		},
		{
			name:         "declined prompt keeps the certificate",
			confirm:      func(string) bool { return false },
			wantVersions: 1,
		},
		{
			name:         "confirmed prompt rotates",
			confirm:      func(string) bool { return true },
			wantVersions: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			world := memory.New()
			clk := clocktesting.NewFakePassiveClock(testEpoch)
			m := newTestManager(world, clk, WithConfirm(tt.confirm))

			if _, err := m.EnsureCertificate(ctx, testVault, testSecret, testDomain, false); err != nil {
				t.Fatalf("EnsureCertificate() error = %v", err)
			}
			bundle, err := world.GetLatest(ctx, testVault, testSecret)
			if err != nil {
				t.Fatalf("GetLatest() error = %v", err)
			}

			// Step into the renew window, one day short of expiry.
			clk.SetTime(bundle.NotAfter.Add(-24 * time.Hour))

			if _, err := m.EnsureCertificate(ctx, testVault, testSecret, testDomain, false); err != nil {
				t.Fatalf("EnsureCertificate() near expiry error = %v", err)
			}
			if got := world.SecretVersions(testVault, testSecret); got != tt.wantVersions {
				t.Errorf("SecretVersions() = %d, want %d", got, tt.wantVersions)
			}
		})
	}
}

func TestEnsureCertificatePropagatesStoreFaults(t *testing.T) {
	ctx := context.Background()
	world := memory.New()
	clk := clocktesting.NewFakePassiveClock(testEpoch)
	m := newTestManager(world, clk)

	readFault := errors.New("store unavailable")
	world.FailWith("GetLatest", readFault)
	if _, err := m.EnsureCertificate(ctx, testVault, testSecret, testDomain, false); !errors.Is(err, readFault) {
		t.Errorf("EnsureCertificate() error = %v, want wrapped read fault", err)
	}
	world.FailWith("GetLatest", nil)

	writeFault := errors.New("upload rejected")
	world.FailWith("PutSecret", writeFault)
	if _, err := m.EnsureCertificate(ctx, testVault, testSecret, testDomain, false); !errors.Is(err, writeFault) {
		t.Errorf("EnsureCertificate() error = %v, want wrapped write fault", err)
	}
	if got := world.SecretVersions(testVault, testSecret); got != 0 {
		t.Errorf("SecretVersions() = %d after failed upload, want 0", got)
	}
}
