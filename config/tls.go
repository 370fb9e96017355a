package config

import (
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
	"time"

	"github.com/ajkula/GoAccessGate/domain/port/outbound"
)

const certRenewalWindow = 30 * 24 * time.Hour

// CheckTLSCertificate fails when the configured certificate cannot be parsed or has expired,
// and warns when it expires within 30 days.
func CheckTLSCertificate(config *Config, now time.Time, logger outbound.Logger) error {
	if !config.HTTP.TLS {
		return nil
	}

	certPEM, err := os.ReadFile(config.HTTP.CertFile)
	if err != nil {
		return fmt.Errorf("failed to read certificate: %w", err)
	}

	block, _ := pem.Decode(certPEM)
	if block == nil {
		return fmt.Errorf("certificate %s is not PEM encoded", config.HTTP.CertFile)
	}

	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return fmt.Errorf("failed to parse certificate: %w", err)
	}

	if !now.Before(cert.NotAfter) {
		return fmt.Errorf("certificate expired on %s", cert.NotAfter.Format(time.RFC3339))
	}
	if cert.NotAfter.Sub(now) < certRenewalWindow {
		logger.Warn("TLS certificate expires soon", "certFile", config.HTTP.CertFile, "expiry", cert.NotAfter)
	}

	return nil
}
