package transport

import (
	"crypto/x509"
	"fmt"
	"os"
	"path/filepath"
)

// DefaultCADir is where Debian machines keep the Debian infrastructure CA
// certificates.
const DefaultCADir = "/etc/ssl/ca-debian"

// LoadCADir returns the system roots extended with every PEM certificate
// found directly in dir. Files that hold no certificate are skipped. An
// error is returned when dir cannot be read or yields no certificate.
func LoadCADir(dir string) (*x509.CertPool, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	pool, err := x509.SystemCertPool()
	if err != nil || pool == nil {
		pool = x509.NewCertPool()
	}

	added := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("read CA file: %w", err)
		}
		if pool.AppendCertsFromPEM(data) {
			added++
		}
	}
	if added == 0 {
		return nil, fmt.Errorf("no certificates found in %s", dir)
	}
	return pool, nil
}
