// Package device manages the stable per-installation identifier used as the
// remote storage namespace.
package device

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

var ErrStorageDirRequired = errors.New("storage directory not provided")

// Service hands out the installation's device identifier, generating and
// persisting one on first use.
type Service struct {
	path string
	id   string
}

// NewService loads or creates the device identifier inside storageDir.
func NewService(storageDir string) (*Service, error) {
	if strings.TrimSpace(storageDir) == "" {
		return nil, ErrStorageDirRequired
	}

	if err := os.MkdirAll(storageDir, 0o755); err != nil {
		return nil, fmt.Errorf("create device dir: %w", err)
	}

	svc := &Service{path: filepath.Join(storageDir, "device_id")}

	data, err := os.ReadFile(svc.path)
	if err == nil {
		if id := strings.TrimSpace(string(data)); id != "" {
			svc.id = id
			return svc, nil
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("read device id: %w", err)
	}

	svc.id = "device-" + uuid.NewString()
	if err := os.WriteFile(svc.path, []byte(svc.id+"\n"), 0o644); err != nil {
		return nil, fmt.Errorf("persist device id: %w", err)
	}

	return svc, nil
}

// ID returns the stable device identifier.
func (s *Service) ID() string {
	return s.id
}
