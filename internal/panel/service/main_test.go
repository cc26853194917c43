package service

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/opsdeck/opsdeck/pkg/cryptox"
)

func TestMain(m *testing.M) {
	// Password hashing reads a pepper file; point it at a throwaway path
	// before any test seeds a user.
	pepperPath := filepath.Join(os.TempDir(), "panel-service-test-pepper")
	cryptox.SetPepperPath(pepperPath)

	code := m.Run()
	os.Remove(pepperPath)
	os.Exit(code)
}
