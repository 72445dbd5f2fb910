package platform

import (
	"fmt"
	"os"
	"path/filepath"
)

// SchemaFileName is the schema file looked up by FindRoot.
const SchemaFileName = "tessera.yaml"

// FindRoot walks up from startDir to the first directory holding a schema
// file or a .tessera directory and returns its absolute path.
func FindRoot(startDir string) (string, error) {
	abs, err := filepath.Abs(startDir)
	if err != nil {
		return "", err
	}

	for dir := abs; ; {
		if hasFile(dir, SchemaFileName) || hasFile(dir, ".tessera") {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", fmt.Errorf("no %s found above %s", SchemaFileName, abs)
}

func hasFile(dir, name string) bool {
	_, err := os.Stat(filepath.Join(dir, name))
	return err == nil
}
