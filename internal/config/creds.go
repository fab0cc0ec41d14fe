package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// LoadCreds reads config/creds.json, a flat {ENV_NAME: value} mapping,
// and exports each entry to the process environment. Variables already
// set in the environment win over the file. A missing file is not an
// error; the vendor SDKs then rely on the ambient environment alone.
// Returns the names that were exported.
func LoadCreds(baseDir string) ([]string, error) {
	path := filepath.Join(baseDir, "config", "creds.json")
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, &ConfigError{Field: "creds", Message: "read credentials", Err: err}
	}

	var creds map[string]string
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil, &ConfigError{Field: "creds", Message: fmt.Sprintf("parse %s", path), Err: err}
	}

	var exported []string
	for name, value := range creds {
		if _, present := os.LookupEnv(name); present {
			continue
		}
		if err := os.Setenv(name, value); err != nil {
			return nil, &ConfigError{Field: "creds", Message: fmt.Sprintf("export %s", name), Err: err}
		}
		exported = append(exported, name)
	}
	return exported, nil
}
