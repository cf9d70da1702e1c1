package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// SecretsFileEnv names the variable that points at the secrets file.
const SecretsFileEnv = "DECISIO_SECRETS_FILE"

// DefaultSecretsFile is read when SecretsFileEnv is unset and the file exists.
const DefaultSecretsFile = "secrets.yaml"

// Secrets is a flat map of setting names to values, e.g.
//
//	BACKEND_BASE_URL: https://backend.example.com/
//	DATABASE_URL: postgres://decisio@db/decisio
//
// Values only apply to settings not present in the environment.
type Secrets map[string]string

// LoadSecrets reads a secrets file. A missing default file is not an error;
// a missing file that was named explicitly is.
func LoadSecrets(path string, explicit bool) (Secrets, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return Secrets{}, nil
		}
		return nil, fmt.Errorf("read secrets file: %w", err)
	}
	return ParseSecrets(data)
}

// ParseSecrets decodes YAML secrets. Scalar values of any type are accepted
// and kept as their YAML text.
func ParseSecrets(data []byte) (Secrets, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse secrets file: %w", err)
	}

	secrets := make(Secrets, len(raw))
	for k, v := range raw {
		switch val := v.(type) {
		case nil:
			continue
		case string:
			secrets[k] = val
		case bool:
			secrets[k] = strconv.FormatBool(val)
		case int:
			secrets[k] = strconv.Itoa(val)
		case float64:
			secrets[k] = strconv.FormatFloat(val, 'f', -1, 64)
		default:
			return nil, fmt.Errorf("parse secrets file: %s must be a scalar", k)
		}
	}
	return secrets, nil
}

// secretsPath resolves which secrets file to read.
func secretsPath() (path string, explicit bool) {
	if p := os.Getenv(SecretsFileEnv); p != "" {
		return p, true
	}
	return DefaultSecretsFile, false
}
