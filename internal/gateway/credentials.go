package gateway

import (
	"fmt"
	"os"
	"strings"
)

// CredentialProvider supplies the gateway access token. The two
// implementations mirror the two deployment modes: a literal token from
// the environment in local development, a file mounted by the secret
// manager in production. Selection happens once at process start; call
// sites never branch on the environment.
type CredentialProvider interface {
	AccessToken() (string, error)
}

type StaticCredentials struct {
	token string
}

func NewStaticCredentials(token string) *StaticCredentials {
	return &StaticCredentials{token: token}
}

func (c *StaticCredentials) AccessToken() (string, error) {
	if c.token == "" {
		return "", fmt.Errorf("gateway access token is empty")
	}
	return c.token, nil
}

// FileCredentials re-reads the file on every call so a rotated secret
// takes effect without a restart.
type FileCredentials struct {
	path string
}

func NewFileCredentials(path string) *FileCredentials {
	return &FileCredentials{path: path}
}

func (c *FileCredentials) AccessToken() (string, error) {
	data, err := os.ReadFile(c.path)
	if err != nil {
		return "", fmt.Errorf("read gateway token file: %w", err)
	}
	token := strings.TrimSpace(string(data))
	if token == "" {
		return "", fmt.Errorf("gateway token file %s is empty", c.path)
	}
	return token, nil
}
