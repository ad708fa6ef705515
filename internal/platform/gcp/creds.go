package gcp

import (
	"os"
	"strings"

	"google.golang.org/api/option"
)

// ClientOptionsFromEnv builds client options from GOOGLE_APPLICATION_CREDENTIALS_JSON (inline JSON)
// or GOOGLE_APPLICATION_CREDENTIALS (inline JSON or a file path). Nil means Application Default Credentials.
func ClientOptionsFromEnv() []option.ClientOption {
	creds := rawCredentialsFromEnv()
	if creds == "" {
		return nil
	}
	if strings.HasPrefix(creds, "{") {
		return []option.ClientOption{option.WithCredentialsJSON([]byte(creds))}
	}
	return []option.ClientOption{option.WithCredentialsFile(creds)}
}

// CredentialsJSONFromEnv returns the service account JSON named by the environment, reading the file
// when a path is given. It returns nil when nothing is configured.
func CredentialsJSONFromEnv() ([]byte, error) {
	creds := rawCredentialsFromEnv()
	if creds == "" {
		return nil, nil
	}
	if strings.HasPrefix(creds, "{") {
		return []byte(creds), nil
	}
	return os.ReadFile(creds)
}

func rawCredentialsFromEnv() string {
	creds := strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS_JSON"))
	if creds == "" {
		creds = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}
	return creds
}
