package generation

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

var serviceIdentityScopes = []string{
	"https://www.googleapis.com/auth/cloud-platform",
	"https://www.googleapis.com/auth/generative-language",
}

// NewServiceIdentityTokenSource resolves service-account credentials from credentialsJSON,
// or from Application Default Credentials when it is empty.
func NewServiceIdentityTokenSource(ctx context.Context, credentialsJSON []byte) (oauth2.TokenSource, error) {
	if len(credentialsJSON) > 0 {
		creds, err := google.CredentialsFromJSON(ctx, credentialsJSON, serviceIdentityScopes...)
		if err != nil {
			return nil, fmt.Errorf("parse service account credentials: %w", err)
		}
		return creds.TokenSource, nil
	}
	creds, err := google.FindDefaultCredentials(ctx, serviceIdentityScopes...)
	if err != nil {
		return nil, fmt.Errorf("find default credentials: %w", err)
	}
	return creds.TokenSource, nil
}
