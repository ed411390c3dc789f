package gcp

import (
	"strings"

	"google.golang.org/api/option"
)

// ClientOptions builds client options from a credentials value that is either
// a service-account file path or the inline JSON itself. Empty means ambient
// credentials (ADC).
func ClientOptions(credentials string) []option.ClientOption {
	creds := strings.TrimSpace(credentials)
	if creds == "" {
		return nil
	}
	if strings.HasPrefix(creds, "{") {
		return []option.ClientOption{option.WithCredentialsJSON([]byte(creds))}
	}
	return []option.ClientOption{option.WithCredentialsFile(creds)}
}
