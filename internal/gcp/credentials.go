package gcp

import (
	"github.com/Lllllllleong/qrawareness/internal/config"
	"google.golang.org/api/option"
)

// ClientOptions turns the configured service account into client options for any of the
// Google clients used here.
func ClientOptions(creds config.Credentials, scopes ...string) ([]option.ClientOption, error) {
	var opts []option.ClientOption
	switch {
	case len(creds.JSON) > 0:
		opts = append(opts, option.WithCredentialsJSON(creds.JSON))
	case creds.File != "":
		opts = append(opts, option.WithCredentialsFile(creds.File))
	default:
		return nil, ErrConfigurationMissing
	}
	if len(scopes) > 0 {
		opts = append(opts, option.WithScopes(scopes...))
	}
	return opts, nil
}
