// Package cli holds the ambient plumbing cmd/tutaexport's commands
// share: credential resolution and logger setup. It has no dependency
// on the root package, so it could in principle be reused by a second
// CLI entry point.
package cli

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// Environment variable names credentials may be supplied through, when
// not given as flags.
const (
	EnvUsername = "TUTANOTA_CLI_USERNAME"
	EnvPassword = "TUTANOTA_CLI_PASSWORD"
)

// Credentials holds a resolved username/password pair.
type Credentials struct {
	Username string
	Password string
}

// LoadDotEnv loads a ".env" file from the current directory into the
// process environment, if one exists. A missing file is not an error;
// an existing-but-malformed one is.
func LoadDotEnv() error {
	if _, err := os.Stat(".env"); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return godotenv.Load()
}

// ResolveCredentials applies the precedence flag > environment variable
// > error: flagUsername/flagPassword win if set, otherwise
// EnvUsername/EnvPassword are consulted (after LoadDotEnv has had a
// chance to populate them from a ".env" file).
func ResolveCredentials(flagUsername, flagPassword string) (Credentials, error) {
	username := flagUsername
	if username == "" {
		username = os.Getenv(EnvUsername)
	}
	password := flagPassword
	if password == "" {
		password = os.Getenv(EnvPassword)
	}
	if username == "" || password == "" {
		return Credentials{}, fmt.Errorf(
			"missing credentials: set --username/--password, or %s/%s, or a .env file",
			EnvUsername, EnvPassword,
		)
	}
	return Credentials{Username: username, Password: password}, nil
}
