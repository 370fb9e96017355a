package credentials

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/ajkula/GoAccessGate/domain/model"
	"github.com/ajkula/GoAccessGate/domain/port/outbound"
	"github.com/ajkula/GoAccessGate/domain/service"
)

// FileSource reads the bearer token from a file on every call.
// A missing or empty file means the user is logged out.
type FileSource struct {
	path string
}

func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

func (s *FileSource) Current() (model.Credentials, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return model.Credentials{}, nil
	}
	if err != nil {
		return model.Credentials{}, fmt.Errorf("failed to read credentials: %w", err)
	}
	return FromToken(strings.TrimSpace(string(data))), nil
}

// StaticSource always returns the same token
type StaticSource struct {
	creds model.Credentials
}

func NewStaticSource(token string) *StaticSource {
	return &StaticSource{creds: FromToken(token)}
}

func (s *StaticSource) Current() (model.Credentials, error) {
	return s.creds, nil
}

// FromToken extracts the identity from the token's claims without verifying the signature;
// the store is the one that authorizes the token. An unreadable token yields credentials
// without identity.
func FromToken(token string) model.Credentials {
	if token == "" {
		return model.Credentials{}
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return model.Credentials{Token: token}
	}

	identity, err := service.IdentityFromClaims(claims)
	if err != nil {
		return model.Credentials{Token: token}
	}
	return model.Credentials{Token: token, Identity: identity}
}

var (
	_ outbound.CredentialSource = (*FileSource)(nil)
	_ outbound.CredentialSource = (*StaticSource)(nil)
)
