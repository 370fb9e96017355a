package inbound

import (
	"time"

	"github.com/ajkula/GoAccessGate/domain/model"
)

type AuthService interface {
	// IssueToken signs a bearer token for identity
	IssueToken(identity model.Identity, issuedAt time.Time) (string, error)

	// ValidateToken verifies the signature and expiry and returns the identity
	ValidateToken(token string) (*model.Identity, error)
}
