package outbound

import "github.com/ajkula/GoAccessGate/domain/model"

// CredentialSource yields the current bearer token and identity.
// Implementations must read the underlying credential store on every call.
type CredentialSource interface {
	Current() (model.Credentials, error)
}
