package machineid

import (
	"github.com/denisbrodbeck/machineid"

	"github.com/ajkula/GoAccessGate/domain/port/outbound"
)

const appID = "goaccessgate"

type hardwareMachineID struct {
	override string
}

// NewHardwareMachineID returns the host's machine ID, hashed per application.
// A non-empty override replaces it, which keeps the encrypted store portable in containers.
func NewHardwareMachineID(override string) outbound.MachineIDService {
	return &hardwareMachineID{override: override}
}

func (h *hardwareMachineID) GetMachineID() (string, error) {
	if h.override != "" {
		return h.override, nil
	}
	return machineid.ProtectedID(appID)
}
