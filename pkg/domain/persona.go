package domain

// Persona is the role a principal acts under.
type Persona string

const (
	PersonaSelf     Persona = "Self"
	PersonaDelegate Persona = "Delegate"
	PersonaNoAccess Persona = "NoAccess"

	// Partner operator personas.
	PersonaCaseWorker       Persona = "CaseWorker"
	PersonaAgent            Persona = "Agent"
	PersonaConfigSpecialist Persona = "ConfigSpecialist"
)

var proxyPersonas = map[Persona]struct{}{
	PersonaCaseWorker:       {},
	PersonaAgent:            {},
	PersonaConfigSpecialist: {},
}

// ParseProxyPersona accepts exactly the operator personas a partner may assert.
func ParseProxyPersona(s string) (Persona, bool) {
	p := Persona(s)
	if _, ok := proxyPersonas[p]; ok {
		return p, true
	}
	return "", false
}

// IsProxy reports whether p is a partner operator persona.
func (p Persona) IsProxy() bool {
	_, ok := proxyPersonas[p]
	return ok
}

func (p Persona) String() string { return string(p) }

// IDType is the kind of identifier a partner operator presents.
type IDType string

const (
	IDTypeOHID IDType = "OHID"
	IDTypeMSID IDType = "MSID"
)

// ParseIDType accepts exactly OHID or MSID.
func ParseIDType(s string) (IDType, bool) {
	switch IDType(s) {
	case IDTypeOHID, IDTypeMSID:
		return IDType(s), true
	default:
		return "", false
	}
}
