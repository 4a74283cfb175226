package config

import (
	"fmt"
	"strings"
)

// Flavor is one of the supported server distributions.
type Flavor string

// Supported flavors. Paper is the default.
const (
	FlavorPaper    Flavor = "paper"
	FlavorVelocity Flavor = "velocity"
	FlavorFolia    Flavor = "folia"
	FlavorSpigot   Flavor = "spigot"
)

// Flavors lists every supported flavor in default-first order.
var Flavors = []Flavor{FlavorPaper, FlavorVelocity, FlavorFolia, FlavorSpigot}

// ParseFlavor maps a user-supplied name to a Flavor.
func ParseFlavor(s string) (Flavor, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for _, f := range Flavors {
		if string(f) == name {
			return f, nil
		}
	}
	return "", fmt.Errorf("invalid flavor %q: must be paper, velocity, folia, or spigot", s)
}

// IsProxy reports whether the flavor is the Velocity proxy.
func (f Flavor) IsProxy() bool {
	return f == FlavorVelocity
}

// CarriesWorld reports whether the flavor hosts world data, and therefore
// tracks its deployed version and needs world backups on upgrade.
func (f Flavor) CarriesWorld() bool {
	switch f {
	case FlavorPaper, FlavorFolia, FlavorSpigot:
		return true
	}
	return false
}

// Tag is the display name used to prefix terminal messages.
func (f Flavor) Tag() string {
	if f == "" {
		return ""
	}
	return strings.ToUpper(string(f[:1])) + string(f[1:])
}
