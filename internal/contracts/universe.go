package contracts

import "strings"

// Universe identifies the index a prediction artifact belongs to
// ⭐ SSOT: 유니버스 식별자는 여기서만 정의
type Universe string

const (
	UniverseSP500     Universe = "SP500"
	UniverseDOW30     Universe = "DOW30"
	UniverseNASDAQ100 Universe = "NASDAQ100"
	UniverseUnknown   Universe = "UNKNOWN"

	// UniverseAll is only used by the degenerate metric record
	UniverseAll Universe = "ALL"
)

// String returns the universe name
func (u Universe) String() string {
	return string(u)
}

// KnownUniverses returns the fixed universe set in display order
func KnownUniverses() []Universe {
	return []Universe{UniverseSP500, UniverseDOW30, UniverseNASDAQ100}
}

// ParseUniverse resolves a canonical universe name; anything else is UNKNOWN
func ParseUniverse(s string) Universe {
	switch u := Universe(strings.ToUpper(strings.TrimSpace(s))); u {
	case UniverseSP500, UniverseDOW30, UniverseNASDAQ100, UniverseAll:
		return u
	default:
		return UniverseUnknown
	}
}
