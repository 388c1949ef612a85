package types

import "errors"

// Config holds the resolved settings for a pantry session.
type Config struct {
	Schema   string `json:"schema" yaml:"schema"`
	Fixtures string `json:"fixtures" yaml:"fixtures"`
	Identity string `json:"identity" yaml:"identity"`

	// ExportDir is where "pantry export" writes when no target is given.
	ExportDir string `json:"export_dir,omitempty" yaml:"export_dir,omitempty"`
}

// Supported identity strategies.
const (
	IdentityCounter = "counter"
	IdentityUUID    = "uuid"
)

// Config validation errors.
var (
	ErrIdentityUnknown = errors.New("unknown identity strategy")
	ErrSchemaEmpty     = errors.New("schema path must not be empty")
)

var knownIdentities = map[string]bool{
	IdentityCounter: true,
	IdentityUUID:    true,
}

// Validate checks that the Config is well-formed. An empty Identity means
// the counter strategy.
func (c Config) Validate() error {
	if c.Schema == "" {
		return ErrSchemaEmpty
	}
	if c.Identity != "" && !knownIdentities[c.Identity] {
		return ErrIdentityUnknown
	}
	return nil
}
