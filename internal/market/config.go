package market

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// VenueDefinitions models the structure of configs/venues.yaml.
type VenueDefinitions struct {
	Venues map[string]VenueDefinition `yaml:"venues"`
}

// VenueDefinition captures the addresses needed to talk to one deployment
// of a router/oracle pair on an EVM chain.
type VenueDefinition struct {
	RPCURL      string `yaml:"rpc_url"`
	Router      string `yaml:"router"`
	Oracle      string `yaml:"oracle"`
	Asset       string `yaml:"asset"`
	Description string `yaml:"description"`
}

// LoadVenues parses the venue definition file.
func LoadVenues(path string) (*VenueDefinitions, error) {
	if path == "" {
		return nil, fmt.Errorf("venue definition path is empty")
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read venue definitions: %w", err)
	}
	var defs VenueDefinitions
	if err := yaml.Unmarshal(content, &defs); err != nil {
		return nil, fmt.Errorf("parse venue definitions: %w", err)
	}
	return &defs, nil
}

// Venue returns the named venue definition.
func (d *VenueDefinitions) Venue(name string) (VenueDefinition, error) {
	if d == nil || len(d.Venues) == 0 {
		return VenueDefinition{}, fmt.Errorf("no venues configured")
	}
	venue, ok := d.Venues[name]
	if !ok {
		return VenueDefinition{}, fmt.Errorf("venue %q not defined", name)
	}
	if venue.RPCURL == "" {
		return VenueDefinition{}, fmt.Errorf("venue %q has no rpc_url", name)
	}
	return venue, nil
}
