package main

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Config holds parameters for the authority simulator.
type Config struct {
	Broker      string
	ClientID    string
	TopicPrefix string
	AckLatency  time.Duration
	DropRate    float64
	RejectRate  float64
	Reason      string
	// Reject lists target ids that always reject, as id=reason pairs.
	Reject  []string
	Seed    uint64
	Verbose bool
}

// Validate checks the rates and the reject list.
func (c Config) Validate() error {
	if c.Broker == "" {
		return errors.New("broker is required")
	}
	if c.DropRate < 0 || c.DropRate > 1 {
		return fmt.Errorf("drop rate %v outside [0,1]", c.DropRate)
	}
	if c.RejectRate < 0 || c.RejectRate > 1 {
		return fmt.Errorf("reject rate %v outside [0,1]", c.RejectRate)
	}
	if c.DropRate+c.RejectRate > 1 {
		return fmt.Errorf("drop rate plus reject rate exceeds 1")
	}
	_, err := parseRejects(c.Reject)
	return err
}

func parseRejects(pairs []string) (map[string]string, error) {
	out := make(map[string]string, len(pairs))
	for _, p := range pairs {
		id, reason, _ := strings.Cut(p, "=")
		id = strings.TrimSpace(id)
		if id == "" {
			return nil, fmt.Errorf("invalid reject entry %q", p)
		}
		reason = strings.TrimSpace(reason)
		if reason == "" {
			reason = "report rejected by " + id
		}
		out[id] = reason
	}
	return out, nil
}
