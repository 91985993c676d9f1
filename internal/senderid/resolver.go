// Package senderid maps requested sender IDs to ones every gateway accepts.
package senderid

import (
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"
)

const (
	ReasonDeprecated = "deprecated"
	ReasonFormat     = "invalid_format"
)

var validID = regexp.MustCompile(`^[A-Za-z0-9]{1,11}$`)

// Resolver is immutable after construction and safe for concurrent use.
type Resolver struct {
	def        string
	deprecated map[string]struct{}
	log        *zap.Logger
}

// NewResolver validates the default sender ID and builds the deprecated
// lookup table.
func NewResolver(def string, deprecated []string, log *zap.Logger) (*Resolver, error) {
	def = strings.ToUpper(strings.TrimSpace(def))
	if !validID.MatchString(def) {
		return nil, fmt.Errorf("invalid default sender id %q", def)
	}
	if log == nil {
		log = zap.NewNop()
	}
	r := &Resolver{
		def:        def,
		deprecated: make(map[string]struct{}, len(deprecated)),
		log:        log,
	}
	for _, d := range deprecated {
		if d = strings.ToUpper(strings.TrimSpace(d)); d != "" {
			r.deprecated[d] = struct{}{}
		}
	}
	return r, nil
}

func (r *Resolver) Default() string { return r.def }

// Resolve always returns a usable sender ID, downgrading to the default
// instead of failing.
func (r *Resolver) Resolve(input string) string {
	id, reason := r.resolve(input)
	if reason != "" {
		r.log.Info("sender id replaced by default",
			zap.String("requested", input),
			zap.String("effective", id),
			zap.String("reason", reason))
	}
	return id
}

func (r *Resolver) resolve(input string) (string, string) {
	s := strings.TrimSpace(input)
	if s == "" {
		return r.def, ""
	}
	up := strings.ToUpper(s)
	if _, ok := r.deprecated[up]; ok {
		return r.def, ReasonDeprecated
	}
	if !validID.MatchString(s) {
		return r.def, ReasonFormat
	}
	return up, ""
}
