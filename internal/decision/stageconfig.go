package decision

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
)

// Source names the priority tier that produced a StageConfig.
type Source string

const (
	SourceOverride  Source = "override"
	SourcePredicted Source = "predicted"
	SourceDefault   Source = "default"
	SourceFallback  Source = "fallback"
)

// StageConfig is the resolved parameter set for one stage invocation.
// Immutable once produced.
type StageConfig struct {
	StageID string            `json:"stage_id"`
	Params  map[string]string `json:"params"`
	Source  Source            `json:"source"`
}

// Param returns the named parameter value, or "" when absent.
func (c StageConfig) Param(name string) string {
	return c.Params[name]
}

// Hash returns the canonical hex digest of the configuration. Parameter
// names are sorted so map iteration order never leaks into cache keys. The
// source tag is deliberately excluded: a predicted configuration and an
// identical manual one describe the same computation.
func (c StageConfig) Hash() string {
	names := make([]string, 0, len(c.Params))
	for name := range c.Params {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString("v1|")
	b.WriteString(c.StageID)
	for _, name := range names {
		b.WriteByte('|')
		b.WriteString(name)
		b.WriteByte('=')
		b.WriteString(c.Params[name])
	}

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

func cloneParams(params map[string]string) map[string]string {
	cp := make(map[string]string, len(params))
	for k, v := range params {
		cp[k] = v
	}
	return cp
}
