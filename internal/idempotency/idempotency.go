// Package idempotency derives stable keys for proposals so a change that was
// already applied can be recognized.
package idempotency

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/iambrandonn/actuator/internal/protocol"
)

// KeyPrefix marks an idempotency key
const KeyPrefix = "ik:"

// CanonicalJSON converts a value to deterministic JSON by recursively sorting map keys
func CanonicalJSON(v any) ([]byte, error) {
	normalized := normalizeValue(v)

	data, err := json.Marshal(normalized)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return data, nil
}

func normalizeValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return newSortedMap(val)
	case []any:
		normalized := make([]any, len(val))
		for i, item := range val {
			normalized[i] = normalizeValue(item)
		}
		return normalized
	default:
		return v
	}
}

// sortedMap marshals its entries in key order
type sortedMap struct {
	keys   []string
	values map[string]any
}

func newSortedMap(m map[string]any) *sortedMap {
	keys := make([]string, 0, len(m))
	values := make(map[string]any, len(m))
	for k, v := range m {
		keys = append(keys, k)
		values[k] = normalizeValue(v)
	}
	sort.Strings(keys)
	return &sortedMap{keys: keys, values: values}
}

func (sm *sortedMap) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, key := range sm.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		keyJSON, err := json.Marshal(key)
		if err != nil {
			return nil, err
		}
		valJSON, err := json.Marshal(sm.values[key])
		if err != nil {
			return nil, err
		}
		buf.Write(keyJSON)
		buf.WriteByte(':')
		buf.Write(valJSON)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// NormalizeDiff makes diff text comparable across platforms: CRLF becomes LF
// and surrounding whitespace is dropped
func NormalizeDiff(text string) string {
	return strings.TrimSpace(strings.ReplaceAll(text, "\r\n", "\n"))
}

// ApplyKey creates the key for applying diffText and running commands.
// Format: "ik:" + hex(SHA256(canonical_json({"commands": [...], "diff": "..."})))
func ApplyKey(diffText string, commands []string) (string, error) {
	cmds := make([]any, 0, len(commands))
	for _, c := range commands {
		cmds = append(cmds, strings.TrimSpace(c))
	}

	data, err := CanonicalJSON(map[string]any{
		"diff":     NormalizeDiff(diffText),
		"commands": cmds,
	})
	if err != nil {
		return "", fmt.Errorf("failed to canonicalize proposal: %w", err)
	}

	hash := sha256.Sum256(data)
	return KeyPrefix + hex.EncodeToString(hash[:]), nil
}

// ProposalKey is ApplyKey over a proposal's diff and commands. The ID,
// summary and approval fields do not contribute.
func ProposalKey(p protocol.Proposal) (string, error) {
	return ApplyKey(p.Diff, p.Commands)
}
