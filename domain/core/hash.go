package core

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Hash represents a cryptographic hash
type Hash string

// NewHash creates a new hash from data
func NewHash(data []byte) Hash {
	sum := sha256.Sum256(data)
	return Hash(hex.EncodeToString(sum[:]))
}

// String returns the string representation
func (h Hash) String() string {
	return string(h)
}

// IsEmpty checks if the hash is empty
func (h Hash) IsEmpty() bool {
	return h == ""
}

// Equals checks if two hashes are equal
func (h Hash) Equals(other Hash) bool {
	return h == other
}

// Domain-specific hash types
type (
	BinningFingerprint Hash
	ReportFingerprint  Hash
)

func (h BinningFingerprint) String() string { return Hash(h).String() }
func (h ReportFingerprint) String() string  { return Hash(h).String() }

// ComputeBinningFingerprint hashes bin edges so a shared binning decision
// can participate in cache keys. Identical edges always produce the
// identical fingerprint.
func ComputeBinningFingerprint(strategy string, edges []float64) BinningFingerprint {
	var data strings.Builder
	data.WriteString(strategy)
	for _, e := range edges {
		data.WriteString("|")
		data.WriteString(strconv.FormatFloat(e, 'g', -1, 64))
	}
	return BinningFingerprint(NewHash([]byte(data.String())))
}

// ComputeCategoryFingerprint hashes an ordered category set.
func ComputeCategoryFingerprint(categories []string) BinningFingerprint {
	var data strings.Builder
	for _, c := range categories {
		data.WriteString(c)
		data.WriteString("|")
	}
	return BinningFingerprint(NewHash([]byte(data.String())))
}

// ComputeReportFingerprint hashes the ordered metric results of a report.
// Identical inputs and configuration must reproduce the identical
// fingerprint across runs.
func ComputeReportFingerprint(parts map[string]string) ReportFingerprint {
	keys := make([]string, 0, len(parts))
	for k := range parts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var data strings.Builder
	for _, key := range keys {
		data.WriteString(key)
		data.WriteString(fmt.Sprintf("=%s;", parts[key]))
	}
	return ReportFingerprint(NewHash([]byte(data.String())))
}
