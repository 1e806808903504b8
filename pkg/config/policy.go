package config

import "strings"

// Policy holds the site-specific naming conventions the gateway applies to
// stocker names and barcode IDs.
type Policy struct {
	// Reticle stockers whose name has InterlockStockerPrefix refuse reticle
	// barcodes (InterlockBarcodeLead) whose cassette name or barcode carries
	// one of the interlocked prefixes.
	InterlockStockerPrefix    string   `yaml:"interlock_stocker_prefix"`
	InterlockBarcodeLead      string   `yaml:"interlock_barcode_lead"`
	InterlockCassettePrefixes []string `yaml:"interlock_cassette_prefixes"`
	InterlockBarcodePrefixes  []string `yaml:"interlock_barcode_prefixes"`

	// Pod stockers read pod IDs that are remapped to cassette IDs, resolve
	// an unassociated barcode to EmptyLogicalPrefix+barcode, and skip
	// lot-tracking input/output notifications.
	PodStockerPrefix   string `yaml:"pod_stocker_prefix"`
	PodIDLead          string `yaml:"pod_id_lead"`
	EmptyLogicalPrefix string `yaml:"empty_logical_prefix"`

	// Logical IDs resolved from reticle barcodes are space padded to
	// ReticlePadWidth.
	ReticleBarcodeLead string `yaml:"reticle_barcode_lead"`
	ReticlePadWidth    int    `yaml:"reticle_pad_width"`
}

// DefaultPolicy returns the site conventions the gateway ships with.
func DefaultPolicy() Policy {
	return Policy{
		InterlockStockerPrefix:    "CRST",
		InterlockBarcodeLead:      "R",
		InterlockCassettePrefixes: []string{"ASML"},
		InterlockBarcodePrefixes:  []string{"RY", "RW"},
		PodStockerPrefix:          "CPST",
		PodIDLead:                 "S",
		EmptyLogicalPrefix:        "ZZEMPTY-",
		ReticleBarcodeLead:        "R",
		ReticlePadWidth:           14,
	}
}

// Interlocked reports whether a barcode read at the given stocker must be
// refused. cassetteName is the directory's name for the barcode, if any.
func (p Policy) Interlocked(stocker, barcode, cassetteName string) bool {
	if !p.InterlockApplies(stocker, barcode) {
		return false
	}
	for _, prefix := range p.InterlockCassettePrefixes {
		if prefix != "" && strings.HasPrefix(cassetteName, prefix) {
			return true
		}
	}
	for _, prefix := range p.InterlockBarcodePrefixes {
		if prefix != "" && strings.HasPrefix(barcode, prefix) {
			return true
		}
	}
	return false
}

// InterlockApplies reports whether the interlock check runs for this read.
func (p Policy) InterlockApplies(stocker, barcode string) bool {
	return p.InterlockStockerPrefix != "" &&
		strings.HasPrefix(stocker, p.InterlockStockerPrefix) &&
		strings.HasPrefix(barcode, p.InterlockBarcodeLead)
}

// PodStocker reports whether the stocker follows the pod conventions.
func (p Policy) PodStocker(stocker string) bool {
	return p.PodStockerPrefix != "" && strings.HasPrefix(stocker, p.PodStockerPrefix)
}

// RemapPodID reports whether a barcode read at stocker is a pod ID that
// must be translated to a cassette ID.
func (p Policy) RemapPodID(stocker, barcode string) bool {
	return p.PodStocker(stocker) && p.PodIDLead != "" && strings.HasPrefix(barcode, p.PodIDLead)
}

// PadLogical applies the fixed-width convention for logical IDs resolved
// from reticle barcodes.
func (p Policy) PadLogical(barcode, logical string) string {
	if logical == "" || p.ReticleBarcodeLead == "" || !strings.HasPrefix(barcode, p.ReticleBarcodeLead) {
		return logical
	}
	if pad := p.ReticlePadWidth - len(logical); pad > 0 {
		return logical + strings.Repeat(" ", pad)
	}
	return logical
}

// EmptyLogical returns the placeholder logical ID for an unassociated pod.
func (p Policy) EmptyLogical(barcode string) string {
	return p.EmptyLogicalPrefix + barcode
}

// IsEmptyLogical reports whether a logical ID is a pod placeholder.
func (p Policy) IsEmptyLogical(logical string) bool {
	return p.EmptyLogicalPrefix != "" && strings.HasPrefix(logical, p.EmptyLogicalPrefix)
}
