package model

import (
	"fmt"

	"github.com/Masterminds/semver/v3"
)

// EngineSchemaConstraint is the range of PolicyManifest.SchemaVersion this
// build of the engine understands. Widen it when a new manifest field is
// added in a backward-compatible way; bump the major segment when an
// existing field's meaning changes.
const EngineSchemaConstraint = "^1.0.0"

// CheckSchemaVersion rejects a manifest whose SchemaVersion falls outside
// EngineSchemaConstraint, so an org-authored manifest written against a
// newer (or incompatible) schema fails loudly instead of being silently
// misread.
func CheckSchemaVersion(m PolicyManifest) error {
	constraint, err := semver.NewConstraint(EngineSchemaConstraint)
	if err != nil {
		return fmt.Errorf("manifest: invalid engine schema constraint %q: %w", EngineSchemaConstraint, err)
	}

	version, err := semver.NewVersion(m.SchemaVersion)
	if err != nil {
		return fmt.Errorf("manifest: invalid schemaVersion %q: %w", m.SchemaVersion, err)
	}

	if !constraint.Check(version) {
		return fmt.Errorf("manifest: schemaVersion %s does not satisfy engine constraint %s", m.SchemaVersion, EngineSchemaConstraint)
	}
	return nil
}
