package model

import "testing"

func TestCheckSchemaVersion_Compatible(t *testing.T) {
	err := CheckSchemaVersion(PolicyManifest{SchemaVersion: "1.2.0"})
	if err != nil {
		t.Fatalf("expected compatible version to pass, got %v", err)
	}
}

func TestCheckSchemaVersion_MajorMismatch(t *testing.T) {
	err := CheckSchemaVersion(PolicyManifest{SchemaVersion: "2.0.0"})
	if err == nil {
		t.Fatal("expected major version mismatch to fail")
	}
}

func TestCheckSchemaVersion_InvalidVersionString(t *testing.T) {
	err := CheckSchemaVersion(PolicyManifest{SchemaVersion: "not-a-version"})
	if err == nil {
		t.Fatal("expected invalid version string to fail")
	}
}
