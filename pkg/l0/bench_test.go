package l0

import (
	"testing"
	"time"
)

// These benchmarks exist to enforce the p99 < 100ns/check latency target
// from spec §4.3 — run with `go test -bench=. -benchtime=1000000x` and
// check ns/op per check stays under 100.

func BenchmarkSchemaHash(b *testing.B) {
	schema := []byte(`{"type":"object","properties":{}}`)
	prefix := schemaPrefix(schema)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		SchemaHash(schema, prefix)
	}
}

func BenchmarkPermissionBits(b *testing.B) {
	for i := 0; i < b.N; i++ {
		PermissionBits(0b0010, 0b1000, 0b1111)
	}
}

func BenchmarkDriftMagnitude(b *testing.B) {
	for i := 0; i < b.N; i++ {
		DriftMagnitude(13, 10, 0.3)
	}
}

func BenchmarkNonceFreshness(b *testing.B) {
	now := time.Now()
	issued := now.Add(-30 * time.Minute)
	for i := 0; i < b.N; i++ {
		NonceFreshness(now, issued, time.Hour)
	}
}

func BenchmarkContractionWitness(b *testing.B) {
	for i := 0; i < b.N; i++ {
		ContractionWitness(0.1, 0.05, 20, 10)
	}
}

func BenchmarkRunAll(b *testing.B) {
	schema := []byte(`{"type":"object"}`)
	now := time.Now()
	in := Input{
		DeclaredSchema:       schema,
		ExpectedSchemaPrefix: schemaPrefix(schema),
		AllowedMask:          0xFF,
		DriftCurrent:         10,
		DriftBaseline:        10,
		Now:                  now,
		NonceIssued:          now,
		FPRBefore:            0.1,
		FPRAfter:             0.05,
		WitnessCount:         10,
		MinRequiredEvents:    10,
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		RunAll(in)
	}
}
