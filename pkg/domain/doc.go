// Package domain defines the core PII types shared by detection, masking and protection.
//
// This package contains pure domain logic with ZERO external dependencies outside the
// Go standard library. All types in this package are:
//
// - Independent of infrastructure (no HTTP, storage, telemetry)
// - Immutable once constructed by a detector
// - Testable in isolation without mocks
//
// Other packages (detect, mask, protect, session, engine) depend on these types. The
// dependency direction is always:
//
//	Infrastructure → Domain (CORRECT)
//	Domain → Infrastructure (FORBIDDEN)
package domain
