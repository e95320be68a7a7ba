// Package engine is the boundary-facing facade of the PII service.
//
// It composes detection, masking, session packaging and prompt protection
// behind the operations a transport exposes:
//
//	Analyze              - detect and mask, describing every token issued
//	MaskForSession       - mask outbound text and return its session state
//	UnmaskWithSession    - restore a reply using a session state
//	Protect              - rewrite a prompt with generic replacements
//	GenerateAlternatives - several independently randomized rewrites
//	AnalyzeRisk          - the risk summary of a prompt
//	Stats, Health        - introspection
//
// Every operation is traced and counted; spans carry counts and kinds only.
package engine
