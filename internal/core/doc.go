// Package core provides the business logic behind the Decisio console.
//
// The package turns an uploaded workbook into a request for the analysis
// backend and is independent of any UI or transport layer. It is used by the
// web console, the CLI and tests without modification.
//
// # Architecture
//
//   - Loader: [LoadWorkbook] parses an .xlsx upload and resolves the sheet to
//     read into a [Table].
//   - Encoder: [EncodePayload] shapes the first N rows into the JSON body the
//     backend expects, turning missing cells into null.
//   - Session: [Session] holds the conversation id shared by successive calls.
//   - Service: [Service] runs the operator actions (preview, analyze, health,
//     new conversation) and records analyze attempts in [History].
//
// # Data Flow
//
//  1. The caller hands [Service.Preview] the upload and an optional sheet name
//  2. The loader falls back to the first sheet when the name does not match
//  3. [Service.Analyze] validates the row limit and encodes the payload
//  4. The backend is called once under the live conversation id
//  5. The typed response or error is returned to the caller for rendering
//
// # Error Handling
//
// Technical errors are mapped to user-friendly messages using [MapError].
// Each category has a code for support reference:
//
//   - FILE001-FILE005: upload and workbook errors
//   - SHEET001-SHEET002: sheet resolution errors
//   - ROW001: row limit out of range
//   - NET001-NET002: backend unreachable or slow
//   - API001-API002: backend status or decoding errors
//   - BUSY001, RATE001: throttling
package core
