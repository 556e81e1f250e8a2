// Package project defines the persisted project model and the store
// boundary the lifecycle engine loads and saves through.
//
// The engine owns exactly one piece of the project record: the sandbox
// metadata. Files are read during sync and written only when scaffolding
// an empty project or applying an incremental write; everything else in
// the record belongs to the host application.
//
// # Persisted Shape
//
// SandboxInfo is serialized as part of the project record:
//
//	{
//	  "sandboxId": "sbx-abc",
//	  "previewUrl": "https://5173-sbx-abc.sandbox.example.com",
//	  "startTime": "2026-08-31T10:00:00Z",
//	  "endTime": "2026-08-31T10:30:00Z"
//	}
//
// The shape is stable across restarts: a process that comes up fresh
// trusts the persisted endTime until the first reconciliation proves it
// false.
package project
