//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package graph

// Reserved state keys. Keys with the "__" prefix are written only by the
// engine; node updates touching them are rejected.
const (
	// StateKeyFailure holds a *Failure when a run ended abnormally.
	StateKeyFailure = "__failure__"

	reservedPrefix = "__"
)
