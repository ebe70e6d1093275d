// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package validate

// LogLevels are the accepted log level names.
var LogLevels = []string{"trace", "debug", "info", "warn", "error"}
