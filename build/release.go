package build

// Release identifies which of the three build variants is running:
// "standard" for production, "dev" for local development, or "testing"
// for the test suite. build.Select uses it to pick per-variant timeouts
// and intervals without scattering environment checks through the rest
// of the codebase.
var Release = "standard"

// DEBUG controls whether build.Critical and build.Severe panic (in
// addition to logging) when invoked. It defaults to off so a production
// binary degrades rather than crashing on a non-fatal sanity-check
// failure.
var DEBUG = false
