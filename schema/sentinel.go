package schema

// DeprecationSentinel is the exact comment string stored on a column or
// table during phase one of a two-phase drop. Its presence on the live side
// is what authorizes the destructive phase two. Process-wide and read-only.
const DeprecationSentinel = "SEMITEXA_DEPRECATED"
