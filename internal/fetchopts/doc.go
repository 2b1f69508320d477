// Package fetchopts turns a GraphQL operation into transport-ready request
// parameters.
//
// Build always produces a POST to DefaultURL accepting JSON. When no upload
// files appear in the variables the body is a JSON string. When files are
// present the body is a MultipartForm following the GraphQL multipart
// request convention:
//
//	operations  the operation JSON with every file replaced by null
//	map         {"1":["variables.file"], "2":[...]} in file encounter order
//	1..N        one field per file, carrying bytes and filename
//
// The field names and their order are fixed; third-party GraphQL servers
// depend on them. No Content-Type header is set for multipart bodies, the
// transport derives it from the multipart boundary.
//
// Build is pure apart from the caller's Override hook. It never touches
// engine state.
package fetchopts
