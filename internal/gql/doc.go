// Package gql defines the data model shared by every gqlcache package:
// GraphQL operations, upload files, and the Result values stored in the
// operation cache.
//
// This package contains type definitions and small helpers only. All other
// internal packages import gql; gql imports nothing internal.
//
// Key design constraints:
//   - A Result is plain data. It never holds live network handles, so a whole
//     Cache can be marshaled on the server and unmarshaled on the client.
//   - Result fields are independent. HTTPError, ParseError and GraphQLErrors
//     may coexist; FetchError means no response was ever received.
//   - All JSON tags use the camelCase names GraphQL clients expect.
package gql
