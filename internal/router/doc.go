// Package router resolves an incoming request to a configured endpoint.
//
// Endpoints are tried in the order they are declared and the first one
// whose method list and path pattern both accept the request wins.
//
// Path patterns come in three forms:
//
//   - "/*" matches every path
//   - a pattern containing '*' matches when the whole path fits, with
//     each '*' standing for any characters including '/'
//   - anything else must equal the path exactly
//
// Methods compare case-insensitively and "*" accepts every method.
package router
