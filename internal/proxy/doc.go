// Package proxy implements the forwarding pipeline.
//
// For each request the Handler takes one configuration snapshot and
// then, without holding any lock:
//
//  1. resolves the endpoint (404 when none matches)
//  2. reads the body and logs it when the endpoint has debug enabled
//  3. evaluates failure rules and short-circuits with the synthetic
//     response of the first rule that fires
//  4. forwards to the active target with merged headers and the
//     original query string
//  5. relays the backend status, headers and decoded body
//
// Backend errors and timeouts yield 502 and are never retried.
package proxy
