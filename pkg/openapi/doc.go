// Package openapi builds form schemas from the request body of an OpenAPI 3
// operation. Each scalar property becomes a field; nested objects become
// sections. The "x-formengine" extension on a property or on the operation
// carries what OpenAPI cannot express: labels, ordering, lookups and logic.
package openapi
