// Package api exposes the circulation service over HTTP using Gin.
//
// List endpoints return a pagination envelope of the form
//
//	{"count": <total matching rows>, "results": [...]}
//
// and errors are rendered field-scoped, for example
//
//	{"book_id": ["This field is required."]}
//	{"non_field_errors": ["No copies of this book are currently available"]}
//
// Authentication is owned by an external collaborator; the router only threads
// the caller's bearer token through the request context.
package api
