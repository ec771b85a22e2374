// Package audit records security-relevant actions such as logins,
// registrations, OAuth exchanges and passkey ceremonies.
//
// Logger never blocks the request path. Events go into a bounded buffer and a
// background worker writes them to Storage in batches. When the buffer is full
// the event is dropped, counted in authcore_audit_events_dropped_total and
// logged at warn level.
//
// Metadata passes through a MetadataFilter before it is queued; by default it
// removes credentials and tokens and masks email addresses.
package audit
