// Package email sends the service's transactional mail.
//
// Sender has two implementations: Postmark for production and FileSender,
// which writes messages to disk for local development. Notifier renders
// bodies with the templ components in the templates subpackage.
package email
